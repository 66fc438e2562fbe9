package models

// Capabilities granted by the host rights system.
const (
	RightSeeList   = "see_list"
	RightSeeAll    = "see_all"
	RightSeeStats  = "see_stats"
	RightEdit      = "edit"
	RightEditAny   = "edit_any"
	RightDeleteAny = "delete_any"
	RightUse       = "use"
)

// Caller is the authenticated identity of the current request,
// as established by the host platform.
type Caller struct {
	ID       int64
	Username string
	Rights   map[string]bool
}

// HasRight reports whether the host granted the given capability to the caller.
func (c *Caller) HasRight(capability string) bool {
	if c == nil {
		return false
	}
	return c.Rights[capability]
}
