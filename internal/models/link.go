package models

// Link represents a stored mapping from a short identifier to a target URL.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// Identifier is the short public-facing string resolving to the link.
	Identifier string
	// Owner is the id of the user who created the link.
	Owner int64
	// Target is the full URL that the identifier resolves to.
	Target string
	// CreatedAt is the creation time in seconds since epoch.
	CreatedAt int64
	// UpdatedAt is the last edit time in seconds since epoch.
	UpdatedAt int64
}

// Visit is one immutable record of a redirect resolution.
// Visits are only ever appended, and only removed in bulk when their link is deleted.
type Visit struct {
	// LinkID references the link that was resolved.
	LinkID int64
	// RemoteAddress is the client network address at access time.
	RemoteAddress string
	// Timestamp is the visit time in seconds since epoch.
	Timestamp int64
	// UserAgent is the raw user-agent header, truncated for storage.
	UserAgent string
	// Referrer is the raw referrer header, truncated for storage. May be empty.
	Referrer string
}

// Statistics holds the aggregated visit analytics for one link.
type Statistics struct {
	// Clicks is the total number of recorded visits.
	Clicks int64
	// Browsers maps a browser name to its occurrence count.
	Browsers map[string]int64
	// OperatingSystems maps an OS name to its occurrence count.
	OperatingSystems map[string]int64
	// Mobile, Tablet and Robot are two-bucket counts keyed by localized yes/no labels.
	Mobile map[string]int64
	Tablet map[string]int64
	Robot  map[string]int64
	// ReferrerHosts maps the host component of each referrer to its occurrence
	// count. Visits with an empty or unparseable referrer land under the empty key.
	ReferrerHosts map[string]int64
	// UniqueVisitors is the number of distinct (remote address, user agent) pairs.
	UniqueVisitors int64
}
