// Package module is the surface the OMMP host talks to: configuration
// validation, user-deletion cascade, the API action dispatch and the short
// URL handler. Everything the host used to reach through globals is passed
// in explicitly: the request context, the authenticated caller and the data
// of the call.
package module

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ommp-plugins/shorturl/internal/config"
	"github.com/ommp-plugins/shorturl/internal/database"
	"github.com/ommp-plugins/shorturl/internal/lang"
	"github.com/ommp-plugins/shorturl/internal/models"
	"github.com/ommp-plugins/shorturl/internal/service"
)

// ErrNotHandled signals that the module does not process the given action or
// URL, and the host should fall through to its other handlers. It is distinct
// from every failure of an action the module does own.
var ErrNotHandled = errors.New("not handled")

// statisticsSuffix marks a short URL as an export request instead of a redirect.
const statisticsSuffix = "/statistics"

type Module struct {
	links    *service.LinkService
	stats    *service.StatsService
	lang     *lang.Lang
	settings config.ShortURL
	logger   *slog.Logger
}

func New(links *service.LinkService, stats *service.StatsService, l *lang.Lang, settings config.ShortURL, logger *slog.Logger) *Module {
	return &Module{
		links:    links,
		stats:    stats,
		lang:     l,
		settings: settings,
		logger:   logger,
	}
}

// CheckConfig validates a module setting the host admin is about to save.
// A non-nil error carries the localized explanation.
func (m *Module) CheckConfig(name, value string) error {
	if key := config.Check(name, value); key != "" {
		return errors.New(m.lang.Get(key))
	}
	return nil
}

// OnUserDeleted removes every link of the user together with the visits.
// The host calls this while deleting the account.
func (m *Module) OnUserDeleted(ctx context.Context, userID int64) error {
	const op = "module.OnUserDeleted"

	if err := m.links.DeleteAllForOwner(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Localize returns the localized message for a catalog key.
func (m *Module) Localize(key string) string {
	return m.lang.Get(key)
}

// HandleAPIAction dispatches one host API call. Unknown actions return
// ErrNotHandled so the host can try its remaining modules.
func (m *Module) HandleAPIAction(ctx context.Context, caller *models.Caller, action string, data map[string]string) (map[string]any, error) {
	switch action {
	case "shorten-link":
		return m.shortenLink(ctx, caller, data)
	case "get-informations":
		return m.getInformations(caller), nil
	case "get-my-links":
		return m.listLinks(ctx, caller, data, false)
	case "get-all-links":
		return m.listLinks(ctx, caller, data, true)
	case "delete-link":
		return m.deleteLink(ctx, caller, data)
	case "edit-link":
		return m.editLink(ctx, caller, data)
	case "get-statistics":
		return m.getStatistics(ctx, caller, data)
	default:
		return nil, ErrNotHandled
	}
}

func (m *Module) shortenLink(ctx context.Context, caller *models.Caller, data map[string]string) (map[string]any, error) {
	const op = "module.shortenLink"

	target, ok := data["url"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, service.ErrMissingParameter)
	}

	link, err := m.links.Shorten(ctx, caller, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return map[string]any{
		"ok":   true,
		"link": m.linkPayload(link),
	}, nil
}

func (m *Module) getInformations(caller *models.Caller) map[string]any {
	rights := make(map[string]bool)
	for _, capability := range []string{
		models.RightSeeList,
		models.RightSeeAll,
		models.RightSeeStats,
		models.RightEdit,
		models.RightEditAny,
		models.RightDeleteAny,
		models.RightUse,
	} {
		rights[capability] = caller.HasRight(capability)
	}

	return map[string]any{
		"ok":         true,
		"rights":     rights,
		"length":     m.settings.Length,
		"characters": m.settings.Characters,
	}
}

func (m *Module) listLinks(ctx context.Context, caller *models.Caller, data map[string]string, all bool) (map[string]any, error) {
	const op = "module.listLinks"

	// A malformed or negative offset falls back to the first page.
	offset := 0
	if raw, ok := data["offset"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}

	links, total, err := m.links.List(ctx, caller, all, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payloads := make([]map[string]any, 0, len(links))
	for i := range links {
		payloads = append(payloads, m.linkPayload(&links[i]))
	}

	return map[string]any{
		"ok":    true,
		"links": payloads,
		"total": total,
	}, nil
}

func (m *Module) deleteLink(ctx context.Context, caller *models.Caller, data map[string]string) (map[string]any, error) {
	const op = "module.deleteLink"

	id, err := requireID(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.links.Delete(ctx, caller, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return map[string]any{"ok": true}, nil
}

func (m *Module) editLink(ctx context.Context, caller *models.Caller, data map[string]string) (map[string]any, error) {
	const op = "module.editLink"

	id, err := requireID(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	target, ok := data["url"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, service.ErrMissingParameter)
	}

	link, err := m.links.Edit(ctx, caller, id, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return map[string]any{
		"ok":   true,
		"link": m.linkPayload(link),
	}, nil
}

func (m *Module) getStatistics(ctx context.Context, caller *models.Caller, data map[string]string) (map[string]any, error) {
	const op = "module.getStatistics"

	id, err := requireID(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stats, err := m.stats.Aggregate(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return map[string]any{
		"ok": true,
		"statistics": map[string]any{
			"clicks":            stats.Clicks,
			"browsers":          stats.Browsers,
			"operating_systems": stats.OperatingSystems,
			"is_mobile":         stats.Mobile,
			"is_tablet":         stats.Tablet,
			"is_robot":          stats.Robot,
			"referrer_hosts":    stats.ReferrerHosts,
			"unique_visitors":   stats.UniqueVisitors,
		},
	}, nil
}

// VisitContext carries the request attributes recorded with a visit.
type VisitContext struct {
	RemoteAddress string
	UserAgent     string
	Referrer      string
}

// Outcome is the result of dispatching one short URL.
type Outcome struct {
	// Handled reports whether the module owns this URL. When false the host
	// falls through to its remaining handlers.
	Handled bool
	// Redirect is the target URL to redirect to, when in redirect mode.
	Redirect string
	// Export is the link whose visits should be served as CSV, when in export mode.
	Export *models.Link
}

// HandleURL resolves an inbound short path. A trailing /statistics selects
// export mode. An unknown identifier is not an error: the module reports the
// URL as unhandled and the host serves its own 404. A known identifier the
// caller may not export is an explicit permission failure, so legitimate
// owners are not left guessing whether their link exists.
func (m *Module) HandleURL(ctx context.Context, caller *models.Caller, path string, visit VisitContext) (Outcome, error) {
	const op = "module.HandleURL"

	identifier := strings.Trim(path, "/")

	export := false
	if rest, ok := strings.CutSuffix(identifier, statisticsSuffix); ok {
		export = true
		identifier = rest
	}

	if identifier == "" || strings.Contains(identifier, "/") {
		return Outcome{}, nil
	}

	link, err := m.links.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return Outcome{}, nil
		}
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	if export {
		if !m.stats.CanView(caller, link) {
			return Outcome{}, fmt.Errorf("%s: %w", op, service.ErrForbidden)
		}
		return Outcome{Handled: true, Export: link}, nil
	}

	// Recording is best effort: the visitor still gets the redirect when the
	// insert fails, the failure only shows up in the logs.
	if err := m.stats.RecordVisit(ctx, link.ID, visit.RemoteAddress, visit.UserAgent, visit.Referrer); err != nil {
		m.logger.Error("failed to record visit",
			slog.Int64("link_id", link.ID),
			slog.Any("err", err),
		)
	}

	return Outcome{Handled: true, Redirect: link.Target}, nil
}

// ExportCSV streams the visit rows of the link as CSV into w.
func (m *Module) ExportCSV(ctx context.Context, caller *models.Caller, linkID int64, w io.Writer) error {
	return m.stats.ExportCSV(ctx, caller, linkID, w)
}

func (m *Module) linkPayload(link *models.Link) map[string]any {
	return map[string]any{
		"id":                  link.ID,
		"identifier":          link.Identifier,
		"target":              link.Target,
		"owner":               link.Owner,
		"creation":            link.CreatedAt,
		"formatted_creation":  m.lang.FormatDate(link.CreatedAt),
		"edit":                link.UpdatedAt,
		"formatted_last_edit": m.lang.FormatDate(link.UpdatedAt),
	}
}

func requireID(data map[string]string) (int64, error) {
	raw, ok := data["id"]
	if !ok {
		return 0, service.ErrMissingParameter
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, service.ErrMissingParameter
	}

	return id, nil
}
