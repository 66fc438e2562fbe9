package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/ommp-plugins/shorturl/internal/lang"
	"github.com/ommp-plugins/shorturl/internal/models"
	"github.com/ommp-plugins/shorturl/internal/useragent"
)

// csvHeader is the fixed first row of a visit export.
const csvHeader = "ip;timestamp;user_agent;referrer"

// VisitRepository defines the persistence interface the stats service works against.
type VisitRepository interface {
	// Record appends one visit row with the current time.
	Record(ctx context.Context, linkID int64, remoteAddress, userAgent, referrer string) error

	// ForEachByLink streams the visits of one link in ascending timestamp order.
	ForEachByLink(ctx context.Context, linkID int64, fn func(models.Visit) error) error
}

// StatsService records visits and aggregates them into per-link statistics
// and CSV exports.
type StatsService struct {
	links      LinkRepository
	visits     VisitRepository
	classifier useragent.Classifier
	lang       *lang.Lang
	logger     *slog.Logger
}

func NewStatsService(links LinkRepository, visits VisitRepository, classifier useragent.Classifier, l *lang.Lang, logger *slog.Logger) *StatsService {
	return &StatsService{
		links:      links,
		visits:     visits,
		classifier: classifier,
		lang:       l,
		logger:     logger,
	}
}

// RecordVisit appends one visit row for the link.
func (s *StatsService) RecordVisit(ctx context.Context, linkID int64, remoteAddress, userAgent, referrer string) error {
	const op = "service.StatsService.RecordVisit"

	if err := s.visits.Record(ctx, linkID, remoteAddress, userAgent, referrer); err != nil {
		return fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	return nil
}

// CanView reports whether the caller may inspect the visit data of the link:
// see_stats is required, and the link must be the caller's own unless they
// also hold see_all.
func (s *StatsService) CanView(caller *models.Caller, link *models.Link) bool {
	if !caller.HasRight(models.RightSeeStats) {
		return false
	}
	return caller.ID == link.Owner || caller.HasRight(models.RightSeeAll)
}

// Aggregate folds every visit of the link into categorical histograms and a
// unique-visitor count in a single pass. The browser and platform labels are
// whatever the classifier emits, passed through unmodified.
func (s *StatsService) Aggregate(ctx context.Context, caller *models.Caller, linkID int64) (*models.Statistics, error) {
	const op = "service.StatsService.Aggregate"

	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !s.CanView(caller, link) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	yes, no := s.lang.Get("yes"), s.lang.Get("no")

	stats := &models.Statistics{
		Browsers:         make(map[string]int64),
		OperatingSystems: make(map[string]int64),
		Mobile:           map[string]int64{yes: 0, no: 0},
		Tablet:           map[string]int64{yes: 0, no: 0},
		Robot:            map[string]int64{yes: 0, no: 0},
		ReferrerHosts:    make(map[string]int64),
	}

	visitors := make(map[uint64]struct{})

	err = s.visits.ForEachByLink(ctx, linkID, func(v models.Visit) error {
		stats.Clicks++

		c := s.classifier.Classify(v.UserAgent)
		stats.Browsers[c.Browser]++
		stats.OperatingSystems[c.OS]++
		bump(stats.Mobile, c.Mobile, yes, no)
		bump(stats.Tablet, c.Tablet, yes, no)
		bump(stats.Robot, c.Bot, yes, no)

		stats.ReferrerHosts[referrerHost(v.Referrer)]++

		visitors[visitorKey(v.RemoteAddress, v.UserAgent)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate visits: %w", op, err)
	}

	stats.UniqueVisitors = int64(len(visitors))

	return stats, nil
}

// ExportCSV streams the raw visit rows of the link as CSV, oldest first,
// authorized the same way as Aggregate. The dialect is deliberately not
// RFC 4180: a field is quoted only when it contains a semicolon, and only
// inside a quoted field are double quotes doubled.
func (s *StatsService) ExportCSV(ctx context.Context, caller *models.Caller, linkID int64, w io.Writer) error {
	const op = "service.StatsService.ExportCSV"

	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !s.CanView(caller, link) {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if _, err := io.WriteString(w, csvHeader+"\n"); err != nil {
		return fmt.Errorf("%s: failed to write header: %w", op, err)
	}

	err = s.visits.ForEachByLink(ctx, linkID, func(v models.Visit) error {
		row := strings.Join([]string{
			escapeCSVField(v.RemoteAddress),
			strconv.FormatInt(v.Timestamp, 10),
			escapeCSVField(v.UserAgent),
			escapeCSVField(v.Referrer),
		}, ";")

		if _, err := io.WriteString(w, row+"\n"); err != nil {
			return fmt.Errorf("%s: failed to write row: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: failed to export visits: %w", op, err)
	}

	return nil
}

// escapeCSVField quotes a field iff it contains the separator. Double quotes
// in an unquoted field are left untouched.
func escapeCSVField(s string) string {
	if !strings.Contains(s, ";") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func referrerHost(referrer string) string {
	if referrer == "" {
		return ""
	}

	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return u.Host
}

// visitorKey hashes the (remote address, user agent) pair. The hash is only
// a deduplication key; it is never stored or displayed.
func visitorKey(remoteAddress, userAgent string) uint64 {
	h := fnv.New64a()
	io.WriteString(h, remoteAddress) //nolint:errcheck
	h.Write([]byte{0})
	io.WriteString(h, userAgent) //nolint:errcheck
	return h.Sum64()
}

func bump(m map[string]int64, hit bool, yes, no string) {
	if hit {
		m[yes]++
	} else {
		m[no]++
	}
}
