package postgres

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/ommp-plugins/shorturl/internal/models"
)

const (
	maxRemoteAddressLen = 64
	maxUserAgentLen     = 256
	maxReferrerLen      = 256
)

type visitRecord struct {
	LinkID        int64  `db:"link_id"`
	RemoteAddress string `db:"remote_address"`
	Timestamp     int64  `db:"timestamp"`
	UserAgent     string `db:"user_agent"`
	Referrer      string `db:"referrer"`
}

func (r *visitRecord) ToVisit() *models.Visit {
	return &models.Visit{
		LinkID:        r.LinkID,
		RemoteAddress: r.RemoteAddress,
		Timestamp:     r.Timestamp,
		UserAgent:     r.UserAgent,
		Referrer:      r.Referrer,
	}
}

type VisitRepository struct {
	db *sqlx.DB
}

func NewVisitRepository(db *sqlx.DB) *VisitRepository {
	return &VisitRepository{
		db: db,
	}
}

// Record appends one visit row with the current time. The header values are
// truncated to their column bounds before storage.
func (r *VisitRepository) Record(ctx context.Context, linkID int64, remoteAddress, userAgent, referrer string) error {
	const op = "database.postgres.VisitRepository.Record"

	query := `INSERT INTO shorturl_visits(link_id, remote_address, "timestamp", user_agent, referrer)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		linkID,
		truncate(remoteAddress, maxRemoteAddressLen),
		time.Now().Unix(),
		truncate(userAgent, maxUserAgentLen),
		truncate(referrer, maxReferrerLen),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	return nil
}

// ForEachByLink streams the visits of one link in ascending timestamp order,
// calling fn for each row. Iteration stops at the first error fn returns.
// Rows are scanned one at a time so an unbounded visit history never has to
// fit in memory.
func (r *VisitRepository) ForEachByLink(ctx context.Context, linkID int64, fn func(models.Visit) error) error {
	const op = "database.postgres.VisitRepository.ForEachByLink"

	query := `SELECT link_id, remote_address, "timestamp", user_agent, referrer
		FROM shorturl_visits
		WHERE link_id = $1
		ORDER BY "timestamp" ASC`

	rows, err := r.db.QueryxContext(ctx, query, linkID)
	if err != nil {
		return fmt.Errorf("%s: failed to query visit records: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec visitRecord
		if err := rows.StructScan(&rec); err != nil {
			return fmt.Errorf("%s: failed to scan visit record: %w", op, err)
		}

		if err := fn(*rec.ToVisit()); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: failed to iterate visit records: %w", op, err)
	}

	return nil
}

// truncate cuts s down to at most n bytes without splitting a multi-byte
// rune, so the stored value is always valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
