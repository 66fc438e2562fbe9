package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ommp-plugins/shorturl/internal/database"
	"github.com/ommp-plugins/shorturl/internal/models"
)

type linkRecord struct {
	ID         int64  `db:"id"`
	Identifier string `db:"identifier"`
	Owner      int64  `db:"owner"`
	Target     string `db:"target"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	return &models.Link{
		ID:         r.ID,
		Identifier: r.Identifier,
		Owner:      r.Owner,
		Target:     r.Target,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Create(ctx context.Context, identifier string, owner int64, target string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	now := time.Now().Unix()
	query := `INSERT INTO shorturl_links(identifier, owner, target, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, identifier, owner, target, now)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrIdentifierExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) GetByID(ctx context.Context, id int64) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByID"

	rec := new(linkRecord)
	query := `SELECT * FROM shorturl_links WHERE id = $1`

	err := r.db.GetContext(ctx, rec, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByIdentifier"

	rec := new(linkRecord)
	query := `SELECT * FROM shorturl_links WHERE identifier = $1`

	err := r.db.GetContext(ctx, rec, query, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	const op = "database.postgres.LinkRepository.ExistsByIdentifier"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM shorturl_links WHERE identifier = $1)`

	if err := r.db.GetContext(ctx, &exists, query, identifier); err != nil {
		return false, fmt.Errorf("%s: failed to check identifier: %w", op, err)
	}

	return exists, nil
}

// List returns one page of links ordered by last edit, newest first, along
// with the total number of links matching the filter. A nil owner returns
// links of every user.
func (r *LinkRepository) List(ctx context.Context, owner *int64, offset, limit int) ([]models.Link, int64, error) {
	const op = "database.postgres.LinkRepository.List"

	var (
		recs  []linkRecord
		total int64
		err   error
	)

	if owner != nil {
		query := `SELECT * FROM shorturl_links WHERE owner = $1 ORDER BY updated_at DESC OFFSET $2 LIMIT $3`
		err = r.db.SelectContext(ctx, &recs, query, *owner, offset, limit)
	} else {
		query := `SELECT * FROM shorturl_links ORDER BY updated_at DESC OFFSET $1 LIMIT $2`
		err = r.db.SelectContext(ctx, &recs, query, offset, limit)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list link records: %w", op, err)
	}

	if owner != nil {
		err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM shorturl_links WHERE owner = $1`, *owner)
	} else {
		err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM shorturl_links`)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to count link records: %w", op, err)
	}

	links := make([]models.Link, 0, len(recs))
	for _, rec := range recs {
		links = append(links, *rec.ToLink())
	}

	return links, total, nil
}

func (r *LinkRepository) Update(ctx context.Context, id int64, target string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Update"

	rec := new(linkRecord)
	query := `UPDATE shorturl_links
		SET target = $1, updated_at = $2
		WHERE id = $3
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, target, time.Now().Unix(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

// Delete removes the link and all its visits in one transaction, so readers
// never observe a link without its visits or orphaned visit rows.
func (r *LinkRepository) Delete(ctx context.Context, id int64) error {
	const op = "database.postgres.LinkRepository.Delete"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM shorturl_visits WHERE link_id = $1`, id); err != nil {
		return fmt.Errorf("%s: failed to delete visit records: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM shorturl_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// DeleteAllForOwner removes every link owned by the user together with the
// associated visits, in one transaction. Deleting a user without links is not
// an error.
func (r *LinkRepository) DeleteAllForOwner(ctx context.Context, owner int64) error {
	const op = "database.postgres.LinkRepository.DeleteAllForOwner"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `DELETE FROM shorturl_visits
		WHERE link_id IN (SELECT id FROM shorturl_links WHERE owner = $1)`
	if _, err := tx.ExecContext(ctx, query, owner); err != nil {
		return fmt.Errorf("%s: failed to delete visit records: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shorturl_links WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("%s: failed to delete link records: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}
