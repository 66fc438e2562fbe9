package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/ommp-plugins/shorturl/internal/config"
	"github.com/ommp-plugins/shorturl/internal/database"
	"github.com/ommp-plugins/shorturl/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PageSize is the fixed page length for link listings.
const PageSize = 10

// maxAttempts bounds the identifier generation loop. Collisions and reserved
// words both consume an attempt; running out surfaces capacity exhaustion to
// the caller as ErrGenerationExhausted instead of looping forever.
const maxAttempts = 10

// LinkRepository defines the persistence interface the link service works against.
type LinkRepository interface {
	// Create inserts a new link and returns the stored row.
	// Returns database.ErrIdentifierExists when the identifier is already taken.
	Create(ctx context.Context, identifier string, owner int64, target string) (*models.Link, error)

	// GetByID retrieves a link by its numeric id.
	GetByID(ctx context.Context, id int64) (*models.Link, error)

	// GetByIdentifier retrieves a link by its short identifier.
	GetByIdentifier(ctx context.Context, identifier string) (*models.Link, error)

	// ExistsByIdentifier reports whether any link currently holds the identifier.
	ExistsByIdentifier(ctx context.Context, identifier string) (bool, error)

	// List returns one page of links ordered by updated_at descending plus the
	// total count. A nil owner lists links of every user.
	List(ctx context.Context, owner *int64, offset, limit int) ([]models.Link, int64, error)

	// Update replaces the target of a link and bumps its updated_at.
	Update(ctx context.Context, id int64, target string) (*models.Link, error)

	// Delete removes a link and all its visits atomically.
	Delete(ctx context.Context, id int64) error

	// DeleteAllForOwner removes every link of the owner with its visits atomically.
	DeleteAllForOwner(ctx context.Context, owner int64) error
}

// LinkService manages the link lifecycle: identifier generation, creation,
// listing, editing and cascading deletion, with authorization based on the
// rights the host granted the caller.
type LinkService struct {
	repo     LinkRepository
	length   int
	alphabet string
	reserved map[string]struct{}
	validate *validator.Validate
	logger   *slog.Logger
}

func NewLinkService(repo LinkRepository, settings config.ShortURL, logger *slog.Logger) *LinkService {
	return &LinkService{
		repo:     repo,
		length:   settings.Length,
		alphabet: settings.Characters,
		reserved: settings.ReservedSet(),
		validate: validator.New(),
		logger:   logger,
	}
}

// Shorten validates the target URL, generates a free identifier and persists
// the new link. Generation draws uniformly from the configured alphabet and
// rejects reserved words and identifiers already in use; a duplicate-key
// failure at insert time counts as a collision and is folded into the attempt
// budget, since the unique constraint is the actual correctness backstop
// against concurrent generation.
func (s *LinkService) Shorten(ctx context.Context, caller *models.Caller, target string) (*models.Link, error) {
	const op = "service.LinkService.Shorten"

	if !caller.HasRight(models.RightUse) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.validate.Var(target, "required,url"); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTarget)
	}

	for i := 0; i < maxAttempts; i++ {
		identifier, err := gonanoid.Generate(s.alphabet, s.length)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate identifier: %w", op, err)
		}

		if _, ok := s.reserved[identifier]; ok {
			continue
		}

		exists, err := s.repo.ExistsByIdentifier(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check identifier: %w", op, err)
		}
		if exists {
			continue
		}

		link, err := s.repo.Create(ctx, identifier, caller.ID, target)
		if err != nil {
			if errors.Is(err, database.ErrIdentifierExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrGenerationExhausted)
}

// GetByID retrieves a link by its numeric id.
func (s *LinkService) GetByID(ctx context.Context, id int64) (*models.Link, error) {
	const op = "service.LinkService.GetByID"

	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	return link, nil
}

// GetByIdentifier retrieves a link by its short identifier.
func (s *LinkService) GetByIdentifier(ctx context.Context, identifier string) (*models.Link, error) {
	const op = "service.LinkService.GetByIdentifier"

	link, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	return link, nil
}

// List returns one page of the caller's own links, or of every link when all
// is set. Listing own links requires see_list; listing everything requires see_all.
func (s *LinkService) List(ctx context.Context, caller *models.Caller, all bool, offset int) ([]models.Link, int64, error) {
	const op = "service.LinkService.List"

	var owner *int64
	if all {
		if !caller.HasRight(models.RightSeeAll) {
			return nil, 0, fmt.Errorf("%s: %w", op, ErrForbidden)
		}
	} else {
		if !caller.HasRight(models.RightSeeList) {
			return nil, 0, fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		owner = &caller.ID
	}

	if offset < 0 {
		offset = 0
	}

	links, total, err := s.repo.List(ctx, owner, offset, PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, total, nil
}

// Edit replaces the target URL of a link. The owner needs the edit right;
// editing someone else's link needs edit_any.
func (s *LinkService) Edit(ctx context.Context, caller *models.Caller, id int64, target string) (*models.Link, error) {
	const op = "service.LinkService.Edit"

	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !canModify(caller, link, models.RightEditAny) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.validate.Var(target, "required,url"); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTarget)
	}

	link, err = s.repo.Update(ctx, id, target)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update link: %w", op, err)
	}

	return link, nil
}

// Delete removes a link and its visits. The owner needs the edit right;
// deleting someone else's link needs delete_any.
func (s *LinkService) Delete(ctx context.Context, caller *models.Caller, id int64) error {
	const op = "service.LinkService.Delete"

	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !canModify(caller, link, models.RightDeleteAny) {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	return nil
}

// DeleteAllForOwner removes every link of the user together with the visits.
// The host calls this when the account is removed, so no rights are checked.
func (s *LinkService) DeleteAllForOwner(ctx context.Context, owner int64) error {
	const op = "service.LinkService.DeleteAllForOwner"

	if err := s.repo.DeleteAllForOwner(ctx, owner); err != nil {
		return fmt.Errorf("%s: failed to delete links: %w", op, err)
	}

	return nil
}

func canModify(caller *models.Caller, link *models.Link, anyRight string) bool {
	if caller.HasRight(anyRight) {
		return true
	}
	return caller != nil && caller.ID == link.Owner && caller.HasRight(models.RightEdit)
}
