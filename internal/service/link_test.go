package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ommp-plugins/shorturl/internal/config"
	"github.com/ommp-plugins/shorturl/internal/database"
	"github.com/ommp-plugins/shorturl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testSettings = config.ShortURL{
	Length:     6,
	Characters: "abcdefghijklmnopqrstuvwxyz0123456789",
	Reserved:   "api,statistics",
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLinkService_Shorten(t *testing.T) {
	t.Run("missing use right", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		link, err := svc.Shorten(context.TODO(), newCaller(1), "https://example.com")

		assert.ErrorIs(t, err, ErrForbidden)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("invalid target", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		for _, target := range []string{"", "not a url", "example.com/no-scheme"} {
			link, err := svc.Shorten(context.TODO(), newCaller(1, models.RightUse), target)

			assert.ErrorIs(t, err, ErrInvalidTarget)
			assert.Nil(t, link)
		}
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("identifier drawn from alphabet", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		var generated string
		repo.On("ExistsByIdentifier", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), int64(1), "https://example.com").
			Run(func(args mock.Arguments) {
				generated = args.String(1)
			}).
			Return(&models.Link{ID: 1, Owner: 1, Target: "https://example.com"}, nil)

		link, err := svc.Shorten(context.TODO(), newCaller(1, models.RightUse), "https://example.com")

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Len(t, generated, testSettings.Length)
		for _, r := range generated {
			assert.Contains(t, testSettings.Characters, string(r))
		}
		repo.AssertExpectations(t)
	})

	t.Run("reserved identifier is never assigned", func(t *testing.T) {
		// A one-character alphabet with length one can only ever produce "x";
		// reserving it must exhaust the attempt budget without touching storage.
		settings := config.ShortURL{Length: 1, Characters: "x", Reserved: "x"}
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, settings, discardLogger())

		link, err := svc.Shorten(context.TODO(), newCaller(1, models.RightUse), "https://example.com")

		assert.ErrorIs(t, err, ErrGenerationExhausted)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "ExistsByIdentifier")
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("collisions exhaust the attempt budget", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("ExistsByIdentifier", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)

		link, err := svc.Shorten(context.TODO(), newCaller(1, models.RightUse), "https://example.com")

		assert.ErrorIs(t, err, ErrGenerationExhausted)
		assert.Nil(t, link)
		repo.AssertNumberOfCalls(t, "ExistsByIdentifier", 10)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("duplicate key at insert counts as collision", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		wantLink := &models.Link{ID: 1, Owner: 1, Target: "https://example.com"}

		repo.On("ExistsByIdentifier", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), int64(1), "https://example.com").
			Return(nil, database.ErrIdentifierExists).Once()
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), int64(1), "https://example.com").
			Return(wantLink, nil).Once()

		link, err := svc.Shorten(context.TODO(), newCaller(1, models.RightUse), "https://example.com")

		assert.NoError(t, err)
		assert.Equal(t, wantLink, link)
		repo.AssertNumberOfCalls(t, "Create", 2)
	})

	t.Run("storage error is not retried", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("ExistsByIdentifier", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("Create", mock.Anything, mock.AnythingOfType("string"), int64(1), "https://example.com").
			Return(nil, assert.AnError)

		link, err := svc.Shorten(context.TODO(), newCaller(1, models.RightUse), "https://example.com")

		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, link)
		repo.AssertNumberOfCalls(t, "Create", 1)
	})
}

func TestLinkService_List(t *testing.T) {
	t.Run("own links require see_list", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		links, total, err := svc.List(context.TODO(), newCaller(1), false, 0)

		assert.ErrorIs(t, err, ErrForbidden)
		assert.Nil(t, links)
		assert.Zero(t, total)
	})

	t.Run("all links require see_all", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		links, total, err := svc.List(context.TODO(), newCaller(1, models.RightSeeList), true, 0)

		assert.ErrorIs(t, err, ErrForbidden)
		assert.Nil(t, links)
		assert.Zero(t, total)
	})

	t.Run("own links are owner filtered and paginated", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		owner := int64(1)
		wantLinks := []models.Link{{ID: 11, Owner: 1}, {ID: 12, Owner: 1}}

		repo.On("List", mock.Anything, &owner, 10, PageSize).Return(wantLinks, int64(25), nil)

		links, total, err := svc.List(context.TODO(), newCaller(1, models.RightSeeList), false, 10)

		assert.NoError(t, err)
		assert.Equal(t, wantLinks, links)
		assert.Equal(t, int64(25), total)
		repo.AssertExpectations(t)
	})

	t.Run("all links pass a nil owner", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("List", mock.Anything, (*int64)(nil), 0, PageSize).Return([]models.Link{}, int64(0), nil)

		_, _, err := svc.List(context.TODO(), newCaller(1, models.RightSeeAll), true, -5)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestLinkService_Edit(t *testing.T) {
	ownLink := &models.Link{ID: 1, Identifier: "abc123", Owner: 1, Target: "https://example.com"}
	otherLink := &models.Link{ID: 2, Identifier: "def456", Owner: 2, Target: "https://example.org"}

	t.Run("link not found", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(3)).Return(nil, database.ErrLinkNotFound)

		link, err := svc.Edit(context.TODO(), newCaller(1, models.RightEdit), 3, "https://new.example.com")

		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, link)
	})

	t.Run("non-owner without edit_any is forbidden", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(2)).Return(otherLink, nil)

		link, err := svc.Edit(context.TODO(), newCaller(1, models.RightEdit), 2, "https://new.example.com")

		assert.ErrorIs(t, err, ErrForbidden)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("owner without edit right is forbidden", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(1)).Return(ownLink, nil)

		link, err := svc.Edit(context.TODO(), newCaller(1), 1, "https://new.example.com")

		assert.ErrorIs(t, err, ErrForbidden)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("invalid target", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(1)).Return(ownLink, nil)

		link, err := svc.Edit(context.TODO(), newCaller(1, models.RightEdit), 1, "not a url")

		assert.ErrorIs(t, err, ErrInvalidTarget)
		assert.Nil(t, link)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("owner edits own link", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		updated := &models.Link{ID: 1, Identifier: "abc123", Owner: 1, Target: "https://new.example.com", UpdatedAt: 1700000500}

		repo.On("GetByID", mock.Anything, int64(1)).Return(ownLink, nil)
		repo.On("Update", mock.Anything, int64(1), "https://new.example.com").Return(updated, nil)

		link, err := svc.Edit(context.TODO(), newCaller(1, models.RightEdit), 1, "https://new.example.com")

		assert.NoError(t, err)
		assert.Equal(t, updated, link)
		repo.AssertExpectations(t)
	})

	t.Run("edit_any edits another user's link", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		updated := &models.Link{ID: 2, Identifier: "def456", Owner: 2, Target: "https://new.example.org"}

		repo.On("GetByID", mock.Anything, int64(2)).Return(otherLink, nil)
		repo.On("Update", mock.Anything, int64(2), "https://new.example.org").Return(updated, nil)

		link, err := svc.Edit(context.TODO(), newCaller(1, models.RightEditAny), 2, "https://new.example.org")

		assert.NoError(t, err)
		assert.Equal(t, updated, link)
	})
}

func TestLinkService_Delete(t *testing.T) {
	ownLink := &models.Link{ID: 1, Owner: 1}
	otherLink := &models.Link{ID: 2, Owner: 2}

	t.Run("non-owner without delete_any is forbidden", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(2)).Return(otherLink, nil)

		err := svc.Delete(context.TODO(), newCaller(1, models.RightEdit), 2)

		assert.ErrorIs(t, err, ErrForbidden)
		repo.AssertNotCalled(t, "Delete")
	})

	t.Run("owner deletes own link", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(1)).Return(ownLink, nil)
		repo.On("Delete", mock.Anything, int64(1)).Return(nil)

		err := svc.Delete(context.TODO(), newCaller(1, models.RightEdit), 1)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("delete_any deletes another user's link", func(t *testing.T) {
		repo := new(MockLinkRepository)
		svc := NewLinkService(repo, testSettings, discardLogger())

		repo.On("GetByID", mock.Anything, int64(2)).Return(otherLink, nil)
		repo.On("Delete", mock.Anything, int64(2)).Return(nil)

		err := svc.Delete(context.TODO(), newCaller(1, models.RightDeleteAny), 2)

		assert.NoError(t, err)
	})
}

func TestLinkService_DeleteAllForOwner(t *testing.T) {
	repo := new(MockLinkRepository)
	svc := NewLinkService(repo, testSettings, discardLogger())

	repo.On("DeleteAllForOwner", mock.Anything, int64(5)).Return(nil)

	err := svc.DeleteAllForOwner(context.TODO(), 5)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLinkService_GetByIdentifier(t *testing.T) {
	repo := new(MockLinkRepository)
	svc := NewLinkService(repo, testSettings, discardLogger())

	want := &models.Link{ID: 1, Identifier: "abc123", Owner: 1, Target: "https://example.com"}

	repo.On("GetByIdentifier", mock.Anything, "abc123").Return(want, nil)

	link, err := svc.GetByIdentifier(context.TODO(), "abc123")

	assert.NoError(t, err)
	assert.Equal(t, want, link)
}
