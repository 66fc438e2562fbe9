package service

import (
	"context"

	"github.com/ommp-plugins/shorturl/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) Create(ctx context.Context, identifier string, owner int64, target string) (*models.Link, error) {
	args := r.Called(ctx, identifier, owner, target)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) GetByID(ctx context.Context, id int64) (*models.Link, error) {
	args := r.Called(ctx, id)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Link, error) {
	args := r.Called(ctx, identifier)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	args := r.Called(ctx, identifier)
	return args.Bool(0), args.Error(1)
}

func (r *MockLinkRepository) List(ctx context.Context, owner *int64, offset, limit int) ([]models.Link, int64, error) {
	args := r.Called(ctx, owner, offset, limit)
	links, _ := args.Get(0).([]models.Link)
	return links, args.Get(1).(int64), args.Error(2)
}

func (r *MockLinkRepository) Update(ctx context.Context, id int64, target string) (*models.Link, error) {
	args := r.Called(ctx, id, target)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) Delete(ctx context.Context, id int64) error {
	args := r.Called(ctx, id)
	return args.Error(0)
}

func (r *MockLinkRepository) DeleteAllForOwner(ctx context.Context, owner int64) error {
	args := r.Called(ctx, owner)
	return args.Error(0)
}

type MockVisitRepository struct {
	mock.Mock

	visits []models.Visit
}

func (r *MockVisitRepository) Record(ctx context.Context, linkID int64, remoteAddress, userAgent, referrer string) error {
	args := r.Called(ctx, linkID, remoteAddress, userAgent, referrer)
	return args.Error(0)
}

func (r *MockVisitRepository) ForEachByLink(ctx context.Context, linkID int64, fn func(models.Visit) error) error {
	args := r.Called(ctx, linkID)
	if err := args.Error(0); err != nil {
		return err
	}

	for _, v := range r.visits {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func newCaller(id int64, rights ...string) *models.Caller {
	c := &models.Caller{
		ID:       id,
		Username: "tester",
		Rights:   make(map[string]bool),
	}
	for _, right := range rights {
		c.Rights[right] = true
	}
	return c
}
