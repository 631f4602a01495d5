package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"cargo_ingest/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	FetchListings(ctx context.Context) ([]domain.ScrapedListing, error)
}

type LoadStore interface {
	ExistsBatch(ctx context.Context, tripIDs []string) (map[string]struct{}, error)
	Save(ctx context.Context, record *domain.LoadRecord) (*domain.LoadRecord, error)
	MarkNotified(ctx context.Context, tripID string) error
	FindAll(ctx context.Context, q domain.ListQuery) ([]domain.LoadRecord, error)
	FindNotNotified(ctx context.Context, q domain.ListQuery) ([]domain.LoadRecord, error)
	Count(ctx context.Context) (int, error)
	CountNotNotified(ctx context.Context) (int, error)
}

type RunStore interface {
	Record(ctx context.Context, run *domain.IngestionRun) error
	Latest(ctx context.Context) (*domain.IngestionRun, error)
}

type Notifier interface {
	Send(ctx context.Context, phone string, record *domain.LoadRecord) error
}

type RecipientDirectory interface {
	Recipients() []string
	Lookup(name string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, record *domain.LoadRecord) error
	Close() error
}
