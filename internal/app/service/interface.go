package service

import (
	"context"
	"time"

	"github.com/atinyakov/shortlink/internal/storage"
)

//go:generate mockgen -source=interface.go -destination=../../mocks/mock_service.go -package=mocks

// Storage is the persistence contract every backend implements.
// Only active records are visible, except to Exists which sees all of them.
type Storage interface {
	Write(context.Context, storage.URLRecord) (*storage.URLRecord, error)
	FindByShort(context.Context, string) (*storage.URLRecord, error)
	Exists(context.Context, string) (bool, error)
	UpdateOriginal(ctx context.Context, short string, original string) (*storage.URLRecord, error)
	Delete(context.Context, string) error
	IncrementClicks(context.Context, string) error
	ReadActive(context.Context) ([]storage.URLRecord, error)
	PingContext(context.Context) error
	Close() error
}

// URLServiceIface is the service surface consumed by the HTTP handlers and the gRPC server.
type URLServiceIface interface {
	CreateURLRecord(ctx context.Context, original string, customCode string, expiresAt *time.Time) (*storage.URLRecord, error)
	GetURLByShort(ctx context.Context, short string) (*storage.URLRecord, error)
	ResolveURL(ctx context.Context, short string) (*storage.URLRecord, error)
	UpdateURLRecord(ctx context.Context, short string, original string) (*storage.URLRecord, error)
	DeleteURLRecord(ctx context.Context, short string) error
	IncrementClicks(ctx context.Context, short string) error
	ListURLRecords(ctx context.Context) ([]storage.URLRecord, error)
	IsExpired(r *storage.URLRecord) bool
	ShortURL(short string) string
	PingContext(ctx context.Context) error
}
