package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/metrics"
	"github.com/atinyakov/shortlink/internal/storage"
)

// maxGenerateAttempts bounds the generate-check-write loop for a new record.
const maxGenerateAttempts = 10

type URLService struct {
	repository Storage
	generator  *CodeGenerator
	logger     *zap.Logger
	baseURL    string
	now        func() time.Time
	clicks     chan<- string
}

// Option configures a URLService.
type Option func(*URLService)

// WithClock replaces time.Now for creation timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *URLService) {
		s.now = now
	}
}

// WithClickQueue makes ResolveURL hand click events to a worker instead of
// incrementing the counter inline.
func WithClickQueue(ch chan<- string) Option {
	return func(s *URLService) {
		s.clicks = ch
	}
}

func NewURL(repo Storage, generator *CodeGenerator, logger *zap.Logger, baseURL string, opts ...Option) *URLService {
	s := &URLService{
		repository: repo,
		generator:  generator,
		logger:     logger,
		baseURL:    baseURL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *URLService) PingContext(ctx context.Context) error {
	return s.repository.PingContext(ctx)
}

// CreateURLRecord normalizes and validates original, then stores it under
// customCode or, when customCode is empty, under a freshly generated code.
func (s *URLService) CreateURLRecord(ctx context.Context, original string, customCode string, expiresAt *time.Time) (*storage.URLRecord, error) {
	normalized := NormalizeURL(original)
	if !ValidateURL(normalized) {
		metrics.URLCreationTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, original)
	}

	record := storage.URLRecord{
		Original:  normalized,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if expiresAt != nil {
		t := expiresAt.UTC().Truncate(time.Microsecond)
		record.ExpiresAt = &t
	}

	var (
		r   *storage.URLRecord
		err error
	)
	if customCode != "" {
		r, err = s.createWithCustomCode(ctx, record, customCode)
	} else {
		r, err = s.createWithGeneratedCode(ctx, record)
	}

	switch {
	case err == nil:
		metrics.URLCreationTotal.WithLabelValues("created").Inc()
		s.logger.Info("short url created", zap.String("short", r.Short), zap.String("original", r.Original))
	case errors.Is(err, storage.ErrConflict):
		metrics.URLCreationTotal.WithLabelValues("conflict").Inc()
	case errors.Is(err, ErrInvalidCode):
		metrics.URLCreationTotal.WithLabelValues("invalid").Inc()
	default:
		metrics.URLCreationTotal.WithLabelValues("error").Inc()
		s.logger.Error("cannot create short url", zap.Error(err))
	}

	return r, err
}

func (s *URLService) createWithCustomCode(ctx context.Context, record storage.URLRecord, code string) (*storage.URLRecord, error) {
	if !s.generator.Validate(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}

	exists, err := s.repository.Exists(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("check short code: %w", err)
	}
	if exists {
		return nil, storage.ErrConflict
	}

	record.Short = code
	r, err := s.repository.Write(ctx, record)
	if err != nil {
		// lost the race between the check and the write
		if errors.Is(err, storage.ErrConflict) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("write record: %w", err)
	}

	return r, nil
}

func (s *URLService) createWithGeneratedCode(ctx context.Context, record storage.URLRecord) (*storage.URLRecord, error) {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code := s.generator.Generate()

		exists, err := s.repository.Exists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check short code: %w", err)
		}
		if exists {
			metrics.CodeCollisionsTotal.Inc()
			s.logger.Debug("generated code taken", zap.String("short", code), zap.Int("attempt", attempt))
			continue
		}

		record.Short = code
		r, err := s.repository.Write(ctx, record)
		if errors.Is(err, storage.ErrConflict) {
			metrics.CodeCollisionsTotal.Inc()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("write record: %w", err)
		}

		return r, nil
	}

	return nil, ErrExhausted
}

// GetURLByShort returns the active record for short. Malformed codes are
// reported as not found.
func (s *URLService) GetURLByShort(ctx context.Context, short string) (*storage.URLRecord, error) {
	if !s.generator.Validate(short) {
		return nil, storage.ErrNotFound
	}

	return s.repository.FindByShort(ctx, short)
}

// ResolveURL is the redirect path: it looks the code up, refuses expired
// records and counts one click.
func (s *URLService) ResolveURL(ctx context.Context, short string) (*storage.URLRecord, error) {
	r, err := s.GetURLByShort(ctx, short)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.URLAccessTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	if s.IsExpired(r) {
		metrics.URLAccessTotal.WithLabelValues("expired").Inc()
		return nil, ErrExpired
	}

	if err := s.recordClick(ctx, short); err != nil {
		s.logger.Error("cannot record click", zap.String("short", short), zap.Error(err))
		return nil, err
	}

	metrics.URLAccessTotal.WithLabelValues("redirect").Inc()
	return r, nil
}

func (s *URLService) recordClick(ctx context.Context, short string) error {
	if s.clicks == nil {
		return s.repository.IncrementClicks(ctx, short)
	}

	select {
	case s.clicks <- short:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *URLService) UpdateURLRecord(ctx context.Context, short string, original string) (*storage.URLRecord, error) {
	if !s.generator.Validate(short) {
		return nil, storage.ErrNotFound
	}

	normalized := NormalizeURL(original)
	if !ValidateURL(normalized) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, original)
	}

	r, err := s.repository.UpdateOriginal(ctx, short, normalized)
	if err != nil {
		return nil, err
	}

	s.logger.Info("short url updated", zap.String("short", short), zap.String("original", normalized))
	return r, nil
}

func (s *URLService) DeleteURLRecord(ctx context.Context, short string) error {
	if !s.generator.Validate(short) {
		return storage.ErrNotFound
	}

	if err := s.repository.Delete(ctx, short); err != nil {
		return err
	}

	s.logger.Info("short url deleted", zap.String("short", short))
	return nil
}

func (s *URLService) IncrementClicks(ctx context.Context, short string) error {
	return s.repository.IncrementClicks(ctx, short)
}

func (s *URLService) ListURLRecords(ctx context.Context) ([]storage.URLRecord, error) {
	return s.repository.ReadActive(ctx)
}

func (s *URLService) IsExpired(r *storage.URLRecord) bool {
	return IsExpired(r.ExpiresAt, s.now())
}

func (s *URLService) ShortURL(short string) string {
	return ShortURL(s.baseURL, short)
}
