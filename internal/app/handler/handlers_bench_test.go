package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/logger"
	"github.com/atinyakov/shortlink/internal/storage"
)

func newBenchService(b *testing.B) *service.URLService {
	b.Helper()

	mockStorage, _ := storage.CreateMemoryStorage()
	gen, err := service.NewCodeGenerator(service.CodeOptions{DefaultLength: 8, MinLength: 3, MaxLength: 20})
	if err != nil {
		b.Fatal(err)
	}

	return service.NewURL(mockStorage, gen, logger.New().Log, "http://localhost:8080")
}

func BenchmarkShorten(b *testing.B) {
	postHandler := NewPost(newBenchService(b), logger.New().Log)
	body := []byte(`{"original_url":"https://example.com"}`)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/shorten", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		postHandler.Shorten(httptest.NewRecorder(), req)
	}
}

func BenchmarkRedirect(b *testing.B) {
	svc := newBenchService(b)
	r, err := svc.CreateURLRecord(context.Background(), "https://example.com", "bench1", nil)
	if err != nil {
		b.Fatal(err)
	}

	getHandler := NewGet(svc, logger.New().Log)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", r.Short)
	req := httptest.NewRequest(http.MethodGet, "/"+r.Short, nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		getHandler.Redirect(httptest.NewRecorder(), req)
	}
}
