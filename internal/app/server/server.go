// Package server assembles the HTTP router of the shortener.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/handler"
	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/middleware"
)

func Init(svc service.URLServiceIface, logger *zap.Logger) *chi.Mux {
	postHandler := handler.NewPost(svc, logger)
	getHandler := handler.NewGet(svc, logger)
	putHandler := handler.NewPut(svc, logger)
	deleteHandler := handler.NewDelete(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.WithRequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithMetrics)

	// promhttp negotiates its own compression
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.WithGzip)

		r.Get("/health", getHandler.Health)
		r.Get("/ping", getHandler.PingDB)

		r.Get("/", getHandler.List)
		r.Post("/shorten", postHandler.Shorten)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", getHandler.Redirect)
			r.Put("/", putHandler.Update)
			r.Delete("/", deleteHandler.Delete)
			r.Get("/info", getHandler.Info)
		})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}
