package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/models"
)

type GetHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewGet(s service.URLServiceIface, l *zap.Logger) *GetHandler {
	return &GetHandler{
		service: s,
		logger:  l,
	}
}

// Redirect handles GET /{code}: 302 to the original URL and one more click.
func (h *GetHandler) Redirect(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	code := chi.URLParam(req, "code")

	r, err := h.service.ResolveURL(ctx, code)
	if err != nil {
		writeError(res, h.logger, err)
		return
	}

	http.Redirect(res, req, r.Original, http.StatusFound)
}

// Info handles GET /{code}/info.
func (h *GetHandler) Info(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	r, err := h.service.GetURLByShort(ctx, chi.URLParam(req, "code"))
	if err != nil {
		writeError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusOK, toInfo(h.service, r))
}

// List handles GET / with every active record, newest first.
func (h *GetHandler) List(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	records, err := h.service.ListURLRecords(ctx)
	if err != nil {
		writeError(res, h.logger, err)
		return
	}

	infos := make([]models.InfoResponse, 0, len(records))
	for i := range records {
		infos = append(infos, toInfo(h.service, &records[i]))
	}

	writeJSON(res, http.StatusOK, infos)
}

func (h *GetHandler) Health(res http.ResponseWriter, _ *http.Request) {
	writeJSON(res, http.StatusOK, models.HealthResponse{Status: "healthy"})
}

func (h *GetHandler) PingDB(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()
	if err := h.service.PingContext(ctx); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}
