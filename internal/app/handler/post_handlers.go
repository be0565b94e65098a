package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/models"
)

type PostHandler struct {
	urlService service.URLServiceIface
	logger     *zap.Logger
}

func NewPost(s service.URLServiceIface, l *zap.Logger) *PostHandler {
	return &PostHandler{
		urlService: s,
		logger:     l,
	}
}

// Shorten handles POST /shorten. It answers 201 with the new short URL.
func (h *PostHandler) Shorten(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var request models.CreateRequest
	if err := decodeJSONBody(res, req, &request); err != nil {
		writeError(res, h.logger, err)
		return
	}

	if request.OriginalURL == "" {
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{
			Detail:    "original_url is required",
			ErrorCode: "INVALID_URL",
		})
		return
	}

	var expiresAt *time.Time
	if request.ExpiresAt != "" {
		t, err := service.ParseExpiry(request.ExpiresAt)
		if err != nil {
			writeError(res, h.logger, err)
			return
		}
		expiresAt = &t
	}

	r, err := h.urlService.CreateURLRecord(ctx, request.OriginalURL, request.CustomCode, expiresAt)
	if err != nil {
		h.logger.Info("cannot shorten url", zap.String("original", request.OriginalURL), zap.Error(err))
		writeError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusCreated, models.CreateResponse{
		OriginalURL: r.Original,
		ShortCode:   r.Short,
		ShortURL:    h.urlService.ShortURL(r.Short),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	})
}
