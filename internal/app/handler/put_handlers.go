package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/models"
)

type PutHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewPut(s service.URLServiceIface, l *zap.Logger) *PutHandler {
	return &PutHandler{
		service: s,
		logger:  l,
	}
}

// Update handles PUT /{code} and answers with the updated record.
func (h *PutHandler) Update(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var request models.UpdateRequest
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

	r, err := h.service.UpdateURLRecord(ctx, chi.URLParam(req, "code"), request.OriginalURL)
	if err != nil {
		writeError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusOK, toInfo(h.service, r))
}
