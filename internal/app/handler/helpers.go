// Package handler contains the HTTP handlers of the shortener: creating,
// resolving, inspecting, updating and deleting short URLs. It also decodes
// JSON bodies and maps service errors to HTTP status codes.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/models"
	"github.com/atinyakov/shortlink/internal/storage"
)

const requestTimeout = 3 * time.Second

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int    // HTTP status code for the error
	msg    string // Error message
}

// Error returns the error message for a malformed request.
func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a JSON request body into the given destination struct.
// It reads the content from the request body, checks for proper JSON formatting,
// and handles common errors related to JSON parsing.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		if mediaType != "application/json" {
			msg := "Content-Type header is not application/json"
			return &malformedRequest{status: http.StatusUnsupportedMediaType, msg: msg}
		}
	}

	// Limit the size of the request body to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	// Decode the JSON body into the destination struct
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var timeError *time.ParseError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case err.Error() == "http: request body too large":
			msg := "Request body must not be larger than 1MB"
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: msg}

		case errors.As(err, &timeError):
			msg := fmt.Sprintf("Request body contains an invalid timestamp %q", timeError.Value)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		default:
			return err
		}
	}

	// Ensure the body only contains a single JSON object
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &malformedRequest{status: http.StatusBadRequest, msg: msg}
	}

	return nil
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)

	_ = json.NewEncoder(res).Encode(v)
}

// writeError maps service and storage errors to an HTTP status and an ErrorResponse.
func writeError(res http.ResponseWriter, logger *zap.Logger, err error) {
	var mr *malformedRequest

	switch {
	case errors.As(err, &mr):
		writeJSON(res, mr.status, models.ErrorResponse{Detail: mr.msg, ErrorCode: "MALFORMED_REQUEST"})
	case errors.Is(err, service.ErrInvalidURL):
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Detail: "Invalid URL", ErrorCode: "INVALID_URL"})
	case errors.Is(err, service.ErrInvalidExpiry):
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{
			Detail:    "expires_at must be an ISO 8601 timestamp",
			ErrorCode: "INVALID_EXPIRY",
		})
	case errors.Is(err, service.ErrInvalidCode):
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{
			Detail:    "Custom code must be alphanumeric and within the allowed length",
			ErrorCode: "INVALID_CODE",
		})
	case errors.Is(err, storage.ErrConflict):
		writeJSON(res, http.StatusConflict, models.ErrorResponse{Detail: "Short code already exists", ErrorCode: "CODE_EXISTS"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(res, http.StatusNotFound, models.ErrorResponse{Detail: "Short URL not found", ErrorCode: "NOT_FOUND"})
	case errors.Is(err, service.ErrExpired):
		writeJSON(res, http.StatusGone, models.ErrorResponse{Detail: "Short URL has expired", ErrorCode: "EXPIRED"})
	case errors.Is(err, service.ErrExhausted):
		logger.Error("short code space exhausted", zap.Error(err))
		writeJSON(res, http.StatusInternalServerError, models.ErrorResponse{
			Detail:    "Failed to generate unique short code",
			ErrorCode: "GENERATION_FAILED",
		})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(res, http.StatusInternalServerError, models.ErrorResponse{
			Detail:    http.StatusText(http.StatusInternalServerError),
			ErrorCode: "INTERNAL",
		})
	}
}

func toInfo(s service.URLServiceIface, r *storage.URLRecord) models.InfoResponse {
	return models.InfoResponse{
		OriginalURL: r.Original,
		ShortCode:   r.Short,
		ShortURL:    s.ShortURL(r.Short),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		Clicks:      r.Clicks,
		IsActive:    r.IsActive,
		Expired:     s.IsExpired(r),
	}
}
