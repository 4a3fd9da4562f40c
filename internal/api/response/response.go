package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nekonik/registry/internal/apperr"
)

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

func NewPaginationMeta(page, limit, total int) PaginationMeta {
	return PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
	}
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// FromError writes err using its apperr kind. Internal errors are logged with
// their cause and shown to the client only as a generic message.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	status, code := e.Kind.HTTPStatus()

	if e.Kind == apperr.KindInternal {
		slog.Error("internal error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		Error(w, status, code, apperr.InternalMessage, nil)
		return
	}
	if e.Kind == apperr.KindUnavailable {
		slog.Warn("dependency unavailable", "path", r.URL.Path, "error", err)
	}

	var details any
	if len(e.Details) > 0 {
		details = e.Details
	}
	Error(w, status, code, e.Message, details)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
