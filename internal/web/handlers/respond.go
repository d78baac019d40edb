package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/atlasops/backoffice/internal/models"
)

// apiResponse is the envelope for all API JSON responses.
type apiResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Data       interface{}       `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Pagination *paginationJSON   `json:"pagination,omitempty"`
}

type paginationJSON struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
	PageSize    int `json:"pageSize"`
}

func newPaginationJSON(p models.Pagination) *paginationJSON {
	return &paginationJSON{
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		TotalCount:  p.TotalCount,
		PageSize:    p.PageSize,
	}
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, apiResponse{Success: true, Message: message, Data: data})
}

func respondList(w http.ResponseWriter, data interface{}, pagination models.Pagination) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success:    true,
		Data:       data,
		Pagination: newPaginationJSON(pagination),
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Message: message})
}

func respondValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, apiResponse{
		Success: false,
		Message: "validation failed",
		Errors:  fields,
	})
}

// respondInternal logs the error and returns a generic message; the
// underlying error text is exposed only outside production.
func respondInternal(w http.ResponseWriter, err error, expose bool) {
	slog.Error("internal server error", "error", err)
	message := "internal server error"
	if expose && err != nil {
		message = err.Error()
	}
	respondError(w, http.StatusInternalServerError, message)
}

// decodeJSON decodes the request body into v, enforcing the size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}
