package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Spok95/supply-requests/internal/domain/errs"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	_ = writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError answers with the error kind's status and a user-safe message.
func writeError(w http.ResponseWriter, err error) {
	_ = writeJSON(w, statusOf(errs.KindOf(err)), envelope{
		Success: false,
		Message: errs.UserMessage(err),
		Data:    map[string]string{"kind": string(errs.KindOf(err))},
	})
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidState, errs.KindInsufficientStock:
		return http.StatusConflict
	case errs.KindInvalidQuantity:
		return http.StatusUnprocessableEntity
	case errs.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// readJSON decodes one JSON object into data. Decoder details go to the log,
// the caller only sees a fixed message.
func (h *handler) readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(data); err != nil {
		h.log.DebugContext(r.Context(), "decode request body", "path", r.URL.Path, "error", err)
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return errs.New(errs.KindValidation, "decode", "malformed JSON body")
		}
		return errs.New(errs.KindValidation, "decode", "invalid request body")
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Newf(errs.KindValidation, "decode", "invalid %s", name)
	}
	return id, nil
}

// queryID parses an optional positive id from the query string.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.New(errs.KindValidation, "decode", fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func validation(err error) error {
	return errs.New(errs.KindValidation, "decode", err.Error())
}
