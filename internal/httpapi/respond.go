package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/filecrate/filecrate/internal/errs"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to an HTTP status and writes the JSON body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{
		Error: err.Error(),
		Code:  errs.CodeOf(err),
	})
}

func statusFor(err error) int {
	switch {
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsAlreadyExists(err):
		return http.StatusConflict
	case errs.IsValidationFailed(err):
		return http.StatusUnprocessableEntity
	case errs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errs.IsResourceExhausted(err):
		return http.StatusInsufficientStorage
	case errs.IsCancelled(err):
		return http.StatusRequestTimeout
	case errs.IsSignedURLUnsupported(err):
		return http.StatusNotImplemented
	case errs.IsProvider(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// badRequest is for malformed request bodies and parameters, before the
// store is involved.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
