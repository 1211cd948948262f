package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Message string           `json:"message"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotInitialized:
		return http.StatusConflict
	case domain.KindFilterRequestFailed:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Errors outside the taxonomy come from the engine
// and are reported as bad gateway without a kind.
func writeError(w http.ResponseWriter, err error) {
	var abe *domain.AdBlockerError
	if errors.As(err, &abe) {
		writeJSON(w, statusFor(abe.Kind), errorBody{Kind: abe.Kind, Message: abe.Message})
		return
	}
	writeJSON(w, http.StatusBadGateway, errorBody{Message: err.Error()})
}

const maxBodyBytes = 1 << 20

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) (bool, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body: " + err.Error()})
}
