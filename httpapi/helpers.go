package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/auth"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/logging"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const redactedMessage = "internal server error"

type errorResponse struct {
	Error                string   `json:"error"`
	AvailableCollections []string `json:"availableCollections,omitempty"`
	Details              string   `json:"details,omitempty"`
}

func encode(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("json encoding error: %s", err)
	}
	return nil
}

func respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := encode(w, status, v); err != nil {
		logging.FromContext(r.Context()).Error("response write error", zap.Error(err))
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	return cs.Invalid("invalid request body: %v", err)
}

// statusOf maps an error to the HTTP status it is reported with.
func statusOf(err error) int {
	var notFound *cs.NotFoundError

	switch {
	case errors.As(err, &notFound), errors.Is(err, settings.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, cs.ErrValidation), errors.Is(err, settings.ErrInvalidName),
		errors.Is(err, settings.ErrPathConflict), errors.Is(err, settings.ErrEmptyPath),
		errors.Is(err, settings.ErrEmptyValue):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, cs.ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error, details string) {
	status := statusOf(err)
	body := errorResponse{Error: err.Error()}

	var notFound *cs.NotFoundError
	if errors.As(err, &notFound) && notFound.Kind != cs.KindDocument {
		body.AvailableCollections = notFound.Available
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		body.Details = details
		if s.cfg.RedactErrors {
			body.Error = redactedMessage
		}
	}

	respond(w, r, status, body)
}
