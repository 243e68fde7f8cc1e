package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/rcount/internal/fuzzy"
)

const maxBodyBytes = 4 << 20

var validate = validator.New()

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type errorBody struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Variable string `json:"variable,omitempty"`
	Label    string `json:"label,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFuzzyError reports an engine error with its code and the offending
// names. Configuration mistakes are 400, inputs the system cannot answer
// are 422.
func writeFuzzyError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Code: fuzzy.Code(err)}
	var fe *fuzzy.Error
	if errors.As(err, &fe) {
		body.Variable = fe.Variable
		body.Label = fe.Label
	}
	writeJSON(w, fuzzyStatus(err), body)
}

func fuzzyStatus(err error) int {
	switch {
	case errors.Is(err, fuzzy.ErrMissingInput), errors.Is(err, fuzzy.ErrDegenerateOutput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fuzzy.ErrNotBuilt), errors.Is(err, fuzzy.ErrSystemFrozen):
		return http.StatusInternalServerError
	case fuzzy.Code(err) != "":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a size-limited JSON body into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New("invalid request: " + strings.Join(msgs, "; "))
}
