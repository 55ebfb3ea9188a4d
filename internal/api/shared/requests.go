package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance; request structs carry validate tags.
var validate = validator.New()

// ErrEmptyBody is returned when a request that requires a body has none.
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes the request body into v. Unknown fields are
// rejected: a misspelled field in a create or run request must fail the
// request rather than silently fall back to defaults.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

// ValidateRequest validates v against its validate tags.
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}
