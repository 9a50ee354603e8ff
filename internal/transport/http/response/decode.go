package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
)

// maxBodyBytes caps request bodies; account payloads are tiny.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into dst.
// Unknown fields are ignored; multiple JSON values are rejected. An empty body
// decodes to the zero value so field validation can report what is missing.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidJSON(err)
	}

	// Disallow trailing data: {}{}
	if err := dec.Decode(&struct{}{}); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidJSON(err)
	}

	return domain.ErrInvalidJSON(errors.New("multiple JSON values"))
}
