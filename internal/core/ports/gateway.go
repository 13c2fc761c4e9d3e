package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/codestation/lms-web/internal/core/domain"
)

// Request is one outbound call to the LMS API. Path is relative to the
// configured base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// JSON is encoded as the request body when non-nil.
	JSON any
	// Multipart takes precedence over JSON.
	Multipart *Multipart
	// Credential overrides the session credential for this call only.
	// 401 responses to such calls never touch the session.
	Credential *domain.Credential
	// Anonymous omits the Authorization header.
	Anonymous bool
}

// Multipart is a form body with an optional file part.
type Multipart struct {
	Fields    map[string]string
	FileField string
	File      *domain.Avatar
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the body into out. Empty bodies leave out untouched.
func (r *Response) Decode(out any) error {
	if r == nil || len(r.Body) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Gateway is the single seam through which the LMS API is reached.
// Non-2xx replies come back as translated domain errors.
type Gateway interface {
	Do(ctx context.Context, req Request) (*Response, error)
}
