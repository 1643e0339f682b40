package tableau

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrGroupNotFound is returned by LookupGroupID when no group on the site
// carries the requested name.
var ErrGroupNotFound = errors.New("group not found")

// APIError is a non-success response from the REST API, carrying whatever
// error code, summary and detail the server included in the body.
type APIError struct {
	StatusCode int
	Code       string
	Summary    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %s - %s", e.Code, e.Summary, e.Detail)
}

// AuthError is a failed credential exchange. Sign-in and site switches wrap
// their failures in it so callers can tell a rejected login from any other
// API failure.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// newAPIError parses the tsResponse error element out of a non-success
// response. When the body is not parseable the status code alone is kept.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var parsed tsResponse
	if err := xml.Unmarshal(body, &parsed); err != nil || parsed.Error == nil {
		return apiErr
	}
	apiErr.Code = parsed.Error.Code
	apiErr.Summary = parsed.Error.Summary
	apiErr.Detail = parsed.Error.Detail
	return apiErr
}
