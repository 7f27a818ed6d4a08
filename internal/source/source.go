package source

import (
	"context"
	"errors"
	"fmt"
	"grayscale-detector/internal/pixel"
	"net/http"
)

// Source fetches the resource behind a URL and decodes it into an RGB buffer.
type Source interface {
	Fetch(ctx context.Context, url string) (*pixel.Buffer, error)
}

var (
	ErrEmptyImage        = errors.New("image has no pixels")
	ErrBodyTooLarge      = errors.New("response body too large")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// FetchError reports that the resource could not be retrieved: a transport
// failure, a non-success status or an unreadable body.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError reports that the fetched bytes are not a usable image.
// MIMEType is the sniffed content type, empty when unknown.
type DecodeError struct {
	URL      string
	MIMEType string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.MIMEType != "" {
		return fmt.Sprintf("failed to decode %s (%s): %v", e.URL, e.MIMEType, e.Err)
	}
	return fmt.Sprintf("failed to decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
