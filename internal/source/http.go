package source

import (
	"context"
	"grayscale-detector/internal/pixel"
	"grayscale-detector/internal/retry"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HTTPConfig struct {
	// Timeout bounds the whole request including the body. Zero means none.
	Timeout time.Duration
	// MaxBodySize caps the number of bytes read from the response.
	MaxBodySize int64
	UserAgent   string

	RetryStrategy retry.Strategy
	RetryOn       *retry.On

	Base   http.RoundTripper
	Logger *slog.Logger
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		MaxBodySize:   64 << 20,
		UserAgent:     "grayscale-detector/1.0",
		RetryStrategy: retry.NewNever(),
	}
}

type httpSource struct {
	client *http.Client
	config HTTPConfig
}

func NewHTTPSource(h HTTPConfig) Source {
	base := h.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return &httpSource{
		client: &http.Client{
			Timeout: h.Timeout,
			Transport: otelhttp.NewTransport(&retry.Transport{
				Base:          base,
				RetryStrategy: h.RetryStrategy,
				RetryOn:       h.RetryOn,
				Logger:        h.Logger,
			}),
		},
		config: h,
	}
}

func (s *httpSource) Fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	request.Header.Set("Accept", "image/*,*/*;q=0.8")
	if s.config.UserAgent != "" {
		request.Header.Set("User-Agent", s.config.UserAgent)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &FetchError{URL: url, StatusCode: response.StatusCode}
	}

	body := io.Reader(response.Body)
	if s.config.MaxBodySize > 0 {
		body = io.LimitReader(response.Body, s.config.MaxBodySize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: response.StatusCode, Err: err}
	}
	if s.config.MaxBodySize > 0 && int64(len(data)) > s.config.MaxBodySize {
		return nil, &FetchError{URL: url, StatusCode: response.StatusCode, Err: ErrBodyTooLarge}
	}

	return Decode(url, data)
}
