package retry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that repeats idempotent requests according
// to RetryOn and RetryStrategy. Without a strategy it never retries.
type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
	Logger        *slog.Logger
}

type contextKey string

const retryCountContextKey contextKey = "retryCount"

func getRetryCount(ctx context.Context) uint {
	i, ok := ctx.Value(retryCountContextKey).(uint)
	if !ok {
		return 0
	}
	return i
}

func setRetryCount(ctx context.Context, retryCount uint) context.Context {
	return context.WithValue(ctx, retryCountContextKey, retryCount)
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	retryCount := getRetryCount(request.Context())
	sleep, exceeded := t.retryStrategy().Sleep(retryCount)
	retriable := !exceeded && t.RetryOn != nil && isIdempotent(request)

	response, err := t.base().RoundTrip(request)
	if err != nil {
		if !retriable || !t.RetryOn.CheckError(err) {
			return nil, err
		}
		t.logger().Debug("retrying request", "url", request.URL.String(), "attempt", retryCount+1, "error", err)
	} else {
		if !retriable || !t.RetryOn.CheckResponse(response) {
			return response, nil
		}
		t.logger().Debug("retrying request", "url", request.URL.String(), "attempt", retryCount+1, "status", response.StatusCode)
		// Drain so the connection can be reused by the next attempt.
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 64<<10))
		_ = response.Body.Close()
	}

	timer := time.NewTimer(sleep)
	select {
	case <-request.Context().Done():
		timer.Stop()
		return nil, request.Context().Err()
	case <-timer.C:
	}
	return t.RoundTrip(request.WithContext(setRetryCount(request.Context(), retryCount+1)))
}

func isIdempotent(request *http.Request) bool {
	switch request.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return request.Body == nil || request.Body == http.NoBody
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
