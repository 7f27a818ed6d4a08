package retry_test

import (
	"errors"
	"grayscale-detector/internal/retry"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParseOn(t *testing.T, s string) *retry.On {
	t.Helper()
	o, err := retry.ParseOn(s)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestParseOn(t *testing.T) {
	for _, s := range []string{"", "5xx", "gateway-error, connect-failure", "retriable-4xx,too-many-requests,418"} {
		if _, err := retry.ParseOn(s); err != nil {
			t.Errorf("ParseOn(%q) returned %v", s, err)
		}
	}
	for _, s := range []string{"bogus", "5xx,nope", "42", "600"} {
		if _, err := retry.ParseOn(s); err == nil {
			t.Errorf("ParseOn(%q) should fail", s)
		}
	}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name     string
		receiver string
		in       int
		want     bool
	}{
		{line(), "5xx", 500, true},
		{line(), "5xx", 404, false},
		{line(), "gateway-error", 502, true},
		{line(), "gateway-error", 504, true},
		{line(), "gateway-error", 500, false},
		{line(), "retriable-4xx", 409, true},
		{line(), "retriable-4xx", 404, false},
		{line(), "too-many-requests", 429, true},
		{line(), "too-many-requests", 503, false},
		{line(), "418", 418, true},
		{line(), "418", 404, false},
		{line(), "", 503, false},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := mustParseOn(t, tt.receiver)
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := receiver.CheckResponse(&http.Response{StatusCode: in})
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckError(t *testing.T) {
	tests := []struct {
		name     string
		receiver string
		in       error
		want     bool
	}{
		{line(), "5xx", io.EOF, true},
		{line(), "5xx", &net.DNSError{IsTemporary: true}, true},
		{line(), "5xx", errors.New(""), false},
		{line(), "connect-failure", io.ErrUnexpectedEOF, true},
		{line(), "connect-failure", &net.DNSError{IsTemporary: true}, true},
		{line(), "connect-failure", &net.DNSError{IsNotFound: true}, false},
		{line(), "gateway-error", io.EOF, false},
		{line(), "too-many-requests", &net.DNSError{IsTemporary: true}, false},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := mustParseOn(t, tt.receiver)
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := receiver.CheckError(in)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultRetryOn(t *testing.T) {
	o := retry.NewDefaultRetryOn()
	for code, want := range map[int]bool{200: false, 404: false, 429: true, 500: false, 502: true, 503: true} {
		if got := o.CheckResponse(&http.Response{StatusCode: code}); got != want {
			t.Errorf("CheckResponse(%d) = %v, want %v", code, got, want)
		}
	}
	if !o.CheckError(io.EOF) {
		t.Error("expected EOF to be retried")
	}
}
