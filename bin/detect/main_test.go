package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"grayscale-detector/internal/source"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func imageServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	encode := func(img image.Image) []byte {
		var buffer bytes.Buffer
		if err := png.Encode(&buffer, img); err != nil {
			t.Fatal(err)
		}
		return buffer.Bytes()
	}

	black := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(black.Pix); i += 4 {
		black.Pix[i] = 255
	}
	red := image.NewRGBA(image.Rect(0, 0, 1, 1))
	red.Set(0, 0, color.RGBA{R: 255, A: 255})

	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/black.png", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write(encode(black))
	})
	mux.HandleFunc("/red.png", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = w.Write(encode(red))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &requests
}

func TestRun(t *testing.T) {
	server, _ := imageServer(t)

	tests := []struct {
		name       string
		args       []string
		wantStdout string
	}{
		{"BlackIsBlackAndWhite", []string{"0", server.URL + "/black.png"}, "Black-and-white\n"},
		{"RedIsColorAtZero", []string{"0", server.URL + "/red.png"}, "Color\n"},
		{"RedIsColorAtHundred", []string{"100", server.URL + "/red.png"}, "Color\n"},
		{"Russian", []string{"-lang", "ru", "0", server.URL + "/black.png"}, "Черно-белая\n"},
		{"RussianColor", []string{"-lang", "ru-RU", "5", server.URL + "/red.png"}, "Цветная\n"},
	}
	for _, tt := range tests {
		name := tt.name
		args := tt.args
		wantStdout := tt.wantStdout
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), args, &stdout, &stderr); err != nil {
				t.Fatalf("run returned %v", err)
			}
			if diff := cmp.Diff(wantStdout, stdout.String()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if stderr.Len() != 0 {
				t.Errorf("unexpected log output %q", stderr.String())
			}
		})
	}
}

func TestRunJSON(t *testing.T) {
	server, _ := imageServer(t)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-format", "json", "10", server.URL + "/red.png"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}

	if strings.Count(stdout.String(), "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", stdout.String())
	}

	var got map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"url":            server.URL + "/red.png",
		"tolerance":      float64(10),
		"diffSum":        float64(107),
		"pixelCount":     float64(1),
		"threshold":      0.1,
		"classification": "color",
		"label":          "Color",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRunUsage(t *testing.T) {
	server, requests := imageServer(t)

	for _, args := range [][]string{
		{},
		{"5"},
		{"5", server.URL + "/black.png", "extra"},
	} {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), args, &stdout, &stderr)

		var usageErr *UsageError
		if !errors.As(err, &usageErr) {
			t.Errorf("run(%q) returned %v, want UsageError", args, err)
		}
		if !strings.HasPrefix(stdout.String(), usage) {
			t.Errorf("run(%q) printed %q, want usage on stdout", args, stdout.String())
		}
	}

	if got := atomic.LoadInt32(requests); got != 0 {
		t.Errorf("usage errors made %d requests", got)
	}
}

func TestRunBadTolerance(t *testing.T) {
	server, requests := imageServer(t)

	for _, tolerance := range []string{"five", "2.5", "-1", "-50", "101"} {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), []string{tolerance, server.URL + "/black.png"}, &stdout, &stderr)

		var usageErr *UsageError
		if !errors.As(err, &usageErr) {
			t.Errorf("tolerance %q: got %v, want UsageError", tolerance, err)
			continue
		}
		if !strings.HasPrefix(usageErr.Reason, "tolerance must be") {
			t.Errorf("tolerance %q: unexpected reason %q", tolerance, usageErr.Reason)
		}
		if stdout.Len() != 0 {
			t.Errorf("tolerance %q: unexpected output %q", tolerance, stdout.String())
		}
	}

	if got := atomic.LoadInt32(requests); got != 0 {
		t.Errorf("bad tolerances made %d requests", got)
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-h"}, &stdout, &stderr)

	var usageErr *UsageError
	if !errors.As(err, &usageErr) {
		t.Errorf("got %v, want UsageError", err)
	}
	if !strings.HasPrefix(stdout.String(), usage) {
		t.Errorf("printed %q, want usage on stdout", stdout.String())
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-colour", "5", "https://example.com/a.png"}, &stdout, &stderr)

	var usageErr *UsageError
	if !errors.As(err, &usageErr) {
		t.Fatalf("got %v, want UsageError", err)
	}
	if diff := cmp.Diff("flag provided but not defined: -colour", usageErr.Reason); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRunNotFound(t *testing.T) {
	server, _ := imageServer(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"5", server.URL + "/missing.png"}, &stdout, &stderr)

	var fetchErr *source.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("got %v, want FetchError", err)
	}
	if diff := cmp.Diff(http.StatusNotFound, fetchErr.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if stdout.Len() != 0 {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestRunUnknownFormat(t *testing.T) {
	server, _ := imageServer(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-format", "xml", "5", server.URL + "/black.png"}, &stdout, &stderr)

	var usageErr *UsageError
	if !errors.As(err, &usageErr) {
		t.Errorf("got %v, want UsageError", err)
	}
}
