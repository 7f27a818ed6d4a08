package source

import (
	"context"
	"grayscale-detector/internal/pixel"
	neturl "net/url"
	"strings"
	"sync"
)

// Factory builds a Source on first use, so backends that need credentials or
// a browser cost nothing until a URL asks for them.
type Factory func(ctx context.Context) (Source, error)

// Router dispatches a URL to the Source registered for its scheme. URLs
// without a scheme are treated as file paths.
type Router struct {
	mu        sync.Mutex
	factories map[string]Factory
	sources   map[string]Source
}

func NewRouter() *Router {
	return &Router{
		factories: map[string]Factory{},
		sources:   map[string]Source{},
	}
}

func (r *Router) Register(scheme string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[scheme] = factory
	delete(r.sources, scheme)
}

// Static wraps an already built Source as a Factory.
func Static(s Source) Factory {
	return func(context.Context) (Source, error) {
		return s, nil
	}
}

func (r *Router) Fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	s, err := r.resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.Fetch(ctx, url)
}

func (r *Router) resolve(ctx context.Context, url string) (Source, error) {
	scheme := Scheme(url)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sources[scheme]; ok {
		return s, nil
	}
	factory, ok := r.factories[scheme]
	if !ok {
		return nil, &FetchError{URL: url, Err: ErrUnsupportedScheme}
	}
	s, err := factory(ctx)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	r.sources[scheme] = s
	return s, nil
}

// Scheme returns the lower-cased scheme of url, "file" for bare paths.
func Scheme(url string) string {
	u, err := neturl.Parse(url)
	if err != nil || len(u.Scheme) <= 1 {
		// A single letter is a Windows drive, not a scheme.
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

type Config struct {
	HTTP       HTTPConfig
	File       FileConfig
	S3         S3Config
	Screenshot ScreenshotConfig
	// InstallBrowser downloads Chromium before the first screenshot.
	InstallBrowser bool
}

func DefaultConfig() Config {
	return Config{
		HTTP:       DefaultHTTPConfig(),
		Screenshot: DefaultScreenshotConfig(),
	}
}

// NewDefaultRouter registers every built-in backend: http(s), file paths,
// s3://bucket/key and screenshot+http(s) page captures.
func NewDefaultRouter(c Config) *Router {
	r := NewRouter()

	httpSource := Static(NewHTTPSource(c.HTTP))
	r.Register("http", httpSource)
	r.Register("https", httpSource)
	r.Register("file", Static(NewFileSource(c.File)))
	r.Register("s3", func(ctx context.Context) (Source, error) {
		return NewS3Source(ctx, c.S3)
	})

	screenshot := func(ctx context.Context) (Source, error) {
		if c.InstallBrowser {
			if err := installBrowser(); err != nil {
				return nil, err
			}
		}
		return NewScreenshotSource(c.Screenshot), nil
	}
	r.Register(ScreenshotScheme+"http", screenshot)
	r.Register(ScreenshotScheme+"https", screenshot)

	return r
}
