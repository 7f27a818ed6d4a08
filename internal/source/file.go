package source

import (
	"context"
	"grayscale-detector/internal/pixel"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
)

type fileSource struct {
	config FileConfig
}

type FileConfig struct {
	// Directory resolves relative paths. Defaults to the working directory.
	Directory string
}

func NewFileSource(f FileConfig) Source {
	if f.Directory == "" {
		f.Directory = "."
	}

	return &fileSource{
		config: f,
	}
}

// Fetch accepts file:// URLs and plain paths.
func (s *fileSource) Fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	path := url
	if strings.HasPrefix(url, "file://") {
		u, err := neturl.Parse(url)
		if err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
		path = u.Path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.config.Directory, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return Decode(url, data)
}
