package source

import (
	"context"
	"grayscale-detector/internal/pixel"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/xerrors"
)

// ScreenshotScheme prefixes a page URL whose rendering should be checked
// instead of the resource itself, e.g. screenshot+https://example.com/.
const ScreenshotScheme = "screenshot+"

type ScreenshotConfig struct {
	ViewportWidth  int
	ViewportHeight int
	FullPage       bool

	Timeout time.Duration
	Delay   time.Duration

	Headless                  bool
	ChromeDevtoolsProtocolURL string
}

func DefaultScreenshotConfig() ScreenshotConfig {
	return ScreenshotConfig{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		FullPage:       true,
		Timeout:        30 * time.Second,
		Delay:          time.Second,
		Headless:       true,
	}
}

type screenshotSource struct {
	config ScreenshotConfig
}

func NewScreenshotSource(s ScreenshotConfig) Source {
	return &screenshotSource{
		config: s,
	}
}

func installBrowser() error {
	if err := playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	}); err != nil {
		return xerrors.Errorf("failed to install playwright browsers: %w", err)
	}
	return nil
}

func (s *screenshotSource) Fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	pageURL := strings.TrimPrefix(url, ScreenshotScheme)

	data, err := s.capture(ctx, pageURL)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return Decode(url, data)
}

func (s *screenshotSource) capture(ctx context.Context, url string) ([]byte, error) {
	p, err := playwright.Run()
	if err != nil {
		return nil, xerrors.Errorf("failed to start playwright: %w", err)
	}
	defer p.Stop()

	var browser playwright.Browser
	if s.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(s.config.Headless),
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to launch browser: %w", err)
		}
		defer browser.Close()
	} else {
		browser, err = p.Chromium.ConnectOverCDP(s.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			return nil, xerrors.Errorf("failed to connect to browser via CDP at %s: %w", s.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	page, err := browser.NewPage()
	if err != nil {
		return nil, xerrors.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewportSize(s.config.ViewportWidth, s.config.ViewportHeight); err != nil {
		return nil, xerrors.Errorf("failed to set viewport size: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	response, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(s.config.Timeout.Milliseconds())),
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to navigate to %s: %w", url, err)
	}
	if response != nil && !response.Ok() {
		return nil, xerrors.Errorf("page %s answered with status %d", url, response.Status())
	}

	if s.config.Delay > 0 {
		select {
		case <-time.After(s.config.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// PNG keeps the rendering lossless; JPEG chroma subsampling would tint
	// gray pages.
	screenshot, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(s.config.FullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to take screenshot: %w", err)
	}

	return screenshot, nil
}
