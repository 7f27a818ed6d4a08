package detect

import (
	"context"
	"grayscale-detector/internal/classify"
	diffimage "grayscale-detector/internal/diff/image"
	"grayscale-detector/internal/pixel"
	"grayscale-detector/internal/source"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/xerrors"
)

const tracerName = "grayscale-detector/internal/detect"

// Result is the outcome of one grayscale check.
type Result struct {
	URL            string                  `json:"url"`
	Tolerance      int                     `json:"tolerance"`
	DiffSum        int64                   `json:"diffSum"`
	PixelCount     int64                   `json:"pixelCount"`
	Threshold      float64                 `json:"threshold"`
	Classification classify.Classification `json:"classification"`
}

type Detector struct {
	Source    source.Source
	Differ    diffimage.Differ
	Tolerance int
	Logger    *slog.Logger
}

// Run fetches url, compares it with its grayscale rendition and classifies the
// aggregated difference against the tolerance.
func (d *Detector) Run(ctx context.Context, url string) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "detect")
	defer span.End()
	span.SetAttributes(
		attribute.String("image.url", url),
		attribute.Int("detect.tolerance", d.Tolerance),
	)

	logger := d.logger().With("url", url)

	now := time.Now()
	buf, err := d.fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, xerrors.Errorf("failed to load image: %w", err)
	}
	logger.Debug("image fetched", "width", buf.Width, "height", buf.Height, "elapsed", time.Since(now))

	now = time.Now()
	_, diffSpan := otel.Tracer(tracerName).Start(ctx, "diff")
	diff := d.differ().Calculate(buf)
	diffSpan.End()
	logger.Debug("difference aggregated", "sum", diff.Sum, "pixels", diff.PixelCount, "elapsed", time.Since(now))

	result := &Result{
		URL:            url,
		Tolerance:      d.Tolerance,
		DiffSum:        diff.Sum,
		PixelCount:     diff.PixelCount,
		Threshold:      classify.Threshold(diff.PixelCount, d.Tolerance),
		Classification: classify.Classify(diff.Sum, diff.PixelCount, d.Tolerance),
	}
	span.SetAttributes(attribute.String("detect.classification", result.Classification.String()))
	logger.Info("image classified", "classification", result.Classification, "sum", result.DiffSum, "threshold", result.Threshold)

	return result, nil
}

func (d *Detector) fetch(ctx context.Context, url string) (*pixel.Buffer, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "fetch")
	defer span.End()

	return d.Source.Fetch(ctx, url)
}

func (d *Detector) differ() diffimage.Differ {
	if d.Differ != nil {
		return d.Differ
	}
	return diffimage.NewGrayscaleDiff()
}

func (d *Detector) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
