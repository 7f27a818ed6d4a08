package report

import (
	"encoding/json"
	"fmt"
	"grayscale-detector/internal/classify"
	"grayscale-detector/internal/detect"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/xerrors"
)

const (
	grayscaleLabel = "Black-and-white"
	colorLabel     = "Color"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var translations = []struct {
	tag       language.Tag
	grayscale string
	color     string
}{
	// The first entry is the fallback.
	{language.English, grayscaleLabel, colorLabel},
	{language.Russian, "Черно-белая", "Цветная"},
}

var labels = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(translations[0].tag))
	for _, l := range translations {
		if err := b.SetString(l.tag, grayscaleLabel, l.grayscale); err != nil {
			panic(err)
		}
		if err := b.SetString(l.tag, colorLabel, l.color); err != nil {
			panic(err)
		}
	}
	return b
}()

var supported = func() []language.Tag {
	tags := make([]language.Tag, 0, len(translations))
	for _, l := range translations {
		tags = append(tags, l.tag)
	}
	return tags
}()

var matcher = language.NewMatcher(supported)

type Reporter struct {
	writer  io.Writer
	printer *message.Printer
	format  Format
}

// New returns a Reporter printing labels in the language closest to lang.
// An unknown or empty lang falls back to English.
func New(w io.Writer, lang string, format Format) (*Reporter, error) {
	switch format {
	case FormatText, FormatJSON:
	default:
		return nil, xerrors.Errorf("unknown output format: %s", format)
	}

	tag := language.English
	if lang != "" {
		requested, err := language.Parse(lang)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse language %q: %w", lang, err)
		}
		_, index, _ := matcher.Match(requested)
		tag = supported[index]
	}

	return &Reporter{
		writer:  w,
		printer: message.NewPrinter(tag, message.Catalog(labels)),
		format:  format,
	}, nil
}

func (r *Reporter) Label(c classify.Classification) string {
	if c == classify.Grayscale {
		return r.printer.Sprintf(grayscaleLabel)
	}
	return r.printer.Sprintf(colorLabel)
}

// Report writes the label of c as a single line.
func (r *Reporter) Report(c classify.Classification) error {
	if _, err := fmt.Fprintln(r.writer, r.Label(c)); err != nil {
		return xerrors.Errorf("failed to write report: %w", err)
	}
	return nil
}

type jsonReport struct {
	*detect.Result
	Label string `json:"label"`
}

// ReportResult writes res in the configured format, always as one line.
func (r *Reporter) ReportResult(res *detect.Result) error {
	if r.format == FormatText {
		return r.Report(res.Classification)
	}

	if err := json.NewEncoder(r.writer).Encode(jsonReport{
		Result: res,
		Label:  r.Label(res.Classification),
	}); err != nil {
		return xerrors.Errorf("failed to encode report: %w", err)
	}
	return nil
}
