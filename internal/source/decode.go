package source

import (
	"bytes"
	"grayscale-detector/internal/pixel"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode turns raw image bytes into an RGB buffer. url only labels errors.
func Decode(url string, data []byte) (*pixel.Buffer, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{URL: url, MIMEType: sniff(data), Err: err}
	}

	buf := pixel.FromImage(img)
	if buf.Empty() {
		return nil, &DecodeError{URL: url, MIMEType: sniff(data), Err: ErrEmptyImage}
	}
	return buf, nil
}

func sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
