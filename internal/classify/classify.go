package classify

// Classification is the verdict of a grayscale check.
type Classification int

const (
	Color Classification = iota
	Grayscale
)

func (c Classification) String() string {
	switch c {
	case Grayscale:
		return "grayscale"
	case Color:
		return "color"
	default:
		return "unknown"
	}
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Classify reports Grayscale when diffSum is strictly below
// tolerancePercent/100 * pixelCount. The comparison is done in integers, so a
// nonzero sum equal to the threshold is always Color. A zero sum means the
// image equals its grayscale rendition and is Grayscale at any non-negative
// tolerance.
func Classify(diffSum int64, pixelCount int64, tolerancePercent int) Classification {
	if diffSum == 0 && tolerancePercent >= 0 {
		return Grayscale
	}
	if diffSum*100 < int64(tolerancePercent)*pixelCount {
		return Grayscale
	}
	return Color
}

// Threshold returns the diff sum an image has to stay below to be Grayscale.
func Threshold(pixelCount int64, tolerancePercent int) float64 {
	return float64(tolerancePercent) / 100 * float64(pixelCount)
}
