package ocr

import (
	"bytes"
	"image"
	"image/png"
	"regexp"
	"strconv"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
)

// Plausible capture years for satellite imagery.
const (
	MinYear = 1950
	MaxYear = 2100
)

// DefaultLanguage is the Tesseract language used when none is given.
const DefaultLanguage = "eng"

// ErrNoYear is returned when no plausible year is found.
var ErrNoYear = errors.New("no capture year found")

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)

// ParseYear returns the first four-digit number in text between MinYear and
// MaxYear.
func ParseYear(text string) (int, error) {
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err == nil && y >= MinYear && y <= MaxYear {
			return y, nil
		}
	}
	return 0, ErrNoYear
}

// Options tunes ReadCaptureYear.
type Options struct {
	// Language is a Tesseract language code; empty means DefaultLanguage.
	Language string

	// TessdataPrefix overrides where Tesseract looks for trained data.
	TessdataPrefix string

	// Region restricts OCR to part of the image, e.g. the attribution strip
	// at the bottom. The zero rectangle means the whole image.
	Region image.Rectangle
}

// ReadCaptureYear finds the capture year stamped on a scene, such as the
// "Imagery 2019" attribution of exported map tiles. Words are tried in
// decreasing OCR confidence before falling back to the raw text.
func ReadCaptureYear(img image.Image, opts Options) (int, error) {
	src := img
	if !opts.Region.Empty() {
		tile, err := imaging.ExtractTile(img, opts.Region)
		if err != nil {
			return 0, errors.Wrap(err, "invalid OCR region")
		}
		src = tile
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return 0, errors.Wrap(err, "failed to encode image for OCR")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			return 0, errors.Wrap(err, "failed to set tessdata path")
		}
	}
	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	if err := client.SetLanguage(lang); err != nil {
		return 0, errors.Wrap(err, "failed to set language")
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return 0, errors.Wrap(err, "failed to set image")
	}

	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		best, bestConf := 0, -1.0
		for _, box := range boxes {
			y, err := ParseYear(box.Word)
			if err == nil && box.Confidence > bestConf {
				best, bestConf = y, box.Confidence
			}
		}
		if best != 0 {
			return best, nil
		}
	}

	text, err := client.Text()
	if err != nil {
		return 0, errors.Wrap(err, "OCR failed")
	}
	return ParseYear(text)
}

// BottomRegion is the bottom frac of b, where map exports print their
// attribution. It is the empty rectangle (whole image) unless 0 < frac < 1.
func BottomRegion(b image.Rectangle, frac float64) image.Rectangle {
	if frac <= 0 || frac >= 1 {
		return image.Rectangle{}
	}
	h := int(float64(b.Dy())*frac + 0.5)
	if h < 1 {
		h = 1
	}
	return image.Rect(b.Min.X, b.Max.Y-h, b.Max.X, b.Max.Y)
}
