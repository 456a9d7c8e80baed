package core

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	colorextractor "github.com/marekm4/color-extractor"
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// Theme is the presentation accent signal derived from track metadata.
// Hue is in [0,360). Valid is false when no accent could be derived.
type Theme struct {
	Hue   float64 `json:"hue"`
	Valid bool    `json:"valid"`
}

// themeFor prefers the host-provided accent hue and falls back to the
// dominant colour of the thumbnail. Failures yield an invalid theme,
// never an error.
func themeFor(info nowplay.TrackInfo, log *zap.Logger) Theme {
	if info.AccentHue != nil {
		return Theme{Hue: *info.AccentHue, Valid: true}
	}
	if info.Thumbnail == "" {
		return Theme{}
	}

	img, err := decodeDataURI(info.Thumbnail)
	if err != nil {
		log.Debug("thumbnail decode failed", zap.Error(err))
		return Theme{}
	}

	colours := colorextractor.ExtractColors(img)
	if len(colours) == 0 {
		return Theme{}
	}
	r, g, b, _ := colours[0].RGBA()
	return Theme{Hue: rgbHue(float64(r)/65535, float64(g)/65535, float64(b)/65535), Valid: true}
}

func decodeDataURI(uri string) (image.Image, error) {
	payload := uri
	if idx := strings.Index(uri, ","); idx >= 0 && strings.HasPrefix(uri, "data:") {
		payload = uri[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// rgbHue converts normalized RGB to an HSL hue in [0,360).
func rgbHue(r, g, b float64) float64 {
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	min := r
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}
	delta := max - min
	if delta == 0 {
		return 0
	}

	var hue float64
	switch max {
	case r:
		hue = (g - b) / delta
	case g:
		hue = (b-r)/delta + 2
	default:
		hue = (r-g)/delta + 4
	}
	hue *= 60
	if hue < 0 {
		hue += 360
	}
	return hue
}
