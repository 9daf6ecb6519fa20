package plot

import (
	"image/color"
	"math"
)

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	JungleTheme    ColorTheme = "jungle"
	ThermalTheme   ColorTheme = "thermal"
	MarineTheme    ColorTheme = "marine"
)

type ColorTheme string

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xff}
	gridColor       = color.RGBA{R: 0x40, G: 0x40, B: 0x50, A: 0xff}
)

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
// H: [0-360], S: [0-1], V: [0-1]
func (hsv HSV) RGB() color.Color {
	h, s, v := hsv.H, hsv.S, hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64

	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

// ageToColorEnhanced brightens recent points so the newest part of the
// trace stands out
func ageToColorEnhanced(age float64) color.Color {
	age = math.Max(0, math.Min(1, age))

	switch {
	case age < 0.5:
		// Blue -> Cyan transition
		return HSV{H: 240 - age*120, S: 1.0, V: 0.4 + age}.RGB()
	default:
		// Cyan -> Yellow transition
		p := (age - 0.5) * 2
		return HSV{H: 180 - p*120, S: 1.0, V: 0.9 + p*0.1}.RGB()
	}
}

// GetColorTheme returns the point color of a theme for a normalized age,
// 0 for the oldest point of a snapshot and 1 for the newest.
func GetColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme: // Blue -> Red
		return func(age float64) color.Color {
			return HSV{H: 240 - (age * 240), S: 0.9 + (age * 0.1), V: 0.4 + math.Pow(age, 0.7)*0.6}.RGB()
		}

	case GrayscaleTheme: // Gray -> White
		return func(age float64) color.Color {
			v := (0.3 + math.Pow(age, 0.7)*0.7) * 255
			return color.RGBA{R: uint8(v), G: uint8(v), B: uint8(v), A: 0xff}
		}

	case JungleTheme: // Dark Green -> Yellow
		return func(age float64) color.Color {
			return HSV{H: 120 - (age * 60), S: 1.0, V: 0.3 + (math.Pow(age, 0.6) * 0.7)}.RGB()
		}

	case ThermalTheme: // Red -> Yellow -> White
		return func(age float64) color.Color {
			if age < 0.5 {
				return color.RGBA{R: 255, G: uint8(age * 2 * 255), A: 0xff}
			}
			return color.RGBA{R: 255, G: 255, B: uint8((age - 0.5) * 2 * 255), A: 0xff}
		}

	case MarineTheme: // Deep Blue -> Cyan -> White
		return func(age float64) color.Color {
			return HSV{H: 240 - (age * 60), S: 1.0 - (age * 0.8), V: 0.3 + (math.Pow(age, 0.6) * 0.7)}.RGB()
		}

	default:
		return ageToColorEnhanced
	}
}
