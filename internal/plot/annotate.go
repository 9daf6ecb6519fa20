package plot

import (
	"fmt"
	"image"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi     float64 = 72
	hinting string  = "full"
	size    float64 = 14
	spacing float64 = 1.2
)

type Annotator struct {
	context *freetype.Context
}

func NewAnnotator() (*Annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)

	switch hinting {
	case "full":
		context.SetHinting(font.HintingFull)
	default:
		context.SetHinting(font.HintingNone)
	}

	return &Annotator{context: context}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, frame *Frame) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *Frame) error
	}{
		{"drawing X scale", a.drawXScale},
		{"drawing Y scale", a.drawYScale},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, frame); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

// drawXScale labels the measurement axis along the bottom edge
func (a *Annotator) drawXScale(img *image.RGBA, frame *Frame) error {
	count := max(frame.plot.Dx()/200, 1)
	step := (frame.MeasurementMax - frame.MeasurementMin) / float64(count)
	pxPerLabel := frame.plot.Dx() / count

	for si := 0; si <= count; si++ {
		value := frame.MeasurementMin + float64(si)*step
		px := frame.plot.Min.X + si*pxPerLabel

		for i := frame.plot.Max.Y; i < frame.plot.Max.Y+8; i++ {
			img.Set(px, i, image.White)
		}

		pt := freetype.Pt(px+3, frame.plot.Max.Y+int(size)+4)
		if _, err := a.context.DrawString(humanize.SIWithDigits(value, 2, ""), pt); err != nil {
			return err
		}
	}

	return nil
}

// drawYScale labels the reference projection axis, which always spans -1..1
func (a *Annotator) drawYScale(img *image.RGBA, frame *Frame) error {
	for _, value := range []float64{1, 0.5, 0, -0.5, -1} {
		py := frame.projectionToY(value)

		for i := frame.plot.Min.X - 8; i < frame.plot.Min.X; i++ {
			img.Set(i, py, image.White)
		}

		pt := freetype.Pt(4, py+int(size)/2)
		if _, err := a.context.DrawString(fmt.Sprintf("%+0.1f", value), pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawInfo(img *image.RGBA, frame *Frame) error {
	lines := []string{
		fmt.Sprintf("Points: %s", humanize.Comma(int64(frame.Points))),
		fmt.Sprintf("Measurement: %s to %s",
			humanize.SIWithDigits(frame.MeasurementMin, 3, ""), humanize.SIWithDigits(frame.MeasurementMax, 3, "")),
	}
	if frame.ReferenceFrequency > 0 {
		lines = append(lines, "Reference: "+humanHz(frame.ReferenceFrequency))
	}
	if frame.Title != "" {
		lines = append([]string{frame.Title}, lines...)
	}

	pt := freetype.Pt(frame.plot.Min.X+6, frame.plot.Min.Y+int(size)+4)
	for _, s := range lines {
		if _, err := a.context.DrawString(s, pt); err != nil {
			return err
		}
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return nil
}

func humanHz(hz float64) string {
	fract, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}
