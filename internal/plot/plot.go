package plot

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/roman-kulish/lockin/internal/lockin"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	marginLeft   = 48
	marginRight  = 16
	marginTop    = 16
	marginBottom = 32

	minWidth  = 200
	minHeight = 150
	maxWidth  = 4096
	maxHeight = 4096
)

var (
	ErrImageTooSmall = errors.New("image too small")
	ErrImageTooLarge = errors.New("image too large")
)

// Options of a monitor plot
type Options struct {
	Width              int
	Height             int
	Theme              ColorTheme
	Title              string
	ReferenceFrequency float64 // Hz, shown when positive
}

// Frame is the geometry and scale of a monitor plot
type Frame struct {
	Title              string
	Points             int
	MeasurementMin     float64
	MeasurementMax     float64
	ReferenceFrequency float64

	plot image.Rectangle
}

func (f *Frame) measurementToX(v float64) int {
	span := f.MeasurementMax - f.MeasurementMin
	return f.plot.Min.X + int(math.Round((v-f.MeasurementMin)/span*float64(f.plot.Dx()-1)))
}

func (f *Frame) projectionToY(v float64) int {
	return f.plot.Min.Y + int(math.Round((1-v)/2*float64(f.plot.Dy()-1)))
}

// Renderer draws monitor snapshots as a measurement versus reference
// projection scatter, colored from the oldest to the newest point. It is safe
// for concurrent use.
type Renderer struct {
	mu        sync.Mutex // guards the annotator context
	annotator *Annotator
}

func NewRenderer() (*Renderer, error) {
	annotator, err := NewAnnotator()
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	return &Renderer{annotator: annotator}, nil
}

// Draw renders points into a new image
func (r *Renderer) Draw(points []lockin.MonitorPoint, opts Options) (*image.RGBA, error) {
	width, height := opts.Width, opts.Height
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}
	if width < minWidth || height < minHeight {
		return nil, fmt.Errorf("%w: %dx%d, need at least %dx%d", ErrImageTooSmall, width, height, minWidth, minHeight)
	}
	if width > maxWidth || height > maxHeight {
		return nil, fmt.Errorf("%w: %dx%d, at most %dx%d", ErrImageTooLarge, width, height, maxWidth, maxHeight)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	frame := newFrame(points, opts, image.Rect(marginLeft, marginTop, width-marginRight, height-marginBottom))

	drawGrid(img, frame)

	colorOf := GetColorTheme(opts.Theme)
	for i, p := range points {
		age := 1.0
		if len(points) > 1 {
			age = float64(i) / float64(len(points)-1)
		}

		x, y := frame.measurementToX(p.Measurement), frame.projectionToY(p.Projection)
		c := colorOf(age)

		// 3x3 dot
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if (image.Point{X: x + dx, Y: y + dy}).In(frame.plot) {
					img.Set(x+dx, y+dy, c)
				}
			}
		}
	}

	r.mu.Lock()
	err := r.annotator.Annotate(img, frame)
	r.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("annotating image: %w", err)
	}

	return img, nil
}

// Render draws points and encodes the image as PNG into w
func (r *Renderer) Render(w io.Writer, points []lockin.MonitorPoint, opts Options) error {
	img, err := r.Draw(points, opts)
	if err != nil {
		return err
	}

	if err = png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return nil
}

func newFrame(points []lockin.MonitorPoint, opts Options, plot image.Rectangle) *Frame {
	frame := Frame{
		Title:              opts.Title,
		Points:             len(points),
		ReferenceFrequency: opts.ReferenceFrequency,
		plot:               plot,
	}

	if len(points) == 0 {
		frame.MeasurementMax = math.MaxUint32
		return &frame
	}

	frame.MeasurementMin, frame.MeasurementMax = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		frame.MeasurementMin = math.Min(frame.MeasurementMin, p.Measurement)
		frame.MeasurementMax = math.Max(frame.MeasurementMax, p.Measurement)
	}

	// 5% headroom, and a non-zero span for a flat signal
	pad := math.Max((frame.MeasurementMax-frame.MeasurementMin)*0.05, 1)
	frame.MeasurementMin -= pad
	frame.MeasurementMax += pad

	return &frame
}

func drawGrid(img *image.RGBA, frame *Frame) {
	for x := frame.plot.Min.X; x < frame.plot.Max.X; x++ {
		for _, v := range []float64{1, 0, -1} {
			img.Set(x, frame.projectionToY(v), gridColor)
		}
	}
	for y := frame.plot.Min.Y; y < frame.plot.Max.Y; y++ {
		img.Set(frame.plot.Min.X, y, gridColor)
		img.Set(frame.plot.Max.X-1, y, gridColor)
	}
}
