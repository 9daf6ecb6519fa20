package plot

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/roman-kulish/lockin/internal/lockin"
)

func circle(n int) []lockin.MonitorPoint {
	points := make([]lockin.MonitorPoint, n)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(n)
		points[i] = lockin.MonitorPoint{
			Measurement: 1<<31 + 1e6*math.Cos(angle),
			Projection:  math.Sin(angle),
		}
	}
	return points
}

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	var buf bytes.Buffer
	opts := Options{Width: 640, Height: 480, Title: "monitor", ReferenceFrequency: 480}
	if err = r.Render(&buf, circle(200), opts); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 640, 480) {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}
}

func TestRenderer_DrawsPoints(t *testing.T) {
	r, _ := NewRenderer()

	points := []lockin.MonitorPoint{{Measurement: 100, Projection: -1}, {Measurement: 200, Projection: 1}}
	img, err := r.Draw(points, Options{Theme: ThermalTheme})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	frame := newFrame(points, Options{}, image.Rect(marginLeft, marginTop, DefaultWidth-marginRight, DefaultHeight-marginBottom))

	// newest point of the thermal theme is white
	x, y := frame.measurementToX(200), frame.projectionToY(1)
	if c := img.RGBAAt(x, y); c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("Expected the newest point at (%d, %d) drawn in white, got %v", x, y, c)
	}

	// oldest point is red
	x, y = frame.measurementToX(100), frame.projectionToY(-1)
	if c := img.RGBAAt(x, y); c.R != 255 || c.G != 0 {
		t.Errorf("Expected the oldest point at (%d, %d) drawn in red, got %v", x, y, c)
	}
}

func TestRenderer_Empty(t *testing.T) {
	r, _ := NewRenderer()

	if _, err := r.Draw(nil, Options{}); err != nil {
		t.Errorf("An empty snapshot should still render: %v", err)
	}
}

func TestRenderer_InvalidSize(t *testing.T) {
	r, _ := NewRenderer()

	tests := []struct {
		name          string
		width, height int
		want          error
	}{
		{"too small", 50, 50, ErrImageTooSmall},
		{"too wide", 40000, DefaultHeight, ErrImageTooLarge},
		{"too tall", DefaultWidth, 40000, ErrImageTooLarge},
		{"both too large", 40000, 40000, ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.Draw(circle(10), Options{Width: tt.width, Height: tt.height})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if img != nil {
				t.Error("Expected no image")
			}
		})
	}

	if _, err := r.Draw(circle(10), Options{Width: maxWidth, Height: minHeight}); err != nil {
		t.Errorf("Expected the largest width to render: %v", err)
	}
}

func TestFrame_Scale(t *testing.T) {
	plot := image.Rect(10, 10, 110, 60)
	frame := newFrame([]lockin.MonitorPoint{{Measurement: 5}, {Measurement: 5}}, Options{}, plot)

	if frame.MeasurementMin >= 5 || frame.MeasurementMax <= 5 {
		t.Errorf("A flat signal needs a non-zero span, got %f..%f", frame.MeasurementMin, frame.MeasurementMax)
	}
	if y := frame.projectionToY(1); y != plot.Min.Y {
		t.Errorf("Projection +1 should map to the top edge, got %d", y)
	}
	if y := frame.projectionToY(-1); y != plot.Max.Y-1 {
		t.Errorf("Projection -1 should map to the bottom edge, got %d", y)
	}
}
