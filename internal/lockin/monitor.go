package lockin

import (
	"slices"
	"sync"
)

// MonitorPoint is one raw sample shown by the live monitor: the measurement
// magnitude and the sine projection of the reference it was multiplied by.
type MonitorPoint struct {
	Measurement float64 `json:"measurement"`
	Projection  float64 `json:"projection"`
}

// BuildMonitor collects up to capacity of the most recent valid samples of a
// burst and returns them in chronological order.
func BuildMonitor(measurement []uint32, reference []ReferencePoint, capacity int) []MonitorPoint {
	n := min(len(measurement), len(reference))

	points := make([]MonitorPoint, 0, min(n, max(capacity, 0)))
	for i := n - 1; i >= 0; i-- {
		if len(points) >= capacity {
			break
		}
		if !reference[i].Valid {
			continue
		}

		points = append(points, MonitorPoint{
			Measurement: float64(measurement[i]),
			Projection:  reference[i].Sin,
		})
	}

	slices.Reverse(points)
	return points
}

// Monitor holds the latest monitor snapshot. It has a single writer, the
// processing cycle, which never blocks, and any number of readers, which
// always observe a complete snapshot.
type Monitor struct {
	mu     sync.RWMutex
	points []MonitorPoint
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// TryStore replaces the snapshot unless a reader currently holds it, in which
// case the previous snapshot stays visible and false is returned.
func (m *Monitor) TryStore(points []MonitorPoint) bool {
	if !m.mu.TryLock() {
		return false
	}
	defer m.mu.Unlock()

	m.points = points
	return true
}

// Snapshot returns a copy of the current snapshot, waiting for an in-flight
// write to complete.
func (m *Monitor) Snapshot() []MonitorPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.points)
}

// Len returns the number of points in the current snapshot
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.points)
}

// Clear drops the snapshot
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.points = nil
}
