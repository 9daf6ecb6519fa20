package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/roman-kulish/lockin/internal/lockin"
)

// Sink consumes lock-in results
type Sink interface {
	Write(r lockin.Result) error
	Close() error
}

var header = []string{"time", "x", "y", "r", "theta", "samples"}

// CSV writes one line per result
type CSV struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewCSV writes results to w, starting with a header line if withHeader is
// set. Closing the sink does not close w.
func NewCSV(w io.Writer, withHeader bool) (*CSV, error) {
	s := CSV{w: csv.NewWriter(w)}

	if withHeader {
		if err := s.w.Write(header); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	return &s, nil
}

func (s *CSV) Write(r lockin.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := []string{
		strconv.FormatFloat(r.Time, 'f', 3, 64),
		strconv.FormatFloat(r.X, 'g', 8, 64),
		strconv.FormatFloat(r.Y, 'g', 8, 64),
		strconv.FormatFloat(r.R(), 'g', 8, 64),
		strconv.FormatFloat(r.Theta(), 'f', 6, 64),
		strconv.Itoa(r.Samples),
	}

	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	s.w.Flush()

	return s.w.Error()
}

func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	err := s.w.Error()

	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}

// Multi fans a result out to every sink
type Multi []Sink

func (m Multi) Write(r lockin.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
