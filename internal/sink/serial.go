package sink

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaudRate = 115_200

	readTimeout = 500 * time.Millisecond
)

// SerialConfig selects the port results are written to
type SerialConfig struct {
	Port     string `yaml:"port" json:"port"`
	BaudRate int    `yaml:"baudRate" json:"baudRate"`
	Header   bool   `yaml:"header" json:"header"`
}

func (c *SerialConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("sink.SerialConfig: port is required")
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("sink.SerialConfig: baud rate must not be negative: %d", c.BaudRate)
	}
	return nil
}

// OpenSerial opens the port and writes results to it as CSV lines
func OpenSerial(config SerialConfig) (*CSV, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baud := config.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        config.Port,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", config.Port, err)
	}

	s, err := NewCSV(port, config.Header)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	s.closer = port

	return s, nil
}
