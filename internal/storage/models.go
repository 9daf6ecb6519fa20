package storage

import (
	"database/sql"
	"time"

	"github.com/roman-kulish/lockin/internal/lockin"
)

// SessionInfo describes a session being started
type SessionInfo struct {
	StartTime  time.Time
	SourceType string // e.g. "capture", "command", "wav"
	SourceName string // device name, command line or file path
	Format     any
	Config     any
}

// Session is a journaled lock-in session
type Session struct {
	ID         int64        `json:"id"`
	StartTime  time.Time    `json:"startTime"`
	StopTime   *time.Time   `json:"stopTime,omitempty"` // nil while running or after a crash
	SourceType string       `json:"sourceType"`
	SourceName string       `json:"sourceName"`
	Format     *string      `json:"format,omitempty"` // JSON
	Config     *string      `json:"config,omitempty"` // JSON
	Stats      lockin.Stats `json:"stats"`
	Error      *string      `json:"error,omitempty"`
}

// Duration returns how long the session ran, zero while it is open
func (s *Session) Duration() time.Duration {
	if s.StopTime == nil {
		return 0
	}
	return s.StopTime.Sub(s.StartTime)
}

type sessionData struct {
	ID           int64
	StartTime    time.Time
	StopTime     sql.NullTime
	SourceType   string
	SourceName   string
	Format       sql.NullString
	Config       sql.NullString
	Cycles       int64
	Results      int64
	NoData       int64
	NoLock       int64
	MonitorSkips int64
	Samples      int64
	Error        sql.NullString
}

func (d *sessionData) fields() []any {
	return []any{
		&d.ID,
		&d.StartTime,
		&d.StopTime,
		&d.SourceType,
		&d.SourceName,
		&d.Format,
		&d.Config,
		&d.Cycles,
		&d.Results,
		&d.NoData,
		&d.NoLock,
		&d.MonitorSkips,
		&d.Samples,
		&d.Error,
	}
}
