package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roman-kulish/lockin/internal/lockin"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

// toNullJSON stores strings and bytes as-is and marshals anything else
func toNullJSON(v any) (sql.NullString, error) {
	switch v := v.(type) {
	case nil:
		return sql.NullString{}, nil

	case string:
		return sql.NullString{String: v, Valid: true}, nil

	case []byte:
		return sql.NullString{String: string(v), Valid: true}, nil

	default:
		p, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("marshaling: %w", err)
		}
		return sql.NullString{String: string(p), Valid: true}, nil
	}
}

func toNullError(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func toSession(d *sessionData) *Session {
	sess := Session{
		ID:         d.ID,
		StartTime:  d.StartTime.UTC(),
		SourceType: d.SourceType,
		SourceName: d.SourceName,
		Format:     fromNullString(d.Format),
		Config:     fromNullString(d.Config),
		Stats: lockin.Stats{
			Cycles:       uint64(d.Cycles),
			Results:      uint64(d.Results),
			NoData:       uint64(d.NoData),
			NoLock:       uint64(d.NoLock),
			MonitorSkips: uint64(d.MonitorSkips),
			Samples:      uint64(d.Samples),
		},
		Error: fromNullString(d.Error),
	}

	if d.StopTime.Valid {
		stop := d.StopTime.Time.UTC()
		sess.StopTime = &stop
	}

	return &sess
}

func toStatsArgs(stopTime time.Time, stats lockin.Stats, cause error) []any {
	return []any{
		stopTime.UTC(),
		int64(stats.Cycles),
		int64(stats.Results),
		int64(stats.NoData),
		int64(stats.NoLock),
		int64(stats.MonitorSkips),
		int64(stats.Samples),
		toNullError(cause),
	}
}
