package sqlite

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Timestamps are stored as RFC 3339 UTC text so rows stay readable with
// external sqlite tooling and sort lexicographically. The layout pins the
// fractional seconds to nine digits: RFC3339Nano trims trailing zeros,
// which breaks byte-wise ordering at sub-second boundaries ('Z' sorts
// after '.').
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

// parseTime decodes a stored timestamp. Out-of-band tooling can write
// these columns, so a malformed value degrades to the zero time with a
// warning instead of failing the row.
func (s *Store) parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Common alternate layout written by sqlite CLI tooling.
		if t, err2 := time.Parse("2006-01-02 15:04:05", raw); err2 == nil {
			return t.UTC()
		}
		s.logger.Warn("malformed timestamp in row", zap.String("value", raw), zap.Error(err))
		return time.Time{}
	}
	return t.UTC()
}

func (s *Store) parseTimePtr(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t := s.parseTime(raw.String)
	if t.IsZero() {
		return nil
	}
	return &t
}
