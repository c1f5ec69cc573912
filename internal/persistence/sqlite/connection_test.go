package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/sirius-meet/internal/persistence"
)

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, persistence.ErrNotFound},
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: meetings.room_id (2067)"), persistence.ErrDuplicate},
		{"foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), persistence.ErrConstraintViolation},
		{"check", errors.New("constraint failed: CHECK constraint failed: current_uses (275)"), persistence.ErrConstraintViolation},
		{"not null", errors.New("NOT NULL constraint failed: meetings.title"), persistence.ErrConstraintViolation},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, mapper.MapError(tc.in), tc.want)
		})
	}

	require.NoError(t, mapper.MapError(nil))

	locked := mapper.MapError(errors.New("database is locked (5)"))
	require.ErrorContains(t, locked, "database locked")
}

func TestConfig_DSNCarriesPragmas(t *testing.T) {
	t.Parallel()

	dsn := DefaultConfig("/var/lib/sirius/meet.db").dsn()
	require.True(t, strings.HasPrefix(dsn, "/var/lib/sirius/meet.db?"))
	for _, fragment := range []string{"busy_timeout%2830000%29", "foreign_keys%281%29", "journal_mode%28WAL%29", "_txlock=immediate"} {
		require.Contains(t, dsn, fragment)
	}

	require.Contains(t, Config{Path: "file:x.db?mode=rwc"}.dsn(), "file:x.db?mode=rwc&")
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.June, 3, 9, 15, 0, 123456789, time.FixedZone("COT", -5*3600))
	parsed, err := parseTime(formatTime(at))
	require.NoError(t, err)
	require.True(t, parsed.Equal(at.Truncate(time.Microsecond)))
	require.Equal(t, time.UTC, parsed.Location())

	legacy, err := parseTime("2025-06-03T09:15:00Z")
	require.NoError(t, err)
	require.Equal(t, 9, legacy.Hour())

	earlier := formatTime(at)
	later := formatTime(at.Add(time.Millisecond))
	require.Less(t, earlier, later)
}
