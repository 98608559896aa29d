package sifen

import (
	"fmt"
	"time"
)

// AsuncionLocation is the fixed America/Asuncion offset. Paraguay sits at
// UTC-3 with no DST since 2013, so an explicit offset avoids depending on
// the host's tz database.
var AsuncionLocation = time.FixedZone("America/Asuncion", -3*60*60)

// Timestamp layouts used on the wire.
const (
	DateTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
)

// NowAsuncion returns the current time in the America/Asuncion offset.
func NowAsuncion() time.Time {
	return time.Now().In(AsuncionLocation)
}

// FormatDateTime renders a timestamp in the SET wire format, normalized
// to the Asuncion offset.
func FormatDateTime(t time.Time) string {
	return t.In(AsuncionLocation).Format(DateTimeLayout)
}

// FormatDate renders a date in the SET wire format.
func FormatDate(t time.Time) string {
	return t.In(AsuncionLocation).Format(DateLayout)
}

// ParseDateTime parses a SET wire timestamp, interpreting it in the
// Asuncion offset. time.ParseInLocation rejects impossible calendar
// dates such as 2023-02-29 or 2100-02-29.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, AsuncionLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q: %w", s, err)
	}
	return t, nil
}

// ParseDate parses a SET wire date in the Asuncion offset.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, AsuncionLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
