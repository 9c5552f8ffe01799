package parsers

import (
	"time"

	"github.com/adred-codev/fleetmon/internal/clock"
)

// formatUnixSeconds converts a JSON-decoded unix-epoch-seconds value (an
// integer, possibly float64 as decoded by encoding/json) to an RFC 3339 UTC
// timestamp. Falls back to the current time when v is not a number.
func formatUnixSeconds(v any) string {
	f, ok := v.(float64)
	if !ok {
		return clock.NowISO()
	}
	return time.Unix(int64(f), 0).UTC().Format(time.RFC3339)
}
