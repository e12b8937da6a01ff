package identity

import (
	"time"

	"github.com/goliatone/go-errors"
)

// IsOutsideThresholdPeriod reports whether more than the given period has
// elapsed since t. The period uses time.ParseDuration syntax, e.g. "24h".
func IsOutsideThresholdPeriod(t time.Time, period string) (bool, error) {
	d, err := time.ParseDuration(period)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryBadInput, "invalid threshold period").
			WithMetadata(map[string]any{"period": period})
	}

	return time.Since(t) > d, nil
}

// parseDateOnly parses a YYYY-MM-DD value
func parseDateOnly(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
