package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// naturalParser handles phrases like "in 20 minutes", "tomorrow at 9am",
// "next monday at noon". Safe for concurrent use.
var naturalParser = newNaturalParser()

func newNaturalParser() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}

// ResolveSendTime turns a create request's schedule fields into a concrete
// instant. Exactly one of scheduledAt (RFC 3339) or sendIn (natural language)
// must be set. Natural-language phrases are interpreted relative to now in
// the given IANA timezone, defaulting to UTC.
func ResolveSendTime(scheduledAt, sendIn, timezone string, now time.Time) (time.Time, error) {
	if scheduledAt != "" && sendIn != "" {
		return time.Time{}, fmt.Errorf("%w: scheduled_at and send_in are mutually exclusive", ErrInvalidInput)
	}

	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
		}
	}

	switch {
	case scheduledAt != "":
		t, err := time.Parse(time.RFC3339, scheduledAt)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: scheduled_at must be RFC 3339: %v", ErrInvalidInput, err)
		}
		return t.UTC(), nil

	case sendIn != "":
		result, err := naturalParser.Parse(strings.TrimSpace(sendIn), now.In(loc))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: could not parse %q: %v", ErrInvalidInput, sendIn, err)
		}
		if result == nil {
			return time.Time{}, fmt.Errorf("%w: could not understand %q as a time", ErrInvalidInput, sendIn)
		}
		// Phrases like "yesterday" parse fine but cannot name a send time.
		if !result.Time.After(now) {
			return time.Time{}, fmt.Errorf("%w: %q does not describe a future time", ErrInvalidInput, sendIn)
		}
		return result.Time.UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("%w: either scheduled_at or send_in is required", ErrInvalidInput)
	}
}
