// Package duration parses the restricted duration grammar used throughout
// the CRD spec fields (AutoHealRule.cooldown, Release analysis.interval,
// DisasterRecovery policy.healthCheck.interval): a non-negative integer
// immediately followed by one of s|m|h. No compound forms, no fractions.
package duration

import (
	"strconv"
	"strings"
	"time"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// Parse converts a string like "30s", "5m", or "2h" into a time.Duration.
// Leading/trailing whitespace is trimmed. Anything else — compound forms
// ("1h30m"), fractional numbers, negative numbers, unknown units, or an
// empty string — returns an InvalidDuration error.
func Parse(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, pherrors.New(pherrors.KindInvalidDuration, "empty duration string")
	}

	unit := trimmed[len(trimmed)-1]
	var mult time.Duration
	switch unit {
	case 's':
		mult = time.Second
	case 'm':
		mult = time.Minute
	case 'h':
		mult = time.Hour
	default:
		return 0, pherrors.New(pherrors.KindInvalidDuration, "unrecognized unit in "+strconv.Quote(s))
	}

	numPart := trimmed[:len(trimmed)-1]
	if numPart == "" {
		return 0, pherrors.New(pherrors.KindInvalidDuration, "missing numeric component in "+strconv.Quote(s))
	}
	for _, r := range numPart {
		if r < '0' || r > '9' {
			return 0, pherrors.New(pherrors.KindInvalidDuration, "non-integer numeric component in "+strconv.Quote(s))
		}
	}

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, pherrors.Wrap(pherrors.KindInvalidDuration, "unable to parse numeric component in "+strconv.Quote(s), err)
	}

	return time.Duration(n) * mult, nil
}

// MustParse parses s and panics on error. Reserved for use with constant,
// compile-time-known duration strings (defaults), never user input.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
