package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange     = errors.New("invalid trim range")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// TrimRange is the [Start, End] window, in seconds, of the source to download.
type TrimRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FullRange covers a source of the given duration.
func FullRange(duration float64) TrimRange {
	return TrimRange{Start: 0, End: math.Max(duration, 0)}
}

func (r TrimRange) Duration() float64 {
	return r.End - r.Start
}

// Clamp pulls both ends into [0, duration]. It does not reorder crossed ends.
func (r TrimRange) Clamp(duration float64) TrimRange {
	duration = math.Max(duration, 0)
	return TrimRange{
		Start: clamp(r.Start, 0, duration),
		End:   clamp(r.End, 0, duration),
	}
}

// Validate checks 0 <= Start <= End <= duration.
func (r TrimRange) Validate(duration float64) error {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) {
		return ErrInvalidRange
	}
	if r.Start < 0 || r.End > duration {
		return fmt.Errorf("%w: %s outside 0-%s", ErrInvalidRange, r, FormatTimestamp(duration))
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start after end", ErrInvalidRange)
	}
	return nil
}

func (r TrimRange) String() string {
	return FormatTimestamp(r.Start) + "-" + FormatTimestamp(r.End)
}

// ParseTrimRange parses "start-end" where either side may be omitted: "-40"
// trims from the beginning, "10-" runs to the end. Each side accepts the
// forms understood by ParseTimestamp. The result is clamped to duration.
func ParseTrimRange(expr string, duration float64) (TrimRange, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return FullRange(duration), nil
	}

	idx := strings.LastIndex(expr, "-")
	if idx == -1 {
		return TrimRange{}, ErrInvalidRange
	}

	startExpr := strings.TrimSpace(expr[:idx])
	endExpr := strings.TrimSpace(expr[idx+1:])

	r := FullRange(duration)
	var err error
	if startExpr != "" {
		if r.Start, err = ParseTimestamp(startExpr); err != nil {
			return TrimRange{}, err
		}
	}
	if endExpr != "" {
		if r.End, err = ParseTimestamp(endExpr); err != nil {
			return TrimRange{}, err
		}
	}

	r = r.Clamp(duration)
	if r.Start > r.End {
		return TrimRange{}, fmt.Errorf("%w: start after end", ErrInvalidRange)
	}
	return r, nil
}

// ParseTimestamp accepts plain seconds ("90", "12.5"), "mm:ss" or "hh:mm:ss".
func ParseTimestamp(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}

	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatTimestamp renders seconds as mm:ss; minutes are not wrapped into hours.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	s := int64(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
