package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	numberPrefix = "ORD"
	maxSequence  = 9999
)

// NumberSource returns the highest order number starting with prefix, or "" when there is none.
type NumberSource interface {
	LastNumber(ctx context.Context, prefix string) (string, error)
}

// DayPrefix is "ORD" followed by the calendar day as YYYYMMDD.
func DayPrefix(day time.Time) string {
	return numberPrefix + day.Format("20060102")
}

// NextNumber allocates ORD<YYYYMMDD><NNNN> for day. The sequence is fixed width,
// so lexical order of numbers matches numeric order within a day.
func NextNumber(ctx context.Context, src NumberSource, day time.Time) (string, error) {
	prefix := DayPrefix(day)
	last, err := src.LastNumber(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq := 1
	if last != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed order number %q: %w", last, err)
		}
		seq = n + 1
	}
	if seq > maxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}
