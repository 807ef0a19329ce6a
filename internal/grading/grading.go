// Package grading turns a raw submitted answer into a normalized value and a rating.
package grading

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"team-quiz-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Tolerance holds the relative-error cutoffs for number and time questions.
// A relative error up to TwoPoint scores 2, up to OnePoint scores 1.
type Tolerance struct {
	OnePoint float64 `yaml:"one_point_cutoff" validate:"gte=0"`
	TwoPoint float64 `yaml:"two_point_cutoff" validate:"gte=0"`
}

// DefaultTolerance is used when the configuration does not set cutoffs.
var DefaultTolerance = Tolerance{OnePoint: 0.10, TwoPoint: 0.05}

// Validate checks that the tiers are monotonic.
func (t Tolerance) Validate() error {
	if t.OnePoint < 0 || t.TwoPoint < 0 {
		return fmt.Errorf("%w: cutoffs must not be negative", domain.ErrInvalidConfig)
	}
	if t.TwoPoint > t.OnePoint {
		return fmt.Errorf("%w: two_point_cutoff (%v) must be <= one_point_cutoff (%v)",
			domain.ErrInvalidConfig, t.TwoPoint, t.OnePoint)
	}
	return nil
}

// Result is a graded subanswer.
type Result struct {
	Value  string
	Rating int
}

// Grade normalizes raw according to qt and rates it against canonical.
func Grade(qt domain.QuestionType, raw, canonical string, tol Tolerance) (Result, error) {
	switch qt {
	case domain.TypeText, domain.TypeSingleChoice:
		value := NormalizeText(raw)
		rating := 0
		if value == NormalizeText(canonical) {
			rating = 1
		}
		return Result{Value: value, Rating: rating}, nil

	case domain.TypeNumber:
		answer, err := ParseNumber(raw)
		if err != nil {
			return Result{}, err
		}
		correct, err := ParseNumber(canonical)
		if err != nil {
			return Result{}, fmt.Errorf("%w: canonical answer %q: %v", domain.ErrInvalidCatalog, canonical, err)
		}
		rating, err := rateRelative(answer, correct, tol)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: answer.String(), Rating: rating}, nil

	case domain.TypeTime:
		answer, err := ParseTimeOfDay(raw)
		if err != nil {
			return Result{}, err
		}
		correct, err := ParseTimeOfDay(canonical)
		if err != nil {
			return Result{}, fmt.Errorf("%w: canonical answer %q: %v", domain.ErrInvalidCatalog, canonical, err)
		}
		rating, err := rateRelative(decimal.NewFromInt(int64(answer)), decimal.NewFromInt(int64(correct)), tol)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: strconv.Itoa(answer), Rating: rating}, nil
	}
	return Result{}, fmt.Errorf("%w: unsupported question type %q", domain.ErrInvalidCatalog, qt)
}

// NormalizeText trims surrounding whitespace and lower-cases s.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

const (
	maxNumberLen   = 64
	maxNumberScale = 18
)

// ParseNumber parses a decimal number. A single comma is read as the decimal
// separator unless exactly three digits follow it, which reads as a thousands
// separator and is rejected as ambiguous. Inputs longer than maxNumberLen or with an
// exponent outside ±maxNumberScale are rejected before any arithmetic.
func ParseNumber(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if len(s) > maxNumberLen {
		return decimal.Decimal{}, fmt.Errorf("%w: number is too long", domain.ErrInvalidFormat)
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		if strings.Count(s, ",") > 1 || strings.Contains(s, ".") || len(s)-i-1 == 3 {
			return decimal.Decimal{}, fmt.Errorf("%w: %q has an ambiguous separator", domain.ErrInvalidFormat, raw)
		}
		s = s[:i] + "." + s[i+1:]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidFormat, raw)
	}
	if exp := d.Exponent(); exp > maxNumberScale || exp < -maxNumberScale {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is out of range", domain.ErrInvalidFormat, raw)
	}
	return d, nil
}

// ParseTimeOfDay parses HH:MM:SS, falling back to HH:MM, into seconds since midnight.
func ParseTimeOfDay(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a time of day", domain.ErrInvalidFormat, raw)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}

// ValidateCanonical checks that canonical can be graded against for qt.
func ValidateCanonical(qt domain.QuestionType, canonical string) error {
	switch qt {
	case domain.TypeText, domain.TypeSingleChoice:
		if NormalizeText(canonical) == "" {
			return fmt.Errorf("%w: empty canonical answer", domain.ErrInvalidCatalog)
		}
	case domain.TypeNumber:
		d, err := ParseNumber(canonical)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
		}
		if d.IsZero() {
			return fmt.Errorf("%w: canonical number must not be zero", domain.ErrInvalidCatalog)
		}
	case domain.TypeTime:
		secs, err := ParseTimeOfDay(canonical)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
		}
		if secs == 0 {
			return fmt.Errorf("%w: canonical time must not be 00:00:00", domain.ErrInvalidCatalog)
		}
	default:
		return fmt.Errorf("%w: unsupported question type %q", domain.ErrInvalidCatalog, qt)
	}
	return nil
}

// rateRelative compares |answer-correct| against cutoff*|correct| so that
// boundary values are inclusive and exact.
func rateRelative(answer, correct decimal.Decimal, tol Tolerance) (int, error) {
	if correct.IsZero() {
		return 0, fmt.Errorf("%w: canonical answer is zero", domain.ErrInvalidCatalog)
	}
	diff := answer.Sub(correct).Abs()
	base := correct.Abs()
	switch {
	case diff.LessThanOrEqual(decimal.NewFromFloat(tol.TwoPoint).Mul(base)):
		return 2, nil
	case diff.LessThanOrEqual(decimal.NewFromFloat(tol.OnePoint).Mul(base)):
		return 1, nil
	}
	return 0, nil
}
