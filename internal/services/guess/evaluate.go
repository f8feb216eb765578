// Package guess classifies a guess against the secret number.
package guess

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Outcome classifies a guess relative to the secret
type Outcome int

const (
	Invalid Outcome = iota
	Correct
	TooLow
	TooHigh
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case TooLow:
		return "too_low"
	case TooHigh:
		return "too_high"
	default:
		return "invalid"
	}
}

// decimal matches plain integer or decimal text with an optional exponent.
// ParseFloat alone also accepts hex floats and digit separators.
var decimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// WinMessage is the feedback sent to the player who guessed correctly
const WinMessage = "You Won!"

// Parse reads integer or decimal text and truncates it toward zero.
// Surrounding whitespace is ignored. ok is false for anything that is not
// a finite number.
func Parse(raw string) (value float64, ok bool) {
	text := strings.TrimSpace(raw)
	if !decimal.MatchString(text) {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Trunc(f), true
}

// Evaluate compares raw against secret. Guesses outside [1,100] are
// compared like any other number.
func Evaluate(secret int, raw string) Outcome {
	g, ok := Parse(raw)
	if !ok {
		return Invalid
	}

	delta := float64(secret) - g
	switch {
	case delta == 0:
		return Correct
	case delta > 0:
		return TooLow
	default:
		return TooHigh
	}
}

// Feedback is the text shown to the player who submitted raw
func (o Outcome) Feedback(raw string) string {
	switch o {
	case Correct:
		return WinMessage
	case TooLow:
		return fmt.Sprintf("%s is too Low!", raw)
	case TooHigh:
		return fmt.Sprintf("%s is too High!", raw)
	default:
		return fmt.Sprintf("%s is not a number!", raw)
	}
}
