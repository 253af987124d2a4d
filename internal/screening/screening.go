// Package screening is a placeholder content screening stage. It evaluates a
// fixed rule set against name, duration and size and is not a classifier.
package screening

import (
	"math/rand/v2"
	"strings"

	"videoapi/internal/model"
)

const (
	minDurationSeconds = 5
	maxDurationSeconds = 3600
	maxSizeBytes       = 400 * 1024 * 1024

	// randomFlagProbability stands in for a future classifier and must stay at 0.30.
	randomFlagProbability = 0.3
)

var flaggedKeywords = []string{"test", "sample", "demo", "temp"}

const (
	ReasonKeyword      = "Filename contains flagged keyword"
	ReasonTooShort     = "Video duration is suspiciously short"
	ReasonTooLong      = "Video duration exceeds 1 hour"
	ReasonRandom       = "Random classification flag"
	ReasonSizeExceeded = "File size exceeds 400MB"
	reasonSeparator    = "; "
)

// Input is what the rules look at.
type Input struct {
	Name     string
	Duration float64
	Size     int64
}

// Result is the disposition and, when flagged, every reason that fired.
type Result struct {
	Disposition model.Disposition
	Reasons     []string
}

// Reason joins the fired rules, or returns "" when safe.
func (r Result) Reason() string {
	return strings.Join(r.Reasons, reasonSeparator)
}

// Engine evaluates the rules. Rand returns a value in [0, 1).
type Engine struct {
	Rand func() float64
}

// NewEngine returns an Engine using the process-wide random source.
func NewEngine() *Engine {
	return &Engine{Rand: rand.Float64}
}

// Evaluate runs every rule independently; any match flags the object.
func (e *Engine) Evaluate(in Input) Result {
	var reasons []string

	name := strings.ToLower(in.Name)
	for _, kw := range flaggedKeywords {
		if strings.Contains(name, kw) {
			reasons = append(reasons, ReasonKeyword)
			break
		}
	}
	if in.Duration < minDurationSeconds {
		reasons = append(reasons, ReasonTooShort)
	}
	if in.Duration > maxDurationSeconds {
		reasons = append(reasons, ReasonTooLong)
	}
	if e.random() < randomFlagProbability {
		reasons = append(reasons, ReasonRandom)
	}
	if in.Size > maxSizeBytes {
		reasons = append(reasons, ReasonSizeExceeded)
	}

	if len(reasons) == 0 {
		return Result{Disposition: model.DispositionSafe}
	}
	return Result{Disposition: model.DispositionFlagged, Reasons: reasons}
}

func (e *Engine) random() float64 {
	if e == nil || e.Rand == nil {
		return rand.Float64()
	}
	return e.Rand()
}
