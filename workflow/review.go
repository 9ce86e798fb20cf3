package workflow

import (
	"fmt"
	"strings"
)

// reviewCycle is the accept/reject-with-feedback protocol shared by the
// caption and image review steps. Each instance owns one regenerate counter.
type reviewCycle struct {
	artifact string
	step     Step
	counter  func(Snapshot) int
}

var (
	captionCycle = reviewCycle{
		artifact: "caption",
		step:     StepReviewCaption,
		counter:  func(s Snapshot) int { return s.RegenerateCountCaption },
	}
	imageCycle = reviewCycle{
		artifact: "image",
		step:     StepReviewImage,
		counter:  func(s Snapshot) int { return s.RegenerateCountImage },
	}
)

// check validates an intent against the snapshot without any remote call.
func (c reviewCycle) check(snap Snapshot, accepted bool, feedback string) error {
	if snap.CurrentStep != c.step {
		return fmt.Errorf("%w: %s review requires %s, workflow is at %s", ErrWrongStep, c.artifact, c.step, snap.CurrentStep)
	}
	if accepted {
		return nil
	}
	if !CanReject(c.counter(snap)) {
		return ErrRetryBudgetExhausted
	}
	if strings.TrimSpace(feedback) == "" {
		return ErrBlankFeedback
	}
	return nil
}

// canReject reports whether the reject intent is currently available.
func (c reviewCycle) canReject(snap Snapshot) bool {
	return snap.CurrentStep == c.step && CanReject(c.counter(snap))
}
