package workflow

import "errors"

// Local validation failures. They are returned before any remote call is
// made and never touch the snapshot.
var (
	// ErrBlankPrompt indicates start was requested with an empty prompt.
	ErrBlankPrompt = errors.New("prompt must not be blank")

	// ErrBlankFeedback indicates a rejection without feedback.
	ErrBlankFeedback = errors.New("feedback is required to regenerate")

	// ErrRetryBudgetExhausted indicates the review cycle already used all
	// regenerations; only acceptance can leave the step.
	ErrRetryBudgetExhausted = errors.New("maximum of 3 regenerations reached; accept to continue")

	// ErrMissingScheduleTime indicates schedule was requested without a time.
	ErrMissingScheduleTime = errors.New("schedule time is required")

	// ErrInvalidScheduleTime indicates a schedule time in no known layout.
	ErrInvalidScheduleTime = errors.New("unrecognized schedule time")

	// ErrWrongStep indicates the intent does not belong to the current step.
	ErrWrongStep = errors.New("intent not allowed in current step")

	// ErrBusy indicates another lifecycle call is still in flight.
	ErrBusy = errors.New("another request is in progress")

	// ErrAlreadyPublished indicates the one-shot publish already fired.
	ErrAlreadyPublished = errors.New("publish already triggered for this workflow")

	// ErrUnknownPlatform indicates a platform outside the workflow's set.
	ErrUnknownPlatform = errors.New("platform is not part of this workflow")

	// ErrGenerationInFlight indicates a caption generation for the same
	// platform has not finished yet.
	ErrGenerationInFlight = errors.New("caption generation already running for platform")
)
