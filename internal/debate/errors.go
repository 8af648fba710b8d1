package debate

import "errors"

var (
	// ErrIdeaIncomplete is returned when the title or description is blank.
	ErrIdeaIncomplete = errors.New("debate: title and description are required")

	// ErrInvalidRounds is returned when the round count is outside the
	// allowed range.
	ErrInvalidRounds = errors.New("debate: invalid number of rounds")

	// ErrInvalidState is returned when an operation does not apply to the
	// session's current state.
	ErrInvalidState = errors.New("debate: operation not allowed in current state")

	// ErrUnknownQuestion is returned when answering a question id the session
	// does not have.
	ErrUnknownQuestion = errors.New("debate: unknown question id")

	// ErrRunInProgress is returned when a session already has an active run.
	ErrRunInProgress = errors.New("debate: a run is already in progress")

	// ErrSaveFailed wraps the storage error when a completed run could not be
	// persisted. The generated content is still available in the Result.
	ErrSaveFailed = errors.New("debate: failed to save analysis")
)
