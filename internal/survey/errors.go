package survey

import "errors"

var (
	// ErrNoQuestions means the question pool loaded empty. It is terminal for a session.
	ErrNoQuestions = errors.New("no questions available")
	// ErrInvalidState is returned when an action does not apply to the current state.
	ErrInvalidState = errors.New("action not allowed in current state")

	ErrInvalidAccessCode  = errors.New("invalid access code")
	ErrConsentRequired    = errors.New("email and native speaker answer are required")
	ErrIncompleteQuestion = errors.New("both selections are required before moving on")
	ErrIncompleteSurvey   = errors.New("all questions must be answered before submitting")
	ErrNoNextQuestion     = errors.New("already at the last question")
	ErrNotLastQuestion    = errors.New("survey can only be finished from the last question")
	ErrEmptyFeedback      = errors.New("feedback is required")
	ErrAlreadySubmitted   = errors.New("responses already submitted")
	ErrUnknownClip        = errors.New("clip is not part of this choice")
	ErrInvalidSlot        = errors.New("choice slot must be 1 or 2")
	ErrUnknownQuestion    = errors.New("question has not been visited")
)

var validationErrors = []error{
	ErrInvalidAccessCode,
	ErrConsentRequired,
	ErrIncompleteQuestion,
	ErrIncompleteSurvey,
	ErrNoNextQuestion,
	ErrNotLastQuestion,
	ErrEmptyFeedback,
	ErrAlreadySubmitted,
	ErrUnknownClip,
	ErrInvalidSlot,
	ErrUnknownQuestion,
	ErrInvalidState,
}

// IsValidation reports whether err is a recoverable user-input error.
// The session state is unchanged after any of these.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
