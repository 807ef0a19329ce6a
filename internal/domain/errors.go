package domain

import "errors"

var (
	// ErrUnknownQuestion is returned when a question id is not in the catalog.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrUnknownTeam is returned when a team name is not configured.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrUnknownSubquestion is returned for an out-of-range subquestion index.
	ErrUnknownSubquestion = errors.New("unknown subquestion")
	// ErrMissingSubanswer rejects a submission that leaves a subquestion unanswered.
	ErrMissingSubanswer = errors.New("missing answer for subquestion")
	// ErrInvalidFormat rejects an answer that cannot be parsed for its question type.
	ErrInvalidFormat = errors.New("invalid answer format")
	// ErrSubmissionClosed is returned while the submission gate is shut.
	ErrSubmissionClosed = errors.New("submissions are closed")
	// ErrUnauthorized is returned for admin actions without an admin session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken is returned when a team join token does not match.
	ErrInvalidToken = errors.New("invalid team token")
	// ErrInvalidCatalog marks a catalog that fails validation at load time.
	ErrInvalidCatalog = errors.New("invalid quiz catalog")
	// ErrInvalidConfig marks configuration that fails validation at load time.
	ErrInvalidConfig = errors.New("invalid configuration")
)
