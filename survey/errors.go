package survey

import "github.com/pkg/errors"

// Domain errors. They abort the enclosing transaction and propagate to the
// HTTP layer untouched; match with errors.Is.
var (
	ErrSurveyNotFound   = errors.New("survey not found")
	ErrVersionNotFound  = errors.New("survey version not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoResponse       = errors.New("no response found for the given survey and user")
)
