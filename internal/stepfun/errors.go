package stepfun

import (
	"errors"
	"fmt"
)

// Failure kinds carried by Error.
const (
	KindAPI            = "ApiError"
	KindAuthentication = "AuthenticationError"
)

const (
	errFmtStatusFailed   = "API request failed with status %d"
	errInvalidAPIKey     = "The API Key you supplied is invalid. Please check your Stepfun.ai API Key."
	errNoAudioInResponse = "Stepfun API did not return audio content or a URL"
	errFmtVoiceEntry     = "unexpected voice entry at index %d: expected a string, got %s"
	errFmtVoiceList      = "unexpected voices field: expected an array, got %s"
)

// Sentinels for errors.Is; they match any Error of the same kind.
var (
	ErrAPI            = &Error{Message: "stepfun api error", Kind: KindAPI, Status: 0}
	ErrAuthentication = &Error{Message: "stepfun authentication error", Kind: KindAuthentication, Status: 0}
)

// Local validation errors, raised before any request is sent.
var (
	ErrTextEmpty         = errors.New("text cannot be empty")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrNoBlobStore       = errors.New("no blob store configured for binary audio")
	ErrEmptyAudioURL     = errors.New("blob store returned an empty URL")
)

// Error is a classified failure: a human-readable message, a short kind tag
// and the upstream HTTP status when one is known (0 otherwise).
type Error struct {
	Message string
	Kind    string
	Status  int
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return other.Kind == e.Kind
}

// NewAPIError returns an ApiError with the given message and status.
func NewAPIError(message string, status int) *Error {
	return &Error{Message: message, Kind: KindAPI, Status: status}
}

// NewAuthenticationError returns the AuthenticationError raised when the
// upstream rejects a key.
func NewAuthenticationError(status int) *Error {
	return &Error{Message: errInvalidAPIKey, Kind: KindAuthentication, Status: status}
}

func newStatusError(status int) *Error {
	return NewAPIError(fmt.Sprintf(errFmtStatusFailed, status), status)
}

// KindOf returns the kind tag of a classified failure in err's chain, or ""
// when err is not classified.
func KindOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	return ""
}
