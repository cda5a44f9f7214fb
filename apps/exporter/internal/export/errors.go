package export

import "fmt"

// MalformedMessageError is returned when a queue event carries no records or
// its first record body is not a valid export request.
type MalformedMessageError struct {
	Body   string
	Reason string
}

// Error implements the error interface.
func (e MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed export message %q: %s", e.Body, e.Reason)
}

// UnknownEventError is returned when an event's source is neither a schedule
// tick nor a queue delivery.
type UnknownEventError struct {
	Source string
}

// Error implements the error interface.
func (e UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event source %q", e.Source)
}

// UnknownLanguageError is returned when an export names a language code that
// does not exist.
type UnknownLanguageError struct {
	Code string
}

// Error implements the error interface.
func (e UnknownLanguageError) Error() string {
	return fmt.Sprintf("unknown language %q", e.Code)
}
