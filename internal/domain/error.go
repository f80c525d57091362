package domain

import (
	"errors"
	"strings"
)

// ErrorKind classifies failures by how the controller must react to them.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"  // handled locally, never reaches the transcript
	KindProvider    ErrorKind = "provider"    // non-streaming call failed
	KindStream      ErrorKind = "stream"      // streaming call failed mid-flight, triggers fallback
	KindQuota       ErrorKind = "quota"       // upstream rate-limit / quota signal
	KindPersistence ErrorKind = "persistence" // storage read/write failed, logged and swallowed
)

// Error is the typed error carried across the domain boundary.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
			b.WriteString(e.Err.Error())
		}
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind) + " error")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrEmptyMessage        = &Error{Kind: KindValidation, Msg: "message is empty"}
	ErrTurnInFlight        = &Error{Kind: KindValidation, Msg: "a turn is already in flight"}
	ErrInsufficientCredits = &Error{Kind: KindValidation, Msg: "insufficient credits"}
	ErrPremiumModel        = &Error{Kind: KindValidation, Msg: "model requires the pro tier"}
	ErrUnknownModel        = &Error{Kind: KindValidation, Msg: "unknown model"}

	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrMessageFinalized = errors.New("message already finalized")
	ErrNoImageData      = errors.New("no image data returned from model")
	ErrEmptyResponse    = errors.New("empty response from model")
)

func NewProviderError(op string, err error) error {
	return &Error{Kind: KindProvider, Op: op, Err: err}
}

func NewStreamError(op string, err error) error {
	return &Error{Kind: KindStream, Op: op, Err: err}
}

func NewQuotaError(op string, err error) error {
	return &Error{Kind: KindQuota, Op: op, Err: err}
}

func NewPersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, k ErrorKind) bool { return err != nil && KindOf(err) == k }

const (
	QuotaMessage   = "The shared AI quota is exhausted right now. Add your own API key in settings (API_KEY) to keep chatting, or try again in a few minutes."
	GenericMessage = "Oops! Something went wrong. Let's try again?"
)

// UserFacingText converts a terminal provider failure into message content.
// The result is never empty.
func UserFacingText(err error) string {
	if err == nil {
		return GenericMessage
	}
	if IsKind(err, KindQuota) {
		return QuotaMessage
	}
	msg := err.Error()
	var de *Error
	if errors.As(err, &de) && de.Err != nil {
		msg = de.Err.Error()
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return GenericMessage
	}
	return "Something went wrong while talking to the model: " + msg
}
