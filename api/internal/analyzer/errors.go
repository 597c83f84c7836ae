package analyzer

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the backend can report for an analysis.
type Kind int

const (
	KindDelegate Kind = iota
	KindInvalidFileType
	KindEmptyUpload
	KindUploadTooLarge
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFileType:
		return "invalid_file_type"
	case KindEmptyUpload:
		return "empty_upload"
	case KindUploadTooLarge:
		return "upload_too_large"
	case KindConfiguration:
		return "configuration_error"
	default:
		return "delegate_failure"
	}
}

// ErrMissingAPIKey is returned by engines that have no credential configured.
var ErrMissingAPIKey = errors.New("missing API key")

const configurationMessage = "Server configuration error: Missing API Key"

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindDelegate when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindDelegate
}

func invalidFileType(ct string) *Error {
	return &Error{
		Kind: KindInvalidFileType,
		Msg:  fmt.Sprintf("Invalid file type %q. Only JPEG, PNG, or WebP allowed.", ct),
	}
}

func configurationError(err error) *Error {
	return &Error{Kind: KindConfiguration, Msg: configurationMessage, Err: err}
}

func delegateFailure(err error) *Error {
	return &Error{Kind: KindDelegate, Msg: "Failed to analyze image: " + err.Error(), Err: err}
}
