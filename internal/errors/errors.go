// Package errors defines the coded errors raised while importing a guide.
//
// Every code belongs to a Class that tells the caller what to do with it:
// fatal errors stop the run and commit nothing, record errors drop or degrade
// a single channel or programme, advisories are only logged and counted.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one kind of failure
type ErrorCode string

const (
	CodeFeedOpen      ErrorCode = "FEED_OPEN_ERROR"
	CodeFeedMalformed ErrorCode = "FEED_MALFORMED"

	CodeInvalidChannelID   ErrorCode = "INVALID_CHANNEL_ID"
	CodeUnknownChannel     ErrorCode = "UNKNOWN_CHANNEL"
	CodeInvalidInterval    ErrorCode = "INVALID_INTERVAL"
	CodeSchemeUnrecognized ErrorCode = "SCHEME_UNRECOGNIZED"
	CodeDownload           ErrorCode = "DOWNLOAD_ERROR"

	CodeUnmappedCategory     ErrorCode = "UNMAPPED_CATEGORY"
	CodeSuspiciousEpisodeTag ErrorCode = "SUSPICIOUS_EPISODE_TAG"

	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeDatabase     ErrorCode = "DATABASE_ERROR"
	CodeConfig       ErrorCode = "CONFIG_ERROR"
	CodeUnknown      ErrorCode = "UNKNOWN_ERROR"
)

// Class groups codes by how a run reacts to them
type Class int

const (
	ClassOperational Class = iota
	ClassFatal
	ClassRecord
	ClassAdvisory
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassRecord:
		return "record"
	case ClassAdvisory:
		return "advisory"
	}
	return "operational"
}

var classes = map[ErrorCode]Class{
	CodeFeedOpen:             ClassFatal,
	CodeFeedMalformed:        ClassFatal,
	CodeInvalidChannelID:     ClassRecord,
	CodeUnknownChannel:       ClassRecord,
	CodeInvalidInterval:      ClassRecord,
	CodeSchemeUnrecognized:   ClassRecord,
	CodeDownload:             ClassRecord,
	CodeUnmappedCategory:     ClassAdvisory,
	CodeSuspiciousEpisodeTag: ClassAdvisory,
}

// Class returns the class of c. Codes outside the import pipeline are
// operational.
func (c ErrorCode) Class() Class {
	return classes[c]
}

// AppError carries a code, a message and optionally the underlying cause
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError with the same code, so a bare New(code, "") can
// serve as a target for errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithContext attaches a field that loggers print next to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func FeedOpenError(path string, err error) *AppError {
	return Wrap(err, CodeFeedOpen, "failed to open feed").WithContext("path", path)
}

func FeedMalformedError(err error) *AppError {
	return Wrap(err, CodeFeedMalformed, "feed is not well-formed")
}

// RecordError builds an error for a single channel or programme
func RecordError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

func ConfigError(message string, err error) *AppError {
	return &AppError{Code: CodeConfig, Message: message, Err: err}
}

func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// GetErrorCode returns the code of the outermost AppError in err's chain
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// ClassOf returns the class of err's code
func ClassOf(err error) Class {
	return GetErrorCode(err).Class()
}

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	return ClassOf(err) == ClassFatal
}

func IsValidationError(err error) bool {
	switch GetErrorCode(err) {
	case CodeValidation, CodeInvalidInput:
		return true
	}
	return false
}
