package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{"bare", New(CodeUnknownChannel, "no channel 'bbc1.uk'"), "[UNKNOWN_CHANNEL] no channel 'bbc1.uk'"},
		{"with cause", FeedMalformedError(errors.New("EOF")), "[FEED_MALFORMED] feed is not well-formed: EOF"},
		{"record without cause", RecordError(CodeSchemeUnrecognized, "unknown scheme", nil), "[SCHEME_UNRECOGNIZED] unknown scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Chain(t *testing.T) {
	cause := errors.New("permission denied")
	err := fmt.Errorf("import: %w", FeedOpenError("/srv/guide.xml.gz", cause))

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if !errors.Is(err, New(CodeFeedOpen, "")) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(err, New(CodeFeedMalformed, "")) {
		t.Error("expected a different code not to match")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("expected errors.As to find the AppError")
	}
	if appErr.Context["path"] != "/srv/guide.xml.gz" {
		t.Errorf("expected path context, got %v", appErr.Context["path"])
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		err   error
		class Class
	}{
		{FeedOpenError("x", errors.New("denied")), ClassFatal},
		{fmt.Errorf("wrapped: %w", FeedMalformedError(nil)), ClassFatal},
		{RecordError(CodeInvalidInterval, "bad stop", nil), ClassRecord},
		{New(CodeDownload, "404"), ClassRecord},
		{New(CodeUnmappedCategory, "Curling"), ClassAdvisory},
		{New(CodeSuspiciousEpisodeTag, "SH with episode"), ClassAdvisory},
		{DatabaseError("insert", errors.New("locked")), ClassOperational},
		{errors.New("plain"), ClassOperational},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.class {
				t.Errorf("ClassOf() = %s, want %s", got, tt.class)
			}
			if IsFatal(tt.err) != (tt.class == ClassFatal) {
				t.Errorf("IsFatal() disagrees with class %s", tt.class)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New("file not found")
	if err := ConfigError("load failed", cause); err.Code != CodeConfig || err.Err != cause {
		t.Errorf("unexpected config error %#v", err)
	}
	if err := ConfigError("missing field", nil); err.Err != nil {
		t.Errorf("expected no cause, got %v", err.Err)
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ValidationError("x")); got != CodeValidation {
		t.Errorf("GetErrorCode() = %v, want %v", got, CodeValidation)
	}
	if got := GetErrorCode(errors.New("standard")); got != CodeUnknown {
		t.Errorf("GetErrorCode() = %v, want %v", got, CodeUnknown)
	}
	if !IsValidationError(New(CodeInvalidInput, "bad")) {
		t.Error("expected invalid input to be a validation error")
	}
	if IsValidationError(NotFoundError("channel", "7")) {
		t.Error("expected not found not to be a validation error")
	}
	if NotFoundError("channel", "7").Message != "channel not found: 7" {
		t.Error("unexpected not found message")
	}
}
