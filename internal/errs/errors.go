package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorType int

const (
	ErrInvalidTranscript ErrorType = iota
	ErrOutOfRange
	ErrFetchFailed
	ErrSpeechUnavailable
	ErrConfig
	ErrUnknown
)

// Error is the typed error shared by the study core.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(errorType ErrorType, format string, args ...any) *Error {
	return New(errorType, fmt.Sprintf(format, args...))
}

func Wrap(err error, errorType ErrorType, message string) *Error {
	e := New(errorType, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrInvalidTranscript:
		return "InvalidTranscript"
	case ErrOutOfRange:
		return "OutOfRange"
	case ErrFetchFailed:
		return "FetchFailed"
	case ErrSpeechUnavailable:
		return "SpeechUnavailable"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Is reports whether any error in err's chain is an *Error of the given type.
func Is(err error, errorType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// UILanguage selects the notification language.
type UILanguage string

const (
	UIEnglish  UILanguage = "en"
	UIJapanese UILanguage = "jp"
)

// Notify returns the single user-facing message for err. Speech errors are
// silent: the affected control is disabled instead.
func Notify(err error, ui UILanguage) string {
	if err == nil {
		return ""
	}
	jp := ui == UIJapanese

	var e *Error
	if !errors.As(err, &e) {
		if jp {
			return "エラーが発生しました。"
		}
		return "An error occurred."
	}

	switch e.Type {
	case ErrInvalidTranscript, ErrFetchFailed:
		if jp {
			return "字幕の抽出に失敗しました。"
		}
		return "Failed to extract transcript."
	case ErrSpeechUnavailable:
		return ""
	case ErrConfig:
		if jp {
			return "設定を確認してください。"
		}
		return "Please check the configuration or environment variables."
	default:
		if jp {
			return "エラーが発生しました。"
		}
		return "An error occurred."
	}
}
