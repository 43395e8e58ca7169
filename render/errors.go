package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/oxhq/scopeq/query"
)

// Error codes for machine-readable output.
const (
	ErrReadFile        = "ERR_READ_FILE"
	ErrConfig          = "ERR_CONFIG"
	ErrUnsupportedLang = "ERR_UNSUPPORTED_LANG"
	ErrQuery           = "ERR_QUERY"
	ErrDatabase        = "ERR_DATABASE"
	ErrGoldenMismatch  = "ERR_GOLDEN_MISMATCH"
	ErrUsage           = "ERR_USAGE"
	ErrUnknown         = "ERR_UNKNOWN"
)

// CLIError is a uniform error payload for both human and JSON output.
// When printed with %s it returns Message; JSON returns the payload.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func (e CLIError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e CLIError) Unwrap() error { return e.Err }

func (e CLIError) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Wrap generates a CLIError with code and keeps inner as its detail.
func Wrap(code, msg string, inner error) error {
	if inner == nil {
		return CLIError{Code: code, Message: msg}
	}
	return CLIError{Code: code, Message: msg, Detail: inner.Error(), Err: inner}
}

// AsCLIError converts any error to a CLIError, classifying well-known
// causes.
func AsCLIError(err error) CLIError {
	var ce CLIError
	if errors.As(err, &ce) {
		return ce
	}
	code := ErrUnknown
	switch {
	case errors.Is(err, query.ErrUnknownLanguage):
		code = ErrUnsupportedLang
	case errors.Is(err, query.ErrNotFound), errors.Is(err, query.ErrInheritanceCycle):
		code = ErrQuery
	}
	return CLIError{Code: code, Message: err.Error(), Err: err}
}

// Fatal prints err as JSON on w when jsonOut is set, otherwise as a
// one-line message.
func Fatal(w io.Writer, err error, jsonOut bool) {
	if jsonOut {
		fmt.Fprintln(w, AsCLIError(err).JSON())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
