package query

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic checking.
var (
	ErrNotFound         = errors.New("query source not found")
	ErrUnknownLanguage  = errors.New("unknown language")
	ErrInheritanceCycle = errors.New("inheritance cycle")
)

// DiagnosticKind provides a machine-readable identifier for a diagnostic.
type DiagnosticKind string

const (
	KindSyntaxError       DiagnosticKind = "SyntaxError"
	KindUnknownPredicate  DiagnosticKind = "UnknownPredicateWarning"
	KindUnknownNodeType   DiagnosticKind = "UnknownNodeTypeWarning"
	KindUnknownField      DiagnosticKind = "UnknownFieldWarning"
	KindInheritanceCycle  DiagnosticKind = "InheritanceCycleError"
	KindRegexCompile      DiagnosticKind = "RegexCompileError"
	KindUndeclaredCapture DiagnosticKind = "UndeclaredCaptureError"
	KindInjectionDepth    DiagnosticKind = "InjectionDepthWarning"
	KindLoad              DiagnosticKind = "LoadError"
	KindSourceSyntax      DiagnosticKind = "SourceSyntaxWarning"
)

// Severity orders diagnostics for tooling output.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// SyntaxErrorKind describes why a top-level pattern failed to parse.
type SyntaxErrorKind string

const (
	SyntaxUnexpectedEOF      SyntaxErrorKind = "unexpected-eof"
	SyntaxUnexpectedChar     SyntaxErrorKind = "unexpected-char"
	SyntaxUnterminatedString SyntaxErrorKind = "unterminated-string"
	SyntaxInvalidCapture     SyntaxErrorKind = "invalid-capture"
	SyntaxInvalidField       SyntaxErrorKind = "invalid-field"
	SyntaxInvalidPredicate   SyntaxErrorKind = "invalid-predicate"
	SyntaxEmptyAlternation   SyntaxErrorKind = "empty-alternation"
	SyntaxInvalidQuantifier  SyntaxErrorKind = "invalid-quantifier"
	SyntaxUnbalanced         SyntaxErrorKind = "unbalanced"
	SyntaxDuplicateCapture   SyntaxErrorKind = "duplicate-capture"
)

// SyntaxError reports one malformed top-level pattern. Other patterns in the
// same source still compile.
type SyntaxError struct {
	Offset int
	Kind   SyntaxErrorKind
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("query: %s at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("query: %s at offset %d", e.Kind, e.Offset)
}

// InheritanceCycleError is fatal for the query set of one language only.
type InheritanceCycleError struct {
	Language string
	Concern  string
	Path     []string
}

func (e *InheritanceCycleError) Error() string {
	return fmt.Sprintf("query: %s %s: inherits cycle %s", e.Language, e.Concern, strings.Join(e.Path, " -> "))
}

func (e *InheritanceCycleError) Unwrap() error { return ErrInheritanceCycle }

// RegexCompileError is surfaced when a #match? pattern does not compile. The
// predicate becomes always-false.
type RegexCompileError struct {
	Pattern string
	Err     error
}

func (e *RegexCompileError) Error() string {
	return fmt.Sprintf("query: invalid regex %q: %v", e.Pattern, e.Err)
}

func (e *RegexCompileError) Unwrap() error { return e.Err }

// Diagnostic is one non-fatal or fatal issue found while compiling or running
// a query set. Diagnostics are returned per call and never stored globally.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Severity Severity       `json:"severity"`
	Language string         `json:"language,omitempty"`
	Concern  string         `json:"concern,omitempty"`
	Pattern  int            `json:"pattern"`
	Offset   int            `json:"offset"`
	Message  string         `json:"message"`
	Err      error          `json:"-"`
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(string(d.Severity))
	b.WriteString(": ")
	if d.Language != "" {
		b.WriteString(d.Language)
		if d.Concern != "" {
			b.WriteString("/")
			b.WriteString(d.Concern)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Diagnostics is an accumulated list of diagnostics.
type Diagnostics []Diagnostic

// Warnings returns the warning-level diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Errors returns error and fatal diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity != SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// HasFatal reports whether any diagnostic invalidated a whole query set.
func (ds Diagnostics) HasFatal() bool {
	for _, d := range ds {
		if d.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// OfKind filters by kind.
func (ds Diagnostics) OfKind(kind DiagnosticKind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Err joins error-level diagnostics into one error, or nil.
func (ds Diagnostics) Err() error {
	var errs []error
	for _, d := range ds.Errors() {
		errs = append(errs, d)
	}
	return errors.Join(errs...)
}

func (ds Diagnostics) withSource(language, concern string) Diagnostics {
	for i := range ds {
		if ds[i].Language == "" {
			ds[i].Language = language
		}
		if ds[i].Concern == "" {
			ds[i].Concern = concern
		}
	}
	return ds
}
