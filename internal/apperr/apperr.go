package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are stable; scripts branch on the exit
// codes derived from them.
type Kind int

const (
	KindUnknown Kind = iota
	KindSourceResolution
	KindOfflineCacheMiss
	KindNetwork
	KindCatalog
	KindCatalogCycle
	KindAnswerValidation
	KindRequiredVariableMissing
	KindUnresolvedReference
	KindTemplate
	KindUndefinedVariable
	KindTemplateSyntax
	KindMaterialization
	KindCacheLock
	KindArchetypeCycle
	KindRequirements
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindSourceResolution:        "source-resolution",
	KindOfflineCacheMiss:        "offline-cache-miss",
	KindNetwork:                 "network",
	KindCatalog:                 "catalog",
	KindCatalogCycle:            "catalog-cycle",
	KindAnswerValidation:        "answer-validation",
	KindRequiredVariableMissing: "required-variable-missing",
	KindUnresolvedReference:     "unresolved-reference",
	KindTemplate:                "template",
	KindUndefinedVariable:       "undefined-variable",
	KindTemplateSyntax:          "template-syntax",
	KindMaterialization:         "materialization",
	KindCacheLock:               "cache-lock",
	KindArchetypeCycle:          "archetype-cycle",
	KindRequirements:            "requirements",
	KindCancelled:               "cancelled",
}

// String returns the kebab-case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Family returns the top-level taxonomy bucket a kind belongs to.
func (k Kind) Family() Kind {
	switch k {
	case KindOfflineCacheMiss, KindNetwork, KindRequirements:
		return KindSourceResolution
	case KindCatalogCycle:
		return KindCatalog
	case KindRequiredVariableMissing, KindUnresolvedReference:
		return KindAnswerValidation
	case KindUndefinedVariable, KindTemplateSyntax, KindArchetypeCycle:
		return KindTemplate
	default:
		return k
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "resolve source"
	Subject string // path, variable name, or source specifier
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Subject != "" {
		if msg != "" {
			msg += " "
		}
		msg += fmt.Sprintf("%q", e.Subject)
	}
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error from a message.
func New(kind Kind, op, subject, msg string) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: errors.New(msg)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether any classified error in err's chain has the given kind,
// or belongs to it when kind is a family.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind || e.Kind.Family() == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Exit codes by family. 0 and 1 keep their conventional meaning.
const (
	ExitOK               = 0
	ExitGeneric          = 1
	ExitSource           = 10
	ExitOfflineCacheMiss = 11
	ExitCatalog          = 20
	ExitAnswers          = 30
	ExitTemplate         = 40
	ExitMaterialization  = 50
	ExitCacheLock        = 60
	ExitCancelled        = 130
)

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	kind := KindOf(err)
	switch {
	case kind == KindOfflineCacheMiss:
		return ExitOfflineCacheMiss
	case kind == KindCancelled:
		return ExitCancelled
	}
	switch kind.Family() {
	case KindSourceResolution:
		return ExitSource
	case KindCatalog:
		return ExitCatalog
	case KindAnswerValidation:
		return ExitAnswers
	case KindTemplate:
		return ExitTemplate
	case KindMaterialization:
		return ExitMaterialization
	case KindCacheLock:
		return ExitCacheLock
	default:
		return ExitGeneric
	}
}
