// Package engineerr classifies the error kinds from spec §7 so the
// orchestrator can apply a uniform retry/skip/abort policy without each
// component re-deriving transience from error text.
package engineerr

import (
	"errors"
	"strings"
)

// Kind distinguishes the handling policy, not just the failure site.
type Kind string

const (
	KindRetrieval       Kind = "retrieval"        // soft: log, empty results, continue
	KindGeneration      Kind = "generation"       // retry with backoff, then skip segment
	KindValidationParse Kind = "validation_parse" // never fatal, synthesized valid result
	KindCriticalRule    Kind = "critical_rule"    // bubbles to on_critical policy
	KindPersistence     Kind = "persistence"      // retry once, then abort run
	KindPoolSeeding     Kind = "pool_seeding"      // continue without story segments
)

// Error wraps an underlying cause with its handling Kind.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified Error.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// RetrievalError signals the Knowledge Store backend was unavailable.
func RetrievalError(cause error) error { return New(KindRetrieval, cause) }

// GenerationError signals an LLM transport/timeout failure during generation.
func GenerationError(cause error) error { return New(KindGeneration, cause) }

// ValidationParseError signals the LLM validator's output could not be parsed.
func ValidationParseError(cause error) error { return New(KindValidationParse, cause) }

// CriticalRuleViolation signals a hard rule violation survived all retries.
func CriticalRuleViolation(cause error) error { return New(KindCriticalRule, cause) }

// PersistenceError signals a checkpoint commit failure.
func PersistenceError(cause error) error { return New(KindPersistence, cause) }

// PoolSeedingFailure signals the Story Extractor produced zero stories
// after repeated filter relaxation.
func PoolSeedingFailure(cause error) error { return New(KindPoolSeeding, cause) }

// KindOf extracts the Kind from err, if it (or something it wraps) is one
// of this package's classified errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsTransient reports whether err should be retried by its caller rather
// than treated as permanent. Classified kinds use their documented policy;
// unclassified errors fall back to a text heuristic, matching the
// teacher's isTransientError in internal/orchestrator/handler.go.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if kind, ok := KindOf(err); ok {
		switch kind {
		case KindRetrieval, KindGeneration, KindPersistence:
			return true
		default:
			return false
		}
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "temporary") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "transient") ||
		strings.Contains(s, "retry") ||
		strings.Contains(s, "too many requests")
}
