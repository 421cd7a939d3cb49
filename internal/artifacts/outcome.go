package artifacts

import "fmt"

// Recoverable is a sub-artifact failure the build absorbed. The bundle is
// degraded (the artifact is missing) but the build itself succeeded.
type Recoverable struct {
	Artifact string
	Message  string
	Cause    error
}

func (r *Recoverable) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", r.Artifact, r.Message, r.Cause)
	}
	return fmt.Sprintf("%s: %s", r.Artifact, r.Message)
}

func (r *Recoverable) Unwrap() error {
	return r.Cause
}

// Outcome is the tagged result of a best-effort step: either a value or a
// Recoverable describing why the value is absent.
type Outcome[T any] struct {
	value T
	err   *Recoverable
	isOk  bool
}

// Ok creates a successful Outcome.
func Ok[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, isOk: true}
}

// Degraded creates a failed Outcome for artifact.
func Degraded[T any](artifact, message string, cause error) Outcome[T] {
	return Outcome[T]{err: &Recoverable{Artifact: artifact, Message: message, Cause: cause}}
}

// IsOk reports whether the step produced a value.
func (o Outcome[T]) IsOk() bool {
	return o.isOk
}

// UnwrapOr returns the value if Ok, otherwise fallback.
func (o Outcome[T]) UnwrapOr(fallback T) T {
	if o.isOk {
		return o.value
	}
	return fallback
}

// Err returns the Recoverable of a degraded outcome, nil when Ok.
func (o Outcome[T]) Err() *Recoverable {
	return o.err
}

// Match calls onOk or onErr depending on the outcome.
func (o Outcome[T]) Match(onOk func(T), onErr func(*Recoverable)) {
	if o.isOk {
		onOk(o.value)
	} else {
		onErr(o.err)
	}
}
