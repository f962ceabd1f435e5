package config

import (
	"errors"
	"fmt"
	"strings"
)

// UnresolvableKeyError reports a key with no registered provider.
type UnresolvableKeyError struct {
	Key string
}

func (e *UnresolvableKeyError) Error() string {
	return fmt.Sprintf("don't know how to configure %q", e.Key)
}

// CyclicDependencyError reports a provider chain that re-entered a key
// already being resolved. Stack lists the in-flight keys in the order they
// were first encountered.
type CyclicDependencyError struct {
	Stack []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic configuration dependencies: %s", strings.Join(e.Stack, ", "))
}

// MissingCapabilityError reports a provider reaching for a capability that
// was never supplied to the resolver.
type MissingCapabilityError struct {
	Capability string
	Key        string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("no %s available to configure %q", e.Capability, e.Key)
}

// AwaitingActionError is the distinguished outcome of a provider that
// cannot finish until the operator completes an out-of-band step, such as
// visiting a consent link. It bubbles up through Get so the caller decides
// how to stop the run.
type AwaitingActionError struct {
	Key  string
	Link string
}

func (e *AwaitingActionError) Error() string {
	return fmt.Sprintf("configuring %q awaits operator action at %s", e.Key, e.Link)
}

// ErrCanceled is reported when the operator refuses a confirmation.
var ErrCanceled = errors.New("canceled")

// InvalidSelectionError reports an operator selection outside the offered
// choices.
type InvalidSelectionError struct {
	Value string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q", e.Value)
}
