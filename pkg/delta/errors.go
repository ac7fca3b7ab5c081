package delta

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match these via errors.Is.
var (
	// ErrVersionNotFound is returned when a requested version is outside the retained log.
	ErrVersionNotFound = errors.New("version not found")
	// ErrCorruptLog is returned when the transaction log violates its integrity rules.
	ErrCorruptLog = errors.New("corrupt transaction log")
	// ErrAuthentication is returned when the storage backend rejects the caller's identity.
	ErrAuthentication = errors.New("authentication failed")
	// ErrMalformedConfigValue marks a table property that could not be parsed.
	ErrMalformedConfigValue = errors.New("malformed configuration value")
	// ErrTableNotFound is returned when a location holds no transaction log at all.
	ErrTableNotFound = errors.New("no delta transaction log found")
)

// VersionNotFoundError reports a version outside the reconstructible range.
type VersionNotFoundError struct {
	Requested int64
	Oldest    int64
	Latest    int64
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %d not found: available versions are %d..%d", e.Requested, e.Oldest, e.Latest)
}

// Is matches ErrVersionNotFound.
func (e *VersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}

// CorruptLogError reports a log integrity violation at a specific version.
type CorruptLogError struct {
	Version int64
	Path    string
	Reason  string
	Err     error
}

func (e *CorruptLogError) Error() string {
	msg := fmt.Sprintf("corrupt transaction log at version %d: %s", e.Version, e.Reason)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path %q)", e.Path)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is matches ErrCorruptLog.
func (e *CorruptLogError) Is(target error) bool {
	return target == ErrCorruptLog
}

// Unwrap returns the underlying cause, if any.
func (e *CorruptLogError) Unwrap() error {
	return e.Err
}

// AuthenticationError wraps a 401/403-style storage failure with remediation steps.
type AuthenticationError struct {
	Location    string
	StatusCode  int
	Remediation string
	Err         error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed for %s", e.Location)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if e.Remediation != "" {
		msg += ". " + e.Remediation
	}

	if e.Err != nil {
		msg += "\n\nOriginal error: " + e.Err.Error()
	}

	return msg
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// Unwrap returns the backend error.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// MalformedConfigValueError records a table property that fell back to its default.
// It is informational and never aborts an analysis pass.
type MalformedConfigValueError struct {
	Key     string `json:"key"     yaml:"key"`
	Value   string `json:"value"   yaml:"value"`
	Default string `json:"default" yaml:"default"`
}

func (e *MalformedConfigValueError) Error() string {
	return fmt.Sprintf("malformed value %q for %s, using default %s", e.Value, e.Key, e.Default)
}

// Is matches ErrMalformedConfigValue.
func (e *MalformedConfigValueError) Is(target error) bool {
	return target == ErrMalformedConfigValue
}
