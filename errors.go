package fbrealtime

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a verification failure so hosts can map it to a response
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfig
	KindInvalidMode
	KindTokenMismatch
	KindMissingChallenge
	KindMissingSignature
	KindEmptyBody
	KindSignatureMismatch
	KindDeserialization
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindConfig:            "config_error",
	KindInvalidMode:       "invalid_mode",
	KindTokenMismatch:     "token_mismatch",
	KindMissingChallenge:  "missing_challenge",
	KindMissingSignature:  "missing_signature",
	KindEmptyBody:         "empty_body",
	KindSignatureMismatch: "signature_mismatch",
	KindDeserialization:   "deserialization_error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// IsAuthenticityFailure reports whether the kind means the notification could not be
// proven to come from Facebook
func (k ErrorKind) IsAuthenticityFailure() bool {
	switch k {
	case KindMissingSignature, KindEmptyBody, KindSignatureMismatch:
		return true
	}
	return false
}

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrConfig            = errors.New("subscription settings not configured")
	ErrInvalidMode       = errors.New("invalid " + HubModeKey)
	ErrTokenMismatch     = errors.New("invalid " + HubVerifyTokenKey)
	ErrMissingChallenge  = errors.New("invalid " + HubChallengeKey)
	ErrMissingSignature  = errors.New("invalid " + SignatureHeader + " request header")
	ErrEmptyBody         = errors.New("request body is empty")
	ErrSignatureMismatch = errors.New(SignatureHeader + " does not match request body")
	ErrDeserialization   = errors.New("failed to deserialize notification")
)

var sentinels = map[ErrorKind]error{
	KindConfig:            ErrConfig,
	KindInvalidMode:       ErrInvalidMode,
	KindTokenMismatch:     ErrTokenMismatch,
	KindMissingChallenge:  ErrMissingChallenge,
	KindMissingSignature:  ErrMissingSignature,
	KindEmptyBody:         ErrEmptyBody,
	KindSignatureMismatch: ErrSignatureMismatch,
	KindDeserialization:   ErrDeserialization,
}

// VerificationError is returned by the verifiers. Err carries the underlying cause,
// which is the deserializer's error for KindDeserialization and nil otherwise.
// The message never contains secrets or digests.
type VerificationError struct {
	Kind ErrorKind
	Err  error
}

func newError(kind ErrorKind, cause error) *VerificationError {
	return &VerificationError{Kind: kind, Err: cause}
}

func (e *VerificationError) Error() string {
	base := sentinels[e.Kind]
	if base == nil {
		base = errors.New(e.Kind.String())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base.Error()
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *VerificationError) Is(target error) bool {
	if t, ok := target.(*VerificationError); ok {
		return t.Kind == e.Kind
	}
	return sentinels[e.Kind] == target
}

// KindOf returns the kind of err, or KindUnknown when err is not a verification failure
func KindOf(err error) ErrorKind {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return KindUnknown
	}

	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
