package fbrealtime

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Protocol names fixed by the Facebook Realtime Updates API
const (
	SignatureHeader   = "X-Hub-Signature"
	HubModeKey        = "hub.mode"
	HubVerifyTokenKey = "hub.verify_token"
	HubChallengeKey   = "hub.challenge"

	SubscribeMode   = "subscribe"
	SignaturePrefix = "sha1="
)

// Deserializer turns a verified notification body into a payload
type Deserializer[T any] func(body []byte) (T, error)

// RawBody returns the body unchanged
func RawBody(body []byte) ([]byte, error) {
	return body, nil
}

// JSON returns a Deserializer that decodes the body into T with encoding/json
func JSON[T any]() Deserializer[T] {
	return func(body []byte) (T, error) {
		var payload T
		if err := json.Unmarshal(body, &payload); err != nil {
			return payload, fmt.Errorf("failed to parse notification payload: %w", err)
		}
		return payload, nil
	}
}

// VerifySubscribe validates a GET subscription handshake and returns the challenge
// to be echoed back verbatim.
func VerifySubscribe(mode, requestToken, challenge, expectedToken string) (string, error) {
	if expectedToken == "" {
		return "", newError(KindConfig, nil)
	}

	if mode != SubscribeMode {
		return "", newError(KindInvalidMode, nil)
	}

	if subtle.ConstantTimeCompare([]byte(requestToken), []byte(expectedToken)) != 1 {
		return "", newError(KindTokenMismatch, nil)
	}

	if challenge == "" {
		return "", newError(KindMissingChallenge, nil)
	}

	return challenge, nil
}

// VerifyNotification checks the X-Hub-Signature of a POST delivery against the app
// secret and, when authentic, hands the body to deserialize.
func VerifyNotification[T any](signatureHeader string, body []byte, appSecret string, deserialize Deserializer[T]) (T, error) {
	var zero T

	if appSecret == "" {
		return zero, newError(KindConfig, nil)
	}

	// sha1=4594ae916543cece9de48e3289a5ab568f514b6a
	if !strings.HasPrefix(signatureHeader, SignaturePrefix) {
		return zero, newError(KindMissingSignature, nil)
	}

	received := signatureHeader[len(SignaturePrefix):]
	if received == "" {
		return zero, newError(KindMissingSignature, nil)
	}

	if len(body) == 0 {
		return zero, newError(KindEmptyBody, nil)
	}

	expected := ComputeSignature(body, appSecret)
	if !hmac.Equal([]byte(received), []byte(expected)) {
		return zero, newError(KindSignatureMismatch, nil)
	}

	payload, err := deserialize(body)
	if err != nil {
		return zero, newError(KindDeserialization, err)
	}

	return payload, nil
}

// ComputeSignature returns the lower-case hex HMAC-SHA1 of body keyed by appSecret
func ComputeSignature(body []byte, appSecret string) string {
	mac := hmac.New(sha1.New, []byte(appSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatSignatureHeader formats a hex digest as an X-Hub-Signature header value
func FormatSignatureHeader(digest string) string {
	return SignaturePrefix + digest
}
