package fbrealtime

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Pre-computed HMAC-SHA1 vectors. Do not derive these from ComputeSignature.
const (
	vectorSecret = "s3cr3t"
	vectorBody   = `{"id":1}`
	vectorSHA1   = "6342067fac04bc853017a89166d1f93e772cf802"
	// HMAC-SHA256 of the same input, must never be accepted
	vectorSHA256 = "cf53d34ae9c52a1195d01da20d5dde80613c4d386540c46bbcb9253014ddc505"

	pageSecret = "app-secret"
	pageBody   = `{"object":"page","entry":[{"id":"1","time":1700000000,"changes":[{"field":"feed","value":{"item":"post"}}]}]}`
	pageSHA1   = "1a4335891eefd601bce4492780fda5c2a5ccd52c"

	unicodeBody = "héllo wörld"
	unicodeSHA1 = "882dc9342a3e0d80b85b57d02464f34955b5f1cd"
)

func TestVerifySubscribe(t *testing.T) {
	tests := []struct {
		name          string
		mode          string
		token         string
		challenge     string
		expectedToken string
		want          string
		wantErr       error
	}{
		{
			name:          "valid handshake",
			mode:          "subscribe",
			token:         "tok",
			challenge:     "ch",
			expectedToken: "tok",
			want:          "ch",
		},
		{
			name:          "non-ascii challenge returned unchanged",
			mode:          "subscribe",
			token:         "tok",
			challenge:     "ch-ñ-挑战-\xff",
			expectedToken: "tok",
			want:          "ch-ñ-挑战-\xff",
		},
		{
			name:          "empty expected token",
			mode:          "subscribe",
			token:         "",
			challenge:     "ch",
			expectedToken: "",
			wantErr:       ErrConfig,
		},
		{
			name:          "empty expected token checked before mode",
			mode:          "unsubscribe",
			token:         "tok",
			challenge:     "ch",
			expectedToken: "",
			wantErr:       ErrConfig,
		},
		{
			name:          "unsubscribe mode",
			mode:          "unsubscribe",
			token:         "tok",
			challenge:     "ch",
			expectedToken: "tok",
			wantErr:       ErrInvalidMode,
		},
		{
			name:          "mode is case sensitive",
			mode:          "Subscribe",
			token:         "tok",
			challenge:     "ch",
			expectedToken: "tok",
			wantErr:       ErrInvalidMode,
		},
		{
			name:          "empty mode",
			mode:          "",
			token:         "tok",
			challenge:     "ch",
			expectedToken: "tok",
			wantErr:       ErrInvalidMode,
		},
		{
			name:          "token mismatch",
			mode:          "subscribe",
			token:         "a",
			challenge:     "ch",
			expectedToken: "b",
			wantErr:       ErrTokenMismatch,
		},
		{
			name:          "token is not normalized",
			mode:          "subscribe",
			token:         " tok",
			challenge:     "ch",
			expectedToken: "tok",
			wantErr:       ErrTokenMismatch,
		},
		{
			name:          "token mismatch checked before challenge",
			mode:          "subscribe",
			token:         "a",
			challenge:     "",
			expectedToken: "b",
			wantErr:       ErrTokenMismatch,
		},
		{
			name:          "missing challenge",
			mode:          "subscribe",
			token:         "tok",
			challenge:     "",
			expectedToken: "tok",
			wantErr:       ErrMissingChallenge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifySubscribe(tt.mode, tt.token, tt.challenge, tt.expectedToken)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifySubscribe_UnsubscribeAlwaysInvalidMode(t *testing.T) {
	for _, token := range []string{"a", "tok", "long-verify-token"} {
		for _, challenge := range []string{"", "ch", "1158201444"} {
			_, err := VerifySubscribe("unsubscribe", token, challenge, token)
			assert.Equal(t, KindInvalidMode, KindOf(err), "token=%q challenge=%q", token, challenge)
		}
	}
}

func TestComputeSignature_Vectors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		body   string
		want   string
	}{
		{name: "short json", secret: vectorSecret, body: vectorBody, want: vectorSHA1},
		{name: "page update", secret: pageSecret, body: pageBody, want: pageSHA1},
		{name: "utf-8 body", secret: vectorSecret, body: unicodeBody, want: unicodeSHA1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSignature([]byte(tt.body), tt.secret)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 40)
			assert.Equal(t, strings.ToLower(got), got)
		})
	}
}

func TestVerifyNotification_Vectors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		body   string
		digest string
	}{
		{name: "short json", secret: vectorSecret, body: vectorBody, digest: vectorSHA1},
		{name: "page update", secret: pageSecret, body: pageBody, digest: pageSHA1},
		{name: "utf-8 body", secret: vectorSecret, body: unicodeBody, digest: unicodeSHA1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyNotification("sha1="+tt.digest, []byte(tt.body), tt.secret, RawBody)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(got))
		})
	}
}

func TestVerifyNotification_Failures(t *testing.T) {
	body := []byte(vectorBody)

	tests := []struct {
		name      string
		signature string
		body      []byte
		secret    string
		wantKind  ErrorKind
	}{
		{
			name:      "empty secret",
			signature: "sha1=" + vectorSHA1,
			body:      body,
			secret:    "",
			wantKind:  KindConfig,
		},
		{
			name:      "empty secret checked before signature",
			signature: "",
			body:      nil,
			secret:    "",
			wantKind:  KindConfig,
		},
		{
			name:      "empty header",
			signature: "",
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindMissingSignature,
		},
		{
			name:      "sha256 prefix",
			signature: "sha256=" + vectorSHA256,
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindMissingSignature,
		},
		{
			name:      "no prefix",
			signature: vectorSHA1,
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindMissingSignature,
		},
		{
			name:      "prefix is case sensitive",
			signature: "SHA1=" + vectorSHA1,
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindMissingSignature,
		},
		{
			name:      "prefix without digest",
			signature: "sha1=",
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindMissingSignature,
		},
		{
			name:      "empty body with valid looking header",
			signature: "sha1=" + vectorSHA1,
			body:      []byte{},
			secret:    vectorSecret,
			wantKind:  KindEmptyBody,
		},
		{
			name:      "nil body",
			signature: "sha1=" + vectorSHA1,
			body:      nil,
			secret:    vectorSecret,
			wantKind:  KindEmptyBody,
		},
		{
			name:      "wrong secret",
			signature: "sha1=" + vectorSHA1,
			body:      body,
			secret:    "other",
			wantKind:  KindSignatureMismatch,
		},
		{
			name:      "tampered body",
			signature: "sha1=" + vectorSHA1,
			body:      []byte(`{"id":2}`),
			secret:    vectorSecret,
			wantKind:  KindSignatureMismatch,
		},
		{
			name:      "upper-case digest",
			signature: "sha1=" + strings.ToUpper(vectorSHA1),
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindSignatureMismatch,
		},
		{
			name:      "truncated digest",
			signature: "sha1=" + vectorSHA1[:39],
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindSignatureMismatch,
		},
		{
			name:      "sha256 digest behind sha1 prefix",
			signature: "sha1=" + vectorSHA256,
			body:      body,
			secret:    vectorSecret,
			wantKind:  KindSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			_, err := VerifyNotification(tt.signature, tt.body, tt.secret, func(b []byte) ([]byte, error) {
				called = true
				return b, nil
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.False(t, called, "deserializer must not run on failure")
		})
	}
}

func TestVerifyNotification_FlippedHexCharacter(t *testing.T) {
	body := []byte(vectorBody)

	for i := 0; i < len(vectorSHA1); i++ {
		flipped := []byte(vectorSHA1)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}

		_, err := VerifyNotification("sha1="+string(flipped), body, vectorSecret, RawBody)
		require.Error(t, err, "position %d", i)
		assert.ErrorIs(t, err, ErrSignatureMismatch, "position %d", i)
	}
}

func TestVerifyNotification_DeserializationError(t *testing.T) {
	cause := errors.New("boom")

	_, err := VerifyNotification("sha1="+vectorSHA1, []byte(vectorBody), vectorSecret, func([]byte) (int, error) {
		return 0, cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeserialization)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSignatureMismatch)
	assert.False(t, KindOf(err).IsAuthenticityFailure())
}

func TestVerifyNotification_JSON(t *testing.T) {
	got, err := VerifyNotification("sha1="+pageSHA1, []byte(pageBody), pageSecret, JSON[PageUpdate]())
	require.NoError(t, err)
	assert.Equal(t, "page", got.Object)
	require.Len(t, got.Entry, 1)
	assert.Equal(t, "1", got.Entry[0].ID)
	assert.Equal(t, int64(1700000000), got.Entry[0].Time)
	assert.Equal(t, []string{"feed"}, got.Fields())
}

func TestVerifyNotification_JSONMalformedPayload(t *testing.T) {
	body := []byte("not json")
	sig := FormatSignatureHeader(ComputeSignature(body, vectorSecret))

	_, err := VerifyNotification(sig, body, vectorSecret, JSON[PageUpdate]())
	require.Error(t, err)
	assert.Equal(t, KindDeserialization, KindOf(err))
}

func TestVerifyNotification_RoundTrip(t *testing.T) {
	bodies := []string{"x", vectorBody, pageBody, unicodeBody, strings.Repeat("a", 4096)}
	secrets := []string{"k", vectorSecret, "a much longer secret than the sha1 block size of sixty four bytes........"}

	for _, secret := range secrets {
		for _, body := range bodies {
			sig := FormatSignatureHeader(ComputeSignature([]byte(body), secret))
			got, err := VerifyNotification(sig, []byte(body), secret, RawBody)
			require.NoError(t, err)
			assert.Equal(t, body, string(got))
		}
	}
}

func TestErrorMessagesDoNotLeakDigests(t *testing.T) {
	_, err := VerifyNotification("sha1="+vectorSHA1, []byte(vectorBody), "other", RawBody)
	require.Error(t, err)

	computed := ComputeSignature([]byte(vectorBody), "other")
	assert.NotContains(t, err.Error(), computed)
	assert.NotContains(t, err.Error(), vectorSHA1)
	assert.NotContains(t, err.Error(), "other")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindTokenMismatch, KindOf(ErrTokenMismatch))

	wrapped := errors.Join(errors.New("context"), newError(KindEmptyBody, nil))
	assert.Equal(t, KindEmptyBody, KindOf(wrapped))

	assert.True(t, KindSignatureMismatch.IsAuthenticityFailure())
	assert.True(t, KindEmptyBody.IsAuthenticityFailure())
	assert.False(t, KindTokenMismatch.IsAuthenticityFailure())
	assert.Equal(t, "signature_mismatch", KindSignatureMismatch.String())
}

func TestSubscriptionSettings_Validate(t *testing.T) {
	assert.NoError(t, NewSubscriptionSettings("secret", "token").Validate())
	assert.ErrorIs(t, NewSubscriptionSettings("", "token").Validate(), ErrConfig)
	assert.ErrorIs(t, NewSubscriptionSettings("secret", "").Validate(), ErrConfig)
}
