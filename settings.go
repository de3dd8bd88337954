package fbrealtime

import (
	"errors"
	"net/http"
)

// SubscriptionSettings holds the secrets shared with Facebook for one app subscription
type SubscriptionSettings struct {
	AppSecret   string `yaml:"app_secret"`
	VerifyToken string `yaml:"verify_token"`
}

// NewSubscriptionSettings creates settings for an app secret and verify token
func NewSubscriptionSettings(appSecret, verifyToken string) SubscriptionSettings {
	return SubscriptionSettings{
		AppSecret:   appSecret,
		VerifyToken: verifyToken,
	}
}

// Validate reports a KindConfig error when either secret is empty
func (s SubscriptionSettings) Validate() error {
	if s.AppSecret == "" {
		return newError(KindConfig, errors.New("app secret is required"))
	}
	if s.VerifyToken == "" {
		return newError(KindConfig, errors.New("verify token is required"))
	}
	return nil
}

// SettingsProvider resolves the settings that apply to a request. Returning false
// means no subscription is configured for it and the handler answers 404.
type SettingsProvider func(r *http.Request) (SubscriptionSettings, bool)

// StaticSettings returns a provider that always yields settings
func StaticSettings(settings SubscriptionSettings) SettingsProvider {
	return func(*http.Request) (SubscriptionSettings, bool) {
		return settings, true
	}
}
