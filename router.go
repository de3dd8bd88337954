package fbrealtime

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register mounts h for both the GET handshake and POST deliveries on path
func Register(r chi.Router, path string, h http.Handler) {
	r.Method(http.MethodGet, path, h)
	r.Method(http.MethodPost, path, h)
}

// URLParamSettings returns a provider that looks settings up by the chi URL
// parameter param, e.g. an app id in "/facebook/{app}".
func URLParamSettings(param string, lookup func(value string) (SubscriptionSettings, bool)) SettingsProvider {
	return func(r *http.Request) (SubscriptionSettings, bool) {
		value := chi.URLParam(r, param)
		if value == "" {
			return SubscriptionSettings{}, false
		}
		return lookup(value)
	}
}
