// Package fbrealtime verifies Facebook Realtime Updates (webhook) subscriptions.
//
// VerifySubscribe checks the GET handshake (hub.mode, hub.verify_token,
// hub.challenge) and returns the challenge to echo back. VerifyNotification checks
// the X-Hub-Signature HMAC-SHA1 of a POST delivery against the app secret and hands
// the authentic body to a caller supplied Deserializer. Both are pure functions and
// safe for concurrent use.
//
// Handler and Client adapt the verifiers to net/http and chi, with optional
// redelivery deduplication (see package cache) and a circuit breaker around the
// application callback.
//
//	cfg, err := fbrealtime.ConfigFromEnv()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := fbrealtime.NewClient(cfg, logger, fbrealtime.JSON[fbrealtime.PageUpdate](), onUpdate)
//	if err != nil {
//		log.Fatal(err)
//	}
//	client.Register(router)
package fbrealtime
