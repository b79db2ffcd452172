// Package dedupe provides a TTL cache keyed by request id so a handler can
// recognise a retried request and answer it without repeating side effects.
package dedupe
