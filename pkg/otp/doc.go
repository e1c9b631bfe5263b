// Package otp implements the one-time code lifecycle: issuing codes
// bound to (user, purpose, channel), throttling sends, dispatching
// codes through notifiers, and consuming them exactly once.
package otp
