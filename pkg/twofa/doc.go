// Package twofa implements two-factor authentication: the per-user
// setting entity, the enrollment decision table, TOTP secret handling,
// and login-time challenges.
//
// Enrollment moves a setting through absent -> unverified -> verified.
// A verified setting changes method only by staging the new method in
// the pending fields and promoting it after the user confirms.
package twofa
