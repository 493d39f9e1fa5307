// Package biometric wraps the platform biometric capability behind a
// three-method gateway: availability, factor type and a one-shot prompt.
//
// Platform integrations implement Sensor. The Gateway picks among sensors
// by type priority (fingerprint, then face, then iris). Authentication
// reports only success or failure: a cancelled prompt, a hardware error and
// a user choosing the PIN instead are indistinguishable to callers, which
// must always keep the PIN path available.
package biometric
