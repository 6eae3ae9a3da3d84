// Package hearth implements the communal sustenance engine.
//
// Engine owns one IntensityState aggregate and serializes every mutation behind a mutex:
// Contribute (cooldown check, ledger add, persist), Protect (stacking protection window) and
// Tick (period-based catch-up decay scaled by an external modifier, contribution expiry).
// Scheduler is the thin driver that calls Tick on a fixed period, resets daily counters at
// midnight and garbage-collects stale cooldown entries. All state transitions take an
// explicit now, so tests run without real timers.
package hearth
