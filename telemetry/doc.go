// Package telemetry reports pipeline failures to Sentry.
//
// A Reporter created without a DSN (or a nil *Reporter) silently drops
// everything, so components can report unconditionally.
package telemetry
