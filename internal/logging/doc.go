// Package logging wraps zap for reflectd.
//
// Logs go to stderr, never stdout: reflectd binaries run as hooks
// whose stdout is user-visible, so stdout stays reserved for the one
// acknowledgement line the hook contract allows. An optional OTEL core
// mirrors records to a log provider when telemetry is enabled.
//
// Loggers are context-aware: trace/span ids and the per-request id are
// pulled from the context on every call.
package logging
