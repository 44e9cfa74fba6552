// Package client talks to the classification daemon on behalf of hooks
// and the CLI. Its contract is bounded time, never errors: every failure
// mode on the classify path degrades to the unknown result inside a
// fixed small budget, because callers sit on an interactive prompt path
// where a stall is worse than a missed classification.
//
// Classify never spawns the daemon. Spawning belongs to Ensure, the
// session-start path, where waiting seconds is acceptable.
package client
