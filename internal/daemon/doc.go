// Package daemon implements the reflectd classification daemon.
//
// The daemon owns the embedding model and the anchor set, loaded once
// at startup, and serves classify/embed/status requests over a Unix
// socket. The socket is bound before the model loads so early requests
// fail fast with a "not ready" frame instead of queueing behind a
// multi-second model load. Liveness is advertised through the socket
// file plus a PID file; both disappear on clean shutdown.
//
// Startup is idempotent: when the socket is already dialable another
// daemon owns it and Run returns ErrAlreadyRunning. A socket file that
// exists but refuses connections is treated as leftovers from a crash
// and removed.
package daemon
