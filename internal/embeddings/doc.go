// Package embeddings turns UTF-8 text into fixed-length vectors using a
// local ONNX sentence-embedding model via fastembed. No network calls at
// inference time; the model artifact and ONNX runtime are fetched once
// into a local cache.
//
// Model load failures are startup-fatal (ErrModelLoad). Per-request
// failures surface as ErrEmbeddingFailed; the daemon treats those as
// fatal too, since a half-working embedder corrupts the availability
// guarantees of the session it serves.
package embeddings
