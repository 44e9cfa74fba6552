package embeddings

import "errors"

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrModelLoad indicates the model artifact or runtime could not be
	// loaded. Fatal at daemon startup; the daemon must refuse to serve.
	ErrModelLoad = errors.New("model load failed")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates embedding generation failure after a
	// successful load.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrFastEmbedNotAvailable is returned when the binary was built
	// without CGO and the local ONNX backend cannot run.
	ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support)")
)
