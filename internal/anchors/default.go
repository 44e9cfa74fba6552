package anchors

import _ "embed"

//go:embed anchors.yaml
var defaultData []byte

// Default returns the anchor set shipped in the binary. The embedded file
// goes through the same validation as external files so a bad edit fails
// loudly at startup rather than skewing classification.
func Default() (*Set, error) {
	return LoadBytes(defaultData)
}
