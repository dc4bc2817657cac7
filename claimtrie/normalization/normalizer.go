// Package normalization implements the name-folding rule introduced by the
// Unicode-normalization fork (§4.9, §9): NFD decomposition followed by case
// folding, applied to turn an external name into its canonical nodeName.
package normalization

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize returns the canonical nodeName for name. It is a pure function
// with no height awareness; callers (node.NormalizingManager) are
// responsible for only invoking it once the normalization fork is active
// at the relevant height.
func Normalize(name []byte) []byte {
	return normalizeGo(name)
}

// normalizeGo is the reference (non-cgo) implementation: NFD decomposition
// then Unicode case folding, matching the original client's
// unicodedata.normalize('NFD', name).casefold() behaviour exactly enough
// that normalizer_icu_test.go can assert byte-for-byte agreement with the
// ICU-backed implementation on historical edge cases.
func normalizeGo(name []byte) []byte {
	decomposed := norm.NFD.Bytes(name)
	return folder.Bytes(decomposed)
}
