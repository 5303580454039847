// Package fingerprint derives the content key used to deduplicate submitted
// documents. Two inputs that differ only in incidental whitespace or Unicode
// composition share a fingerprint; metadata never participates.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/JaimeStill/assay/pkg/formatting"
)

// PreviewBytes is the default length of a stored text preview.
const PreviewBytes = 1024

// Fingerprint is the normalized form of a document and its content hash.
type Fingerprint struct {
	Hash       string
	Normalized string
}

// Normalize trims, collapses every run of Unicode whitespace to a single
// space, and applies NFC composition.
func Normalize(text string) string {
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}

// Hash returns the lowercase hex SHA-256 of already-normalized text.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Compute normalizes text and hashes the result.
func Compute(text string) Fingerprint {
	normalized := Normalize(text)
	return Fingerprint{
		Hash:       Hash(normalized),
		Normalized: normalized,
	}
}

// Preview returns at most max bytes of normalized text without splitting a
// UTF-8 sequence.
func (f Fingerprint) Preview(max int) string {
	return formatting.TruncateBytes(f.Normalized, max)
}

// Empty reports whether normalization left no content.
func (f Fingerprint) Empty() bool {
	return f.Normalized == ""
}
