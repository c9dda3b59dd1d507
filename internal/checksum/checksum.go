// Package checksum fingerprints content files for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dih-project/wishonia/internal/document"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Body returns the digest of the document body only. The metadata block is
// excluded so that tracking fields written into it never change the value.
// No whitespace or line-ending normalization is applied.
func Body(data []byte) (string, error) {
	doc, err := document.Parse(data)
	if err != nil {
		return "", err
	}
	return Of(doc), nil
}

// Of returns the body digest of an already parsed document.
func Of(doc *document.Document) string {
	return Sum([]byte(doc.Body))
}
