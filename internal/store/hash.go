package store

import (
	"crypto/sha256"
	"fmt"
)

// ComputeDocumentHash hashes the wire encoding of a document. Equal hashes
// mean byte-identical documents, so an unchanged API is not stored twice.
func ComputeDocumentHash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
