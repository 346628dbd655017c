// Package fileid derives stable Q&A pair IDs from the seed file a pair was imported from.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const prefix = "seed:"

// PathHash returns the hex SHA-256 of the cleaned path.
func PathHash(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(hash[:])
}

// PairID returns the ID of the pair at row (1-based) of the seed file at absolutePath.
// Re-importing the same file yields the same IDs, so rows overwrite their previous version.
func PairID(absolutePath string, row int) string {
	return fmt.Sprintf("%s%s:%d", prefix, PathHash(absolutePath), row)
}
