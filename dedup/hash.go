package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/luinbytes/recovery-dedup/storage"
)

// chunkSize bounds the memory used to hash a file, whatever its size.
const chunkSize = 64 * 1024

// ContentHash is the SHA-256 digest of a file's full content.
type ContentHash [sha256.Size]byte

func (h ContentHash) String() string {
	return hex.EncodeToString(h[:])
}

// Prefix returns the first n hex characters, as used in reason codes.
func (h ContentHash) Prefix(n int) string {
	s := h.String()
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// HashFile streams path through SHA-256 in fixed-size chunks.
func HashFile(ctx context.Context, opener storage.Opener, path string) (ContentHash, error) {
	var sum ContentHash

	f, err := opener.OpenFile(ctx, path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(hasher, onlyReader{f}, buf); err != nil {
		return sum, fmt.Errorf("failed to read file: %w", err)
	}

	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// onlyReader hides WriterTo so io.CopyBuffer really uses the fixed buffer.
type onlyReader struct {
	io.Reader
}
