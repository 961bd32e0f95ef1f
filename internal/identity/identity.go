// Package identity derives stable source-file identities and per-chunk
// metadata envelopes.
//
// A parent id represents one source file at one point in time: any change to
// the file's resolved path, size, or modification time produces a new parent
// id, which is how reindexing detects "this file changed".
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

// ParentIDLength is the length of a parent id in hex characters (128 bits).
const ParentIDLength = 32

// ParentID returns the identity hash for the file at path: SHA-256 over the
// resolved absolute path, byte size, and integer-truncated modification time,
// truncated to 32 hex characters.
//
// Returns a FileUnavailable error if the file cannot be stat'd (for example
// it was removed mid-scan); callers skip the file rather than abort the run.
func ParentID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", qerrors.FileUnavailable(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", qerrors.FileUnavailable(path, err)
	}

	h := sha256.New()
	h.Write([]byte(abs))
	h.Write([]byte(fmt.Sprintf("%d", info.Size())))
	h.Write([]byte(fmt.Sprintf("%d", info.ModTime().Unix())))
	return hex.EncodeToString(h.Sum(nil))[:ParentIDLength], nil
}

// Metadata builds the serialized metadata envelope for chunks of the file at
// path. The envelope always includes the absolute path, file name, lowercased
// extension, byte size, and an ISO-8601 UTC modification timestamp. Extra
// fields are merged in and overwrite defaults on key collision.
func Metadata(path string, extra map[string]any) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", qerrors.FileUnavailable(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", qerrors.FileUnavailable(path, err)
	}

	data := map[string]any{
		"path":         abs,
		"name":         filepath.Base(abs),
		"suffix":       strings.ToLower(filepath.Ext(abs)),
		"size":         info.Size(),
		"modified_utc": info.ModTime().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		data[k] = v
	}

	out, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal metadata for %s: %w", path, err)
	}
	return string(out), nil
}

// Title returns the human-facing grouping key for a source file: its base name.
func Title(path string) string {
	return filepath.Base(path)
}
