package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/luinbytes/recovery-dedup/storage"
)

// errAborted is returned when the user declines a real run.
var errAborted = errors.New("aborted by user, nothing was deleted")

// formatFileError provides user-friendly error messages for common file issues
func formatFileError(path string, err error) string {
	errStr := err.Error()

	switch {
	case errors.Is(err, storage.ErrOutsideAllowedRoots):
		return fmt.Sprintf("%s: Outside the recovery folders, refusing to touch it.", path)
	case os.IsPermission(err) || errors.Is(err, os.ErrPermission):
		return fmt.Sprintf("%s: Permission denied. Check ownership of the recovered files.", path)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("%s: File not found. It may have been deleted or moved.", path)
	case strings.Contains(errStr, "too many open files"):
		return fmt.Sprintf("%s: System limit reached. Try reducing --workers or increase ulimit.", path)
	case strings.Contains(errStr, "input/output error") || strings.Contains(errStr, "I/O error"):
		return fmt.Sprintf("%s: I/O error. The disk may be failing or the file is corrupted.", path)
	case strings.Contains(errStr, "is a directory"):
		return fmt.Sprintf("%s: Expected a file but found a directory.", path)
	case strings.Contains(errStr, "invalid argument"):
		return fmt.Sprintf("%s: Invalid file or path. Check for special characters in filename.", path)
	default:
		return fmt.Sprintf("%s: %v", path, err)
	}
}
