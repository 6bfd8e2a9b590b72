package integration

import (
	"os"
	"path/filepath"
)

func removeFile(root, rel string) error {
	return os.Remove(filepath.Join(root, filepath.FromSlash(rel)))
}
