package artifactstore

import (
	"fmt"
	"os"
)

const partSuffix = ".part"

// writeFile fills localPath+".part" and renames it into place, so localPath only ever
// names a complete download.
func writeFile(localPath string, fill func(f *os.File) error) (err error) {
	part := localPath + partSuffix
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(part)
		}
	}()

	if err := fill(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", part, err)
	}
	if err := os.Rename(part, localPath); err != nil {
		return fmt.Errorf("rename %s: %w", part, err)
	}
	return nil
}

func folderPrefix(folder string) string {
	if folder == "" {
		return ""
	}
	return folder + "/"
}
