// Package modelcache tracks the local directory that holds the model artifacts.
//
// Completeness is derived on every call: the directory must exist and each required
// filename must be present as a regular file. Nothing about partial progress is stored.
package modelcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// DefaultRequiredFiles is the transformer-style artifact set the service loads.
var DefaultRequiredFiles = []string{
	"config.json",
	"model.safetensors",
	"tokenizer.json",
	"tokenizer_config.json",
	"special_tokens_map.json",
	"vocab.txt",
}

type Cache struct {
	dir   string
	files []string
}

// New returns a cache rooted at dir requiring the given filenames.
func New(dir string, required []string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory must not be empty")
	}
	if len(required) == 0 {
		return nil, errors.New("required file set must not be empty")
	}
	for _, name := range required {
		if name == "" || filepath.Base(name) != name {
			return nil, fmt.Errorf("invalid required file name %q", name)
		}
	}
	return &Cache{dir: dir, files: slices.Clone(required)}, nil
}

func (c *Cache) Dir() string { return c.dir }

// RequiredFiles returns a copy of the required filenames in order.
func (c *Cache) RequiredFiles() []string { return slices.Clone(c.files) }

// Path returns the local path of a required file.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// IsComplete reports whether every required file is present.
func (c *Cache) IsComplete() bool {
	info, err := os.Stat(c.dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return len(c.Missing()) == 0
}

// Missing lists required files that are absent or not regular files.
func (c *Cache) Missing() []string {
	var missing []string
	for _, name := range c.files {
		info, err := os.Stat(c.Path(name))
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, name)
		}
	}
	return missing
}

// Prepare creates the cache directory if needed.
func (c *Cache) Prepare() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", c.dir, err)
	}
	return nil
}
