// Package utils holds the filesystem helpers shared by the CLI commands.
package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// photoExts matches the types intake accepts, so a directory roast never
// picks up files it would reject anyway.
var photoExts = []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif"}

// IsPhoto reports whether name has an accepted photo extension
func IsPhoto(name string) bool {
	return slices.Contains(photoExts, strings.ToLower(filepath.Ext(name)))
}

// CollectPhotos walks dir and returns its photos in lexical order. Hidden
// files and directories are skipped.
func CollectPhotos(dir string) ([]string, error) {
	var photos []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsPhoto(path) {
			photos = append(photos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return photos, nil
}

// OutputPath names the file written for input inside dir: the input's base
// name with suffix appended and its extension replaced by ext.
func OutputPath(input, dir, suffix, ext string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "jpg"
	}
	return filepath.Join(dir, stem+suffix+"."+ext)
}

// PrepareOutputDir creates dir and any missing parents
func PrepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// IsFile reports whether path exists and is not a directory
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsDir reports whether path exists and is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ByteSize renders n with a binary unit, e.g. "48.2 KB"
func ByteSize(n int) string {
	units := []string{"B", "KB", "MB", "GB"}
	v, i := float64(n), 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
