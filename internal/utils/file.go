package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/geostamp/pkg/types"
)

// stampableExts are the extensions the codec can decode
var stampableExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile reports whether filename looks like a photo we can stamp
func IsImageFile(filename string) bool {
	return stampableExts[GetFileExtension(filename)]
}

// CaptureFilename names a capture after its time, yyyyMMdd_HHmmss.<ext>
func CaptureFilename(t time.Time, ext string) string {
	if ext == "" {
		ext = "jpg"
	}
	return t.Format(types.FileTimeLayout) + "." + ext
}

// OutputPath derives the stamped file path for inputFile.
// An empty outputDir keeps the input directory; an empty format keeps the
// input extension.
func OutputPath(inputFile, outputDir, suffix, format string) string {
	baseName := filepath.Base(inputFile)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))

	if format == "" {
		format = GetFileExtension(inputFile)
		if format == "" {
			format = "jpg"
		}
	}
	if outputDir == "" {
		outputDir = filepath.Dir(inputFile)
	}

	return filepath.Join(outputDir, fmt.Sprintf("%s%s.%s", SanitizeFilename(nameWithoutExt), suffix, format))
}

// ListImageFiles recursively lists all stampable files in a directory
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SanitizeFilename replaces path separators and reserved characters
func SanitizeFilename(filename string) string {
	result := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	).Replace(filename)
	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
