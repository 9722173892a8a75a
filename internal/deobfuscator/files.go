package deobfuscator

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/highwayhash"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
)

var fingerprintKey = []byte("imap-output-fingerprint-key-0001")

// Fingerprint hashes file content. Generate records it for every output so
// runs can be compared without keeping the files.
func Fingerprint(data []byte) (uint64, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, err
	}
	_, err = hash.Write(data)
	return hash.Sum64(), err
}

// SourceFiles lists the files under root whose extension is one of
// extensions, as slash separated paths relative to root, sorted. Entries
// matching a skip pattern are ignored, directories included.
func SourceFiles(root string, extensions, skip []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, imaperrors.IOf(root, err, "source directory not accessible")
	}
	if !info.IsDir() {
		return nil, imaperrors.IOf(root, nil, "not a directory")
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return imaperrors.IOf(entryPath, err, "error accessing path")
		}
		relPath, err := filepath.Rel(root, entryPath)
		if err != nil {
			return imaperrors.IOf(entryPath, err, "error calculating relative path")
		}
		// Skip root source directory itself
		if relPath == "." {
			return nil
		}

		isSkipped, err := checkPathAgainstPatterns(relPath, skip)
		if err != nil {
			return imaperrors.New(imaperrors.ConfigError, relPath, "error matching skip pattern", err)
		}
		if isSkipped {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if hasExtension(relPath, extensions) {
			files = append(files, filepath.ToSlash(relPath))
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Strings(files)
	return files, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// checkPathAgainstPatterns matches a glob against the whole relative path and
// against every single path element, so "node_modules" skips it anywhere.
func checkPathAgainstPatterns(relPath string, patterns []string) (bool, error) {
	pathNormalized := filepath.ToSlash(relPath)
	elements := strings.Split(pathNormalized, "/")
	for _, pattern := range patterns {
		matched, err := path.Match(pattern, pathNormalized)
		if err != nil {
			return false, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		if matched {
			return true, nil
		}
		for _, element := range elements {
			if matched, _ := path.Match(pattern, element); matched {
				return true, nil
			}
		}
	}
	return false, nil
}

// copyFile copies src to dst, creating parent directories.
func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return imaperrors.IOf(src, err, "failed to open source file")
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return imaperrors.IOf(dst, err, "failed to create output directory")
	}
	destination, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return imaperrors.IOf(dst, err, "failed to create destination file")
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return imaperrors.IOf(dst, err, "failed to copy data from %s", src)
	}
	return nil
}

// writeIfChanged writes data to dst unless dst already holds the same content.
// It reports whether the file was written.
func writeIfChanged(dst string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(dst); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, imaperrors.IOf(dst, err, "failed to create output directory")
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return false, imaperrors.IOf(dst, err, "failed to write output file")
	}
	return true, nil
}
