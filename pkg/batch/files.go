package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
	"github.com/src-d/enry/v2"
)

var (
	// ErrDirectoryPath indicates a file operation was attempted on a directory.
	ErrDirectoryPath = errors.New("path points to a directory")
	// ErrEmptyPath indicates a path argument was empty.
	ErrEmptyPath = errors.New("path is empty")
	// ErrPathContainsNUL indicates the path contains a NUL byte.
	ErrPathContainsNUL = errors.New("path contains NUL byte")
	// ErrFileTooLarge indicates a file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrBinaryFile indicates content that is not text.
	ErrBinaryFile = errors.New("file is binary")
)

const gitDir = ".git"

// Collect walks root and returns the regular files whose extension is in
// extensions, in lexical order. With skipVendor, vendored paths such as
// node_modules are pruned.
func Collect(root string, extensions []string, skipVendor bool) ([]string, error) {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		exts = append(exts, strings.ToLower(ext))
	}

	var files []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return fmt.Errorf("relative path of %s: %w", path, relErr)
		}

		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if rel == "." {
				return nil
			}

			if entry.Name() == gitDir || (skipVendor && enry.IsVendor(rel+"/")) {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}

		if skipVendor && enry.IsVendor(rel) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

// readSource reads a user-supplied path, refusing directories, binary
// content and files larger than maxSize. A zero maxSize disables the limit.
func readSource(path string, maxSize uint64) (content []byte, info os.FileInfo, err error) {
	resolved, err := resolveUserFilePath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve path %q: %w", path, err)
	}

	//nolint:gosec // resolved is normalized by resolveUserFilePath.
	info, err = os.Stat(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", resolved, err)
	}

	if info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrDirectoryPath, resolved)
	}

	size, err := safecast.Conv[uint64](info.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("size of %s: %w", resolved, err)
	}

	if maxSize > 0 && size > maxSize {
		return nil, nil, fmt.Errorf("%w: %s is %s, limit %s", ErrFileTooLarge, path,
			humanize.Bytes(size), humanize.Bytes(maxSize))
	}

	//nolint:gosec // resolved is normalized by resolveUserFilePath.
	content, err = os.ReadFile(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", resolved, err)
	}

	if enry.IsBinary(content) {
		return nil, nil, fmt.Errorf("%w: %s", ErrBinaryFile, path)
	}

	return content, info, nil
}

func resolveUserFilePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("%w: %q", ErrPathContainsNUL, path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}

	return absPath, nil
}
