package system

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Replacement is a literal substring substitution applied by Edit.
type Replacement struct {
	Old string
	New string
}

// ReplaceResult reports how many occurrences of a Replacement were found.
type ReplaceResult struct {
	Replacement
	Count int
}

// Applied reports whether the replacement matched at least once.
func (r ReplaceResult) Applied() bool {
	return r.Count > 0
}

// Unapplied returns the results whose old text was not found.
func Unapplied(results []ReplaceResult) []ReplaceResult {
	var misses []ReplaceResult
	for _, r := range results {
		if !r.Applied() {
			misses = append(misses, r)
		}
	}
	return misses
}

// FileSystem handles the file mutations needed to switch the boot setup.
// All access goes through an afero.Fs so procedures can run against an
// in-memory tree.
type FileSystem struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewFileSystem creates a new FileSystem instance on top of fs
func NewFileSystem(fs afero.Fs, logger *slog.Logger) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystem{fs: fs, logger: logger}
}

// Fs exposes the underlying afero filesystem.
func (fs *FileSystem) Fs() afero.Fs {
	return fs.fs
}

// ReadFile reads the entire content of a file
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(fs.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeFile overwrites path keeping the mode of the existing file.
func (fs *FileSystem) writeFile(path string, data []byte) error {
	perms := os.FileMode(0644)
	if info, err := fs.fs.Stat(path); err == nil {
		perms = info.Mode().Perm()
	}
	if err := afero.WriteFile(fs.fs, path, data, perms); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Edit applies the replacements to the file content in order, each one to
// the result of the previous, and writes the result back. A replacement whose
// old text is absent is a no-op; callers inspect the returned results.
func (fs *FileSystem) Edit(path string, replacements []Replacement) ([]ReplaceResult, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	results := make([]ReplaceResult, 0, len(replacements))
	for _, r := range replacements {
		count := 0
		if r.Old != "" {
			count = strings.Count(content, r.Old)
		}
		if count > 0 {
			content = strings.ReplaceAll(content, r.Old, r.New)
		}
		results = append(results, ReplaceResult{Replacement: r, Count: count})
		fs.logger.Debug("edit", "path", path, "occurrences", count)
	}

	if err := fs.writeFile(path, []byte(content)); err != nil {
		return results, err
	}
	return results, nil
}

// Append writes text to the end of the file
func (fs *FileSystem) Append(path string, text string) error {
	f, err := fs.fs.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	fs.logger.Debug("append", "path", path, "bytes", len(text))
	return nil
}

// Prepend rewrites the file as text followed by its previous content
func (fs *FileSystem) Prepend(path string, text string) error {
	data, err := fs.ReadFile(path)
	if err != nil {
		return err
	}

	if err := fs.writeFile(path, append([]byte(text), data...)); err != nil {
		return err
	}

	fs.logger.Debug("prepend", "path", path, "bytes", len(text))
	return nil
}

// FileExists checks if a file exists
func (fs *FileSystem) FileExists(path string) (bool, error) {
	_, err := fs.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check if file exists %s: %w", path, err)
}

// DirectoryExists checks if a directory exists
func (fs *FileSystem) DirectoryExists(path string) (bool, error) {
	info, err := fs.fs.Stat(path)
	if err == nil {
		return info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check if directory exists %s: %w", path, err)
}

// GetFileSize returns the size of a file in bytes
func (fs *FileSystem) GetFileSize(path string) (int64, error) {
	info, err := fs.fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	return info.Size(), nil
}

// CopyFile copies a file from src to dst, overwriting dst
func (fs *FileSystem) CopyFile(src, dst string) error {
	info, err := fs.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to copy %s to %s: source is a directory", src, dst)
	}

	if err := fs.copyFile(src, dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	fs.logger.Debug("copy", "src", src, "dst", dst)
	return nil
}

func (fs *FileSystem) copyFile(src, dst string, mode os.FileMode) error {
	in, err := fs.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyTree recursively copies the directory src to dst. dst must not exist.
func (fs *FileSystem) CopyTree(src, dst string) error {
	info, err := fs.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to copy tree %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to copy tree %s: not a directory", src)
	}

	if exists, err := fs.FileExists(dst); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("failed to copy tree %s to %s: %w", src, dst, os.ErrExist)
	}

	err = afero.Walk(fs.fs, src, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if fi.IsDir() {
			return fs.fs.MkdirAll(target, fi.Mode().Perm())
		}
		return fs.copyFile(path, target, fi.Mode().Perm())
	})
	if err != nil {
		return fmt.Errorf("failed to copy tree %s to %s: %w", src, dst, err)
	}

	fs.logger.Debug("copy tree", "src", src, "dst", dst)
	return nil
}

// Move renames src to dst, replacing dst. Falls back to copy and remove when
// the two paths are on different devices.
func (fs *FileSystem) Move(src, dst string) error {
	info, err := fs.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	err = fs.fs.Rename(src, dst)
	if err != nil && errors.Is(err, unix.EXDEV) && !info.IsDir() {
		if err := fs.copyFile(src, dst, info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
		}
		err = fs.fs.Remove(src)
	}
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	fs.logger.Debug("move", "src", src, "dst", dst)
	return nil
}

// RemoveFile removes a single file. A missing file is an error.
func (fs *FileSystem) RemoveFile(path string) error {
	if err := fs.fs.Remove(path); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", path, err)
	}
	fs.logger.Debug("remove", "path", path)
	return nil
}

// criticalPaths are never removed recursively.
var criticalPaths = []string{
	"/",
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/home",
	"/lib",
	"/proc",
	"/root",
	"/sbin",
	"/sys",
	"/usr",
	"/usr/share",
	"/usr/share/initramfs-tools",
	"/usr/share/initramfs-tools/scripts",
	"/var",
}

// RemoveDirectory removes a directory and all its contents. The directory
// must exist.
func (fs *FileSystem) RemoveDirectory(path string) error {
	if path == "" {
		return fmt.Errorf("refusing to remove empty path")
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("refusing to remove relative path: %s (must be absolute)", path)
	}

	clean := filepath.Clean(path)
	for _, critical := range criticalPaths {
		if clean == critical {
			return fmt.Errorf("refusing to remove critical system path: %s", path)
		}
	}

	info, err := fs.fs.Stat(clean)
	if err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to remove directory %s: not a directory", path)
	}

	if err := fs.fs.RemoveAll(clean); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}

	fs.logger.Debug("remove tree", "path", path)
	return nil
}
