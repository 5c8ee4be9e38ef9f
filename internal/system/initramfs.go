package system

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"go.pdmccormick.com/initramfs"
)

// compressReaders extends the standard library readers known to the
// initramfs package with the formats update-initramfs commonly emits.
var compressReaders = func() initramfs.CompressReaderMap {
	m := initramfs.CompressReaderMap{}
	for k, v := range initramfs.CompressReaders {
		m[k] = v
	}
	m[initramfs.Xz] = func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }
	m[initramfs.Zstd] = func(r io.Reader) (io.Reader, error) {
		return zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	}
	return m
}()

// moduleSuffixes are the file name endings a kernel module may have inside
// a boot image.
var moduleSuffixes = []string{".ko", ".ko.gz", ".ko.xz", ".ko.zst"}

// InitramfsReport lists what was found in a boot image.
type InitramfsReport struct {
	// Segments names each archive segment that held entries: "cpio" for an
	// uncompressed one, otherwise its compression type.
	Segments []string
	// Files holds the normalized names of all entries.
	Files []string
	// Builtin holds the module names listed in modules.builtin.
	Builtin []string
}

// HasFile reports whether the image contains the given path.
func (r *InitramfsReport) HasFile(name string) bool {
	name = normalizeEntryName(name)
	for _, f := range r.Files {
		if f == name {
			return true
		}
	}
	return false
}

// HasModule reports whether the image carries the named kernel module.
func (r *InitramfsReport) HasModule(module string) bool {
	for _, f := range r.Files {
		base := path.Base(f)
		for _, suffix := range moduleSuffixes {
			if base == module+suffix {
				return true
			}
		}
	}
	return false
}

// IsBuiltin reports whether the image's modules.builtin lists the module as
// compiled into the kernel.
func (r *InitramfsReport) IsBuiltin(module string) bool {
	for _, b := range r.Builtin {
		if b == module {
			return true
		}
	}
	return false
}

// maxBuiltinSize bounds how much of modules.builtin is read.
const maxBuiltinSize = 1 << 20

// parseBuiltin returns the module names in a modules.builtin listing, one
// module path per line.
func parseBuiltin(data []byte) []string {
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, strings.TrimSuffix(path.Base(line), ".ko"))
	}
	return names
}

func normalizeEntryName(name string) string {
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}

// InspectInitramfs reads the boot image at path and lists its entries,
// following compressed segments.
func (fs *FileSystem) InspectInitramfs(imagePath string) (*InitramfsReport, error) {
	f, err := fs.fs.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open boot image %s: %w", imagePath, err)
	}
	defer f.Close()

	report, err := readInitramfs(f)
	if err != nil {
		return report, fmt.Errorf("failed to read boot image %s: %w", imagePath, err)
	}

	fs.logger.Debug("inspected boot image", "path", imagePath, "entries", len(report.Files), "segments", report.Segments)
	return report, nil
}

func readInitramfs(in io.Reader) (*InitramfsReport, error) {
	report := &InitramfsReport{}
	r := initramfs.NewReader(in)

	segment, seen := "cpio", false

	for {
		hdr, err := r.Next()
		switch {
		case err == nil:
			if !seen {
				report.Segments = append(report.Segments, segment)
				seen = true
			}
			if hdr.Trailer() {
				continue
			}
			name := normalizeEntryName(hdr.Filename)
			report.Files = append(report.Files, name)
			if path.Base(name) == "modules.builtin" {
				data, err := io.ReadAll(io.LimitReader(r, maxBuiltinSize))
				if err != nil {
					return report, fmt.Errorf("failed to read %s: %w", name, err)
				}
				report.Builtin = append(report.Builtin, parseBuiltin(data)...)
			}

		case errors.Is(err, io.EOF):
			return report, nil

		case errors.Is(err, initramfs.ErrCompressedContentAhead):
			compressed, typ, err := r.ContinueCompressed(compressReaders)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return report, nil
				}
				return report, fmt.Errorf("%s segment: %w", typ, err)
			}
			if !compressed {
				return report, nil
			}
			segment, seen = typ.String(), false

		default:
			return report, err
		}
	}
}
