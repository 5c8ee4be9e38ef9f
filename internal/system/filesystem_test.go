package system

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usbModulesLine = `modules="$modules ehci-pci ehci-orion ehci-hcd ohci-hcd ohci-pci uhci-hcd usbhid"`

func newMemFileSystem(t *testing.T) (*FileSystem, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	return NewFileSystem(mem, slog.New(slog.NewTextHandler(io.Discard, nil))), mem
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestEdit(t *testing.T) {
	overlay := Replacement{
		Old: usbModulesLine,
		New: `modules="$modules ehci-pci ehci-orion ehci-hcd ohci-hcd ohci-pci uhci-hcd usbhid overlay"`,
	}

	tests := []struct {
		name    string
		content string
		want    string
		count   int
	}{
		{
			name:    "target present",
			content: "auto_add_modules()\n{\n\t" + usbModulesLine + "\n}\n",
			want:    "auto_add_modules()\n{\n\t" + overlay.New + "\n}\n",
			count:   1,
		},
		{
			name:    "target absent",
			content: "auto_add_modules()\n{\n\tmodules=\"$modules usbhid\"\n}\n",
			want:    "auto_add_modules()\n{\n\tmodules=\"$modules usbhid\"\n}\n",
			count:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, mem := newMemFileSystem(t)
			writeFile(t, mem, "/hook-functions", tt.content)

			results, err := fs.Edit("/hook-functions", []Replacement{overlay})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tt.count, results[0].Count)
			assert.Equal(t, tt.count > 0, results[0].Applied())

			got := readFile(t, mem, "/hook-functions")
			assert.Equal(t, tt.want, got)
			if tt.count > 0 {
				assert.Equal(t, 1, strings.Count(got, "usbhid overlay"))
			}
		})
	}
}

func TestEditAppliesInOrder(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/script", "a b")

	results, err := fs.Edit("/script", []Replacement{
		{Old: "a", New: "c"},
		{Old: "c b", New: "done"},
		{Old: "missing", New: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", readFile(t, mem, "/script"))

	misses := Unapplied(results)
	require.Len(t, misses, 1)
	assert.Equal(t, "missing", misses[0].Old)
}

func TestEditMissingFile(t *testing.T) {
	fs, _ := newMemFileSystem(t)
	_, err := fs.Edit("/nope", []Replacement{{Old: "a", New: "b"}})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrepend(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/cmdline.txt", "X")

	require.NoError(t, fs.Prepend("/cmdline.txt", "Y "))
	assert.Equal(t, "Y X", readFile(t, mem, "/cmdline.txt"))
}

func TestAppend(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/config.txt", "dtparam=audio=on\n")

	require.NoError(t, fs.Append("/config.txt", "\n\n\nkernel=kernel7.img\ninitramfs initrd7.img\n"))
	assert.Equal(t, "dtparam=audio=on\n\n\n\nkernel=kernel7.img\ninitramfs initrd7.img\n", readFile(t, mem, "/config.txt"))

	err := fs.Append("/missing.txt", "x")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyFilePreservesMode(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	require.NoError(t, afero.WriteFile(mem, "/scripts/local", []byte("#!/bin/sh\n"), 0755))

	require.NoError(t, fs.CopyFile("/scripts/local", "/scripts/overlay"))

	info, err := mem.Stat("/scripts/overlay")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	assert.Equal(t, "#!/bin/sh\n", readFile(t, mem, "/scripts/overlay"))
}

func TestCopyTree(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/scripts/local-premount/resume", "resume")
	writeFile(t, mem, "/scripts/local-premount/sub/fsck", "fsck")
	writeFile(t, mem, "/scripts/local-premount/ORDER", "order")

	require.NoError(t, fs.CopyTree("/scripts/local-premount", "/scripts/overlay-premount"))

	assert.Equal(t, "resume", readFile(t, mem, "/scripts/overlay-premount/resume"))
	assert.Equal(t, "fsck", readFile(t, mem, "/scripts/overlay-premount/sub/fsck"))
	assert.Equal(t, "order", readFile(t, mem, "/scripts/overlay-premount/ORDER"))

	// the source is left alone
	assert.Equal(t, "resume", readFile(t, mem, "/scripts/local-premount/resume"))

	err := fs.CopyTree("/scripts/local-premount", "/scripts/overlay-premount")
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestCopyTreeRejectsFile(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/file", "x")

	assert.Error(t, fs.CopyTree("/file", "/copy"))
	assert.Error(t, fs.CopyTree("/missing", "/copy"))
}

func TestMove(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/boot/config.txt._ror_backup_", "original")
	writeFile(t, mem, "/boot/config.txt", "modified")

	require.NoError(t, fs.Move("/boot/config.txt._ror_backup_", "/boot/config.txt"))

	assert.Equal(t, "original", readFile(t, mem, "/boot/config.txt"))
	exists, err := fs.FileExists("/boot/config.txt._ror_backup_")
	require.NoError(t, err)
	assert.False(t, exists)

	err = fs.Move("/boot/config.txt._ror_backup_", "/boot/config.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveFile(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/boot/initrd7.img", "image")

	require.NoError(t, fs.RemoveFile("/boot/initrd7.img"))
	assert.ErrorIs(t, fs.RemoveFile("/boot/initrd7.img"), os.ErrNotExist)
}

func TestRemoveDirectory(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/usr/share/initramfs-tools/scripts/overlay-bottom/a", "a")

	require.NoError(t, fs.RemoveDirectory("/usr/share/initramfs-tools/scripts/overlay-bottom"))
	exists, err := fs.DirectoryExists("/usr/share/initramfs-tools/scripts/overlay-bottom")
	require.NoError(t, err)
	assert.False(t, exists)

	// already gone
	assert.Error(t, fs.RemoveDirectory("/usr/share/initramfs-tools/scripts/overlay-bottom"))
}

func TestRemoveDirectoryRefusals(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"relative", "scripts/overlay-bottom"},
		{"root", "/"},
		{"boot", "/boot"},
		{"scripts dir", "/usr/share/initramfs-tools/scripts/"},
		{"file", "/boot/config.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, mem := newMemFileSystem(t)
			writeFile(t, mem, "/boot/config.txt", "x")
			writeFile(t, mem, "/usr/share/initramfs-tools/scripts/local", "x")

			assert.Error(t, fs.RemoveDirectory(tt.path))
			assert.Equal(t, "x", readFile(t, mem, "/boot/config.txt"))
			assert.Equal(t, "x", readFile(t, mem, "/usr/share/initramfs-tools/scripts/local"))
		})
	}
}

func TestExistsAndSize(t *testing.T) {
	fs, mem := newMemFileSystem(t)
	writeFile(t, mem, "/boot/initrd7.img", "12345")

	exists, err := fs.FileExists("/boot/initrd7.img")
	require.NoError(t, err)
	assert.True(t, exists)

	isDir, err := fs.DirectoryExists("/boot/initrd7.img")
	require.NoError(t, err)
	assert.False(t, isDir)

	isDir, err = fs.DirectoryExists("/boot")
	require.NoError(t, err)
	assert.True(t, isDir)

	size, err := fs.GetFileSize("/boot/initrd7.img")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = fs.GetFileSize("/boot/missing")
	assert.Error(t, err)
}
