package steps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.pdmccormick.com/initramfs"

	"github.com/zoro11031/ror/internal/config"
	"github.com/zoro11031/ror/internal/system"
	"github.com/zoro11031/ror/internal/ui"
)

const testRelease = "6.1.21-v7+"

const (
	stockHookFunctions = "auto_add_modules()\n{\n\tcase \"${1:-}\" in\n\tbase)\n\t\t" +
		hookModulesLine + "\"\n\t\t;;\n\tesac\n}\n"

	stockLocalScript = "# Local filesystem mounting\t\t\t-*- shell-script -*-\n\n" +
		"local_mount_root()\n{\n\tlocal_top\n\t" +
		localReadonlyBlock + "\n\n\t" +
		localMountBlock + "\n}\n"

	stockConfig  = "# For more options and information see\ndtparam=audio=on\n"
	stockCmdline = "console=serial0,115200 console=tty1 root=PARTUUID=738a4d67-02 rootfstype=ext4 fsck.repair=yes rootwait\n"
)

type imageEntry struct {
	name string
	data []byte
}

func overlayImageEntries() []imageEntry {
	module := make([]byte, 1024)
	rand.New(rand.NewSource(1)).Read(module)
	return []imageEntry{
		{name: "init", data: []byte("#!/bin/sh\n")},
		{name: "scripts/local", data: []byte(stockLocalScript)},
		{name: "scripts/overlay", data: []byte("# Mount root\n")},
		{name: "usr/lib/modules/" + testRelease + "/kernel/fs/overlayfs/overlay.ko.xz", data: module},
	}
}

// buildImage writes an uncompressed early archive followed by a gzip
// compressed main archive, the layout update-initramfs produces.
func buildImage(entries []imageEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := initramfs.NewWriter(&buf)

	write := func(entries []imageEntry) error {
		for _, e := range entries {
			hdr := initramfs.Header{
				Mode:     initramfs.Mode_File | 0o644,
				Filename: e.name,
				DataSize: uint32(len(e.data)),
			}
			if err := w.WriteHeader(&hdr); err != nil {
				return err
			}
			if len(e.data) > 0 {
				if _, err := w.Write(e.data); err != nil {
					return err
				}
			}
		}
		return w.WriteTrailer()
	}

	if err := write([]imageEntry{{name: "kernel/firmware/early", data: []byte("early")}}); err != nil {
		return nil, err
	}
	if err := w.StartCompression(initramfs.GzipWriter); err != nil {
		return nil, err
	}
	if err := write(entries); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fakeCommandRunner stands in for update-initramfs by writing a generated
// image to the boot directory.
type fakeCommandRunner struct {
	fs          afero.Fs
	bootDir     string
	entries     []imageEntry
	commands    []string
	failCommand string
	skipImage   bool
}

func (f *fakeCommandRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.commands = append(f.commands, cmd)

	if f.failCommand != "" && strings.Contains(cmd, f.failCommand) {
		return "update-initramfs: failed for " + cmd, errors.New("exit status 1")
	}
	if name != "update-initramfs" || f.skipImage {
		return "", nil
	}

	release := args[len(args)-1]
	image, err := buildImage(f.entries)
	if err != nil {
		return "", err
	}
	target := f.bootDir + "/initrd.img-" + release
	if err := afero.WriteFile(f.fs, target, image, 0644); err != nil {
		return "", err
	}
	return "update-initramfs: Generating " + target, nil
}

type harness struct {
	fs     afero.Fs
	runner *fakeCommandRunner
	out    *bytes.Buffer
	logger *slog.Logger
	paths  config.Paths
	ror    *ReadOnlyRoot
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := afero.NewMemMapFs()
	paths := config.DefaultPaths()

	files := map[string]string{
		paths.HookFunctions:                 stockHookFunctions,
		paths.LocalScript:                   stockLocalScript,
		paths.LocalPremount + "/ORDER":      "/scripts/local-premount/resume \"$@\"\n",
		paths.LocalPremount + "/resume":     "#!/bin/sh\n",
		paths.LocalBottom + "/ORDER":        "",
		paths.ScriptsDir + "/init-top/udev": "#!/bin/sh\n",
		paths.BootConfig:                    stockConfig,
		paths.Cmdline:                       stockCmdline,
		paths.BootDir + "/kernel7.img":      "kernel",
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(mem, path, []byte(content), 0644))
	}

	runner := &fakeCommandRunner{fs: mem, bootDir: paths.BootDir, entries: overlayImageEntries()}
	out := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{fs: mem, runner: runner, out: out, logger: logger, paths: paths}
	h.useFs(mem)
	return h
}

// useFs rebuilds the procedures on fs, which should wrap h.fs.
func (h *harness) useFs(fs afero.Fs) {
	h.ror = NewReadOnlyRoot(
		system.NewFileSystem(fs, h.logger),
		h.runner,
		system.StaticKernel(testRelease),
		h.paths,
		config.DefaultSettings(),
		ui.NewWithWriter(h.out),
		h.logger,
	)
}

// failingWriteFs fails to open a file for writing once it has been opened
// for writing limits[name] times.
type failingWriteFs struct {
	afero.Fs
	limits map[string]int
	writes map[string]int
}

func newFailingWriteFs(fs afero.Fs, limits map[string]int) *failingWriteFs {
	return &failingWriteFs{Fs: fs, limits: limits, writes: map[string]int{}}
}

func (f *failingWriteFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if limit, ok := f.limits[name]; ok && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		if f.writes[name] >= limit {
			return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EIO}
		}
		f.writes[name]++
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err)
	return string(data)
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(h.fs, path)
	require.NoError(t, err)
	return ok
}

// snapshot captures every regular file on the filesystem.
func (h *harness) snapshot(t *testing.T) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := afero.Walk(h.fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(h.fs, path)
		if err != nil {
			return err
		}
		files[path] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func (h *harness) state(t *testing.T) config.State {
	t.Helper()
	state, err := h.ror.State()
	require.NoError(t, err)
	return state
}
