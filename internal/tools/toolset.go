package tools

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/naming"
)

// Toolset combines the container engine and WSL adapters into the
// materialization pipeline: pull the image, export its root filesystem
// to a tar, import the tar as a distribution.
type Toolset struct {
	docker     *Docker
	wsl        *WSL
	scratchDir string
}

// NewToolset creates a toolset that stages export archives in
// scratchDir. An empty scratchDir defaults to the OS temp directory.
func NewToolset(docker *Docker, wsl *WSL, scratchDir string) *Toolset {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Toolset{docker: docker, wsl: wsl, scratchDir: scratchDir}
}

// Materialize pulls the image at tag, exports its filesystem, and
// imports it as a distribution named vmIdentifier.
//
// Each step failure is reported as a MaterializeError naming the step.
// The staged tar is always removed; a pulled-but-unused image is left
// in the engine's cache, which is harmless and speeds up a retry.
func (t *Toolset) Materialize(ctx context.Context, ref imageref.Reference, tag, vmIdentifier string) error {
	if err := t.docker.Pull(ctx, ref, tag); err != nil {
		return err
	}

	tarPath := naming.ExportArchive(t.scratchDir, vmIdentifier)
	defer func() {
		if err := os.Remove(tarPath); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("failed to remove export archive %s: %v", tarPath, err)
		}
	}()

	if err := t.docker.Export(ctx, ref, tag, vmIdentifier, tarPath); err != nil {
		return err
	}

	return t.wsl.Import(ctx, vmIdentifier, tarPath)
}

// ListVMs returns the virtualization layer's distribution inventory.
func (t *Toolset) ListVMs(ctx context.Context) ([]string, error) {
	return t.wsl.List(ctx)
}

// DeleteVM removes a distribution. ErrVMNotFound propagates so callers
// can decide whether an already-absent VM is success.
func (t *Toolset) DeleteVM(ctx context.Context, vmIdentifier string) error {
	return t.wsl.Unregister(ctx, vmIdentifier)
}
