package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/naming"
)

// WSL wraps wsl.exe for distribution import, listing, and removal.
type WSL struct {
	bin         string
	installRoot string
	timeout     time.Duration
	run         runner
}

// NewWSL creates a WSL client using the CLI at bin, importing
// distributions under installRoot. An empty bin defaults to "wsl.exe";
// a zero timeout defaults to DefaultMaterializeTimeout.
func NewWSL(bin, installRoot string, timeout time.Duration) *WSL {
	if bin == "" {
		bin = "wsl.exe"
	}
	if timeout <= 0 {
		timeout = DefaultMaterializeTimeout
	}
	return &WSL{bin: bin, installRoot: installRoot, timeout: timeout, run: execRunner{}}
}

// Import registers the rootfs tar at tarPath as a WSL2 distribution
// named vmIdentifier.
func (w *WSL) Import(ctx context.Context, vmIdentifier, tarPath string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	installDir := naming.InstallDir(w.installRoot, vmIdentifier)
	logrus.Infof("Importing %s as distribution %s...", tarPath, vmIdentifier)
	_, err := w.run.run(ctx, w.bin, "--import", vmIdentifier, installDir, tarPath, "--version", "2")
	if err != nil {
		return materializeErr(StepImport, err)
	}
	return nil
}

// List returns the names of all registered distributions.
func (w *WSL) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	out, err := w.run.run(ctx, w.bin, "--list", "--quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to list distributions: %w", err)
	}
	return splitLines(decodeConsoleOutput(out)), nil
}

// Unregister removes the distribution and its virtual disk.
//
// Returns ErrVMNotFound if no such distribution is registered and
// ErrVMBusy if the distribution is in use. Callers needing idempotent
// deletes treat ErrVMNotFound as success.
func (w *WSL) Unregister(ctx context.Context, vmIdentifier string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	logrus.Infof("Unregistering distribution %s...", vmIdentifier)
	_, err := w.run.run(ctx, w.bin, "--unregister", vmIdentifier)
	if err != nil {
		return classifyWSLError(vmIdentifier, err)
	}
	return nil
}

// classifyWSLError maps wsl.exe failures onto the adapter's error
// taxonomy.
func classifyWSLError(vmIdentifier string, err error) error {
	stderr := strings.ToLower(stderrOf(err))
	switch {
	case strings.Contains(stderr, "no distribution") ||
		strings.Contains(stderr, "distribution name is not valid") ||
		strings.Contains(stderr, "wsl_e_distro_not_found"):
		return fmt.Errorf("%w: %s", ErrVMNotFound, vmIdentifier)
	case strings.Contains(stderr, "in use") || strings.Contains(stderr, "being used"):
		return fmt.Errorf("%w: %s", ErrVMBusy, vmIdentifier)
	default:
		return fmt.Errorf("failed to unregister %s: %w", vmIdentifier, err)
	}
}
