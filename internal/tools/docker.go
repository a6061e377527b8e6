package tools

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/naming"
)

// DefaultMaterializeTimeout bounds image pull, export, and import.
// Images can be large, so this is much longer than registry queries.
const DefaultMaterializeTimeout = 10 * time.Minute

// Docker wraps the container engine CLI for image pull and root
// filesystem export.
type Docker struct {
	bin     string
	timeout time.Duration
	run     runner
}

// NewDocker creates a container engine client using the CLI at bin.
// An empty bin defaults to "docker"; a zero timeout defaults to
// DefaultMaterializeTimeout.
func NewDocker(bin string, timeout time.Duration) *Docker {
	if bin == "" {
		bin = "docker"
	}
	if timeout <= 0 {
		timeout = DefaultMaterializeTimeout
	}
	return &Docker{bin: bin, timeout: timeout, run: execRunner{}}
}

// Pull pulls the image at the given tag.
func (d *Docker) Pull(ctx context.Context, ref imageref.Reference, tag string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	image := ref.WithTag(tag)
	logrus.Infof("Pulling image %s...", image)
	if _, err := d.run.run(ctx, d.bin, "pull", image); err != nil {
		return materializeErr(StepPull, err)
	}
	return nil
}

// Export creates a scratch container from the image and exports its
// root filesystem to tarPath. The scratch container is removed
// afterwards; removal failures are logged, not returned, since the
// export itself succeeded and a leftover container is harmless.
func (d *Docker) Export(ctx context.Context, ref imageref.Reference, tag, vmIdentifier, tarPath string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	container := naming.ContainerName(vmIdentifier)
	image := ref.WithTag(tag)

	logrus.Infof("Creating scratch container %s...", container)
	if _, err := d.run.run(ctx, d.bin, "create", "--name", container, image); err != nil {
		return materializeErr(StepCreate, err)
	}
	defer func() {
		// Fresh context: the export may have consumed or expired the
		// step context, and the cleanup should still get its chance.
		rmCtx, rmCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer rmCancel()
		if _, err := d.run.run(rmCtx, d.bin, "rm", "--force", container); err != nil {
			logrus.Warnf("failed to remove scratch container %s: %v", container, err)
		}
	}()

	logrus.Infof("Exporting filesystem to %s...", tarPath)
	if _, err := d.run.run(ctx, d.bin, "export", "--output", tarPath, container); err != nil {
		return materializeErr(StepExport, err)
	}
	return nil
}
