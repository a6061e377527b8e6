package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/tools"
)

// Remove unregisters the record's VM and deletes the record.
//
// An already-absent VM is treated as success so a remove interrupted
// between unregister and record deletion can be re-run. A busy VM
// aborts before the record is touched.
func (e *Engine) Remove(ctx context.Context, name string) error {
	r, err := e.lookup(name)
	if err != nil {
		return err
	}

	logrus.Infof("Removing record %s (VM %s)...", name, r.VMIdentifier)
	if err := e.vms.DeleteVM(ctx, r.VMIdentifier); err != nil {
		if !errors.Is(err, tools.ErrVMNotFound) {
			return fmt.Errorf("failed to delete VM %s: %w", r.VMIdentifier, err)
		}
		logrus.Debugf("VM %s already absent", r.VMIdentifier)
	}

	return e.store.Delete(name)
}
