package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/naming"
	"github.com/jbweber/dragon/internal/record"
)

// New materializes a VM from the image at tag and writes the record.
//
// The record is written only after the VM has been successfully
// materialized; any adapter failure leaves no record behind. Partial
// external artifacts are handled by the adapter's own best-effort
// cleanup and are reported, not retried.
//
// Returns record.ErrDuplicateRecord if a record with the name already
// exists.
func (e *Engine) New(ctx context.Context, name string, ref imageref.Reference, tag string) (*Result, error) {
	doc, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	if _, ok := doc.Records[name]; ok {
		return nil, fmt.Errorf("%w: %s", record.ErrDuplicateRecord, name)
	}

	vmID := naming.VMIdentifier(name, tag)
	logrus.Infof("Creating VM %s from %s...", vmID, ref.WithTag(tag))
	if err := e.vms.Materialize(ctx, ref, tag, vmID); err != nil {
		return nil, fmt.Errorf("failed to materialize VM %s: %w", vmID, err)
	}

	r := &record.Record{
		Name:              name,
		ImageReference:    ref.Repo(),
		CurrentTag:        tag,
		LatestTag:         tag,
		VMIdentifier:      vmID,
		TerminalProfileID: uuid.NewString(),
		Phase:             record.PhasePulled,
	}
	// Create re-checks for duplicates under the store lock; a
	// concurrent New racing us loses here and its VM shows up as
	// reportable drift rather than a silent overwrite.
	if err := e.store.Create(r); err != nil {
		return nil, err
	}

	logrus.Infof("VM %s created", vmID)
	return resultFor(r), nil
}
