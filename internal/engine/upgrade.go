package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/naming"
	"github.com/jbweber/dragon/internal/record"
	"github.com/jbweber/dragon/internal/tools"
)

// Upgrade converges the record's VM to its latest known tag.
//
// If the latest tag equals the current tag the VM is re-materialized
// in place under the same identifier (replace policy, for forced
// refreshes when a base image changed without a tag bump). If the tags
// differ, a new VM is materialized and confirmed before the old one is
// deleted and the record updated (create-new policy), so the operator
// is never left without a working VM.
//
// Any materialization failure aborts before old-VM deletion and before
// any record write: the record keeps pointing at the previously
// working VM and the operation is safe to retry. A re-run after an
// interruption is idempotent - if the target VM already exists it is
// not materialized again.
func (e *Engine) Upgrade(ctx context.Context, name string) (*Result, error) {
	r, err := e.lookup(name)
	if err != nil {
		return nil, err
	}

	// A record that has never been update-checked gets its latest tag
	// refreshed on demand.
	if r.LatestTag == "" {
		if _, err := e.Update(ctx, name); err != nil {
			return nil, err
		}
		if r, err = e.lookup(name); err != nil {
			return nil, err
		}
	}

	ref, err := imageref.Parse(r.ImageReference)
	if err != nil {
		return nil, fmt.Errorf("record %s has an invalid image reference: %w", name, err)
	}

	if r.LatestTag == r.CurrentTag {
		return e.replace(ctx, r, ref)
	}
	return e.createNew(ctx, r, ref, r.LatestTag)
}

// replace re-materializes the VM under its existing identifier
// (delete-then-recreate). No new identifier is needed since the tag is
// unchanged.
func (e *Engine) replace(ctx context.Context, r *record.Record, ref imageref.Reference) (*Result, error) {
	logrus.Infof("Record %s already at %s, refreshing VM %s in place...", r.Name, r.CurrentTag, r.VMIdentifier)

	if err := e.vms.DeleteVM(ctx, r.VMIdentifier); err != nil && !errors.Is(err, tools.ErrVMNotFound) {
		return nil, fmt.Errorf("failed to delete VM %s before refresh: %w", r.VMIdentifier, err)
	}
	if err := e.vms.Materialize(ctx, ref, r.CurrentTag, r.VMIdentifier); err != nil {
		return nil, fmt.Errorf("failed to materialize VM %s: %w", r.VMIdentifier, err)
	}

	var result *Result
	err := e.store.Update(r.Name, func(r *record.Record) error {
		r.Phase = record.PhaseUpgraded
		result = resultFor(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("VM %s refreshed", r.VMIdentifier)
	return result, nil
}

// createNew materializes the VM for the target tag, confirms it is
// present, then deletes the old VM and updates the record. Ordering is
// the safety mechanism: the old VM is never removed before the new one
// is confirmed.
func (e *Engine) createNew(ctx context.Context, r *record.Record, ref imageref.Reference, target string) (*Result, error) {
	oldID := r.VMIdentifier
	newID := naming.VMIdentifier(r.Name, target)
	logrus.Infof("Upgrading %s: %s -> %s (VM %s -> %s)", r.Name, r.CurrentTag, target, oldID, newID)

	inventory, err := e.vms.ListVMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list VMs: %w", err)
	}

	if containsVM(inventory, newID) {
		// Interrupted previous run: the new VM already exists, so skip
		// materialization and proceed to delete-old-and-update-record.
		logrus.Infof("VM %s already exists, skipping materialization", newID)
	} else {
		if err := e.vms.Materialize(ctx, ref, target, newID); err != nil {
			return nil, fmt.Errorf("failed to materialize VM %s: %w", newID, err)
		}
		inventory, err = e.vms.ListVMs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm VM %s: %w", newID, err)
		}
		if !containsVM(inventory, newID) {
			return nil, fmt.Errorf("VM %s not present after import", newID)
		}
	}

	if err := e.vms.DeleteVM(ctx, oldID); err != nil && !errors.Is(err, tools.ErrVMNotFound) {
		// Both VMs exist and the record still points at the old one.
		// That is reportable drift, not data loss, and a re-run picks
		// up from here.
		return nil, fmt.Errorf("failed to delete old VM %s: %w", oldID, err)
	}

	var result *Result
	err = e.store.Update(r.Name, func(r *record.Record) error {
		r.CurrentTag = target
		r.VMIdentifier = newID
		r.Phase = record.PhaseUpgraded
		result = resultFor(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("Record %s upgraded to %s", r.Name, target)
	return result, nil
}

// UpgradeAll upgrades every record in the store, continuing past
// per-record failures and reporting them collectively.
func (e *Engine) UpgradeAll(ctx context.Context) ([]*Result, error) {
	names, err := e.names()
	if err != nil {
		return nil, err
	}

	var (
		results []*Result
		errs    []error
	)
	for _, name := range names {
		result, err := e.Upgrade(ctx, name)
		if err != nil {
			logrus.Errorf("upgrade %s: %v", name, err)
			errs = append(errs, fmt.Errorf("upgrade %s: %w", name, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func containsVM(inventory []string, vmIdentifier string) bool {
	for _, name := range inventory {
		if name == vmIdentifier {
			return true
		}
	}
	return false
}
