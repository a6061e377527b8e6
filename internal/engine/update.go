package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/record"
)

// Update refreshes the record's latest known tag from the registry.
//
// This is a pure metadata refresh: it never touches the virtualization
// layer, and a failure leaves the persisted latest tag unchanged.
// Returns the observed tag.
func (e *Engine) Update(ctx context.Context, name string) (string, error) {
	r, err := e.lookup(name)
	if err != nil {
		return "", err
	}

	ref, err := imageref.Parse(r.ImageReference)
	if err != nil {
		return "", fmt.Errorf("record %s has an invalid image reference: %w", name, err)
	}

	latest, err := e.registry.LatestTag(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to check registry for %s: %w", name, err)
	}

	err = e.store.Update(name, func(r *record.Record) error {
		if r.LatestTag != latest {
			logrus.Infof("Record %s: latest tag is now %s (was %s)", name, latest, r.LatestTag)
		}
		r.LatestTag = latest
		r.Phase = record.PhaseUpdateChecked
		return nil
	})
	if err != nil {
		return "", err
	}
	return latest, nil
}

// UpdateAll refreshes every record in the store, continuing past
// per-record failures and reporting them collectively.
func (e *Engine) UpdateAll(ctx context.Context) error {
	names, err := e.names()
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		if _, err := e.Update(ctx, name); err != nil {
			logrus.Errorf("update %s: %v", name, err)
			errs = append(errs, fmt.Errorf("update %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
