package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DriftKind classifies a divergence between the record store and the
// virtualization inventory.
type DriftKind string

const (
	// DriftMissingVM means a record's VM is absent from the inventory.
	DriftMissingVM DriftKind = "missing-vm"
	// DriftOrphanVM means the inventory holds a VM that looks
	// dragon-managed (it shares a record's name prefix) but no record
	// points at it - typically a leftover from an interrupted upgrade.
	DriftOrphanVM DriftKind = "orphan-vm"
)

// DriftItem is one reported divergence.
type DriftItem struct {
	// Name is the record the drift relates to.
	Name string `yaml:"name" json:"name"`
	// VMIdentifier is the affected VM.
	VMIdentifier string    `yaml:"vm_identifier" json:"vm_identifier"`
	Kind         DriftKind `yaml:"kind" json:"kind"`
}

// Drift compares the record store against the virtualization
// inventory and reports divergence. It never mutates either side:
// drift is surfaced for the operator, not silently resolved.
//
// Distributions that do not match any record's naming scheme are
// ignored - the inventory is shared with unmanaged distributions.
func (e *Engine) Drift(ctx context.Context) ([]DriftItem, error) {
	doc, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	inventory, err := e.vms.ListVMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list VMs: %w", err)
	}

	present := make(map[string]bool, len(inventory))
	for _, vm := range inventory {
		present[vm] = true
	}

	expected := make(map[string]string, len(doc.Records))
	var items []DriftItem
	for name, r := range doc.Records {
		expected[r.VMIdentifier] = name
		if !present[r.VMIdentifier] {
			items = append(items, DriftItem{Name: name, VMIdentifier: r.VMIdentifier, Kind: DriftMissingVM})
		}
	}

	for _, vm := range inventory {
		if _, ok := expected[vm]; ok {
			continue
		}
		for name := range doc.Records {
			if strings.HasPrefix(vm, name+"-") {
				items = append(items, DriftItem{Name: name, VMIdentifier: vm, Kind: DriftOrphanVM})
				break
			}
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].VMIdentifier < items[j].VMIdentifier
	})
	return items, nil
}
