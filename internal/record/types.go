// Package record provides the persisted state model for dragon-managed
// WSL VMs. The store file is the single source of truth for which VMs
// exist and which image tag each was built from; the actual WSL
// inventory is an external mirror that may drift.
package record

import (
	"fmt"
	"regexp"
)

// Version identifies the store document format.
const Version = "dragon.dev/v1"

// Phase represents the lifecycle phase of a record.
type Phase string

const (
	// PhasePulled means the record exists and its VM was materialized
	// from CurrentTag.
	PhasePulled Phase = "Pulled"
	// PhaseUpdateChecked means LatestTag was refreshed from the
	// registry and may differ from CurrentTag.
	PhaseUpdateChecked Phase = "UpdateChecked"
	// PhaseUpgrading means an upgrade is in flight: the old VM is
	// still present and the new VM is not yet confirmed. This phase is
	// never persisted; a crash mid-upgrade leaves the prior phase on
	// disk and two VMs in the inventory.
	PhaseUpgrading Phase = "Upgrading"
	// PhaseUpgraded means the new VM was materialized and confirmed
	// and the record points at it.
	PhaseUpgraded Phase = "Upgraded"
)

// Record describes one managed WSL VM.
type Record struct {
	Name string `yaml:"name" json:"name"`
	// ImageReference is the source image (registry/repository), without
	// a tag. Immutable after creation.
	ImageReference string `yaml:"image" json:"image"`
	// CurrentTag is the tag the materialized VM was built from. Written
	// only after the VM has been successfully materialized.
	CurrentTag string `yaml:"current_tag" json:"current_tag"`
	// LatestTag is the most recently pushed tag observed at the last
	// update. May equal or lag CurrentTag.
	LatestTag string `yaml:"latest_tag" json:"latest_tag"`
	// VMIdentifier is the WSL distribution name, derived from
	// (Name, CurrentTag).
	VMIdentifier string `yaml:"vm_identifier" json:"vm_identifier"`
	// TerminalProfileID is the Windows Terminal profile GUID for this
	// record. Allocated on first materialization, stable across
	// upgrades.
	TerminalProfileID string `yaml:"terminal_profile_id,omitempty" json:"terminal_profile_id,omitempty"`
	Phase             Phase  `yaml:"phase" json:"phase"`
}

// Document is the full persisted store file.
type Document struct {
	Version string             `yaml:"version"`
	Records map[string]*Record `yaml:"records"`
}

// NewDocument returns an empty store document.
func NewDocument() *Document {
	return &Document{
		Version: Version,
		Records: make(map[string]*Record),
	}
}

// namePattern matches valid record names. Same shape the WSL
// distribution name rules allow for the leading segment.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate checks a record for structural errors.
func (r *Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(r.Name) {
		return fmt.Errorf("name must start with an alphanumeric character and contain only alphanumerics, dots, hyphens, or underscores, got %q", r.Name)
	}
	if r.ImageReference == "" {
		return fmt.Errorf("image is required")
	}
	if r.CurrentTag == "" {
		return fmt.Errorf("current_tag is required")
	}
	if r.VMIdentifier == "" {
		return fmt.Errorf("vm_identifier is required")
	}
	switch r.Phase {
	case PhasePulled, PhaseUpdateChecked, PhaseUpgraded:
	default:
		return fmt.Errorf("invalid phase %q", r.Phase)
	}
	return nil
}

// Validate checks the document version and every record. Record names
// must match their map keys so a hand-edited file cannot alias two
// names onto one record.
func (d *Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("unsupported store version: %s (expected: %s)", d.Version, Version)
	}
	for name, r := range d.Records {
		if r == nil {
			return fmt.Errorf("record %q is empty", name)
		}
		if r.Name != name {
			return fmt.Errorf("record key %q does not match record name %q", name, r.Name)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %q: %w", name, err)
		}
	}
	return nil
}
