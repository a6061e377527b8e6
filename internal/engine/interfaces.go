package engine

import (
	"context"

	"github.com/jbweber/dragon/internal/imageref"
)

// RegistryClient defines the registry operations the engine needs.
//
// In production, this is satisfied by *tools.Registry.
// In tests, this is satisfied by mock implementations.
type RegistryClient interface {
	// LatestTag returns the most recently pushed tag for a repository,
	// per the registry's own recency ordering.
	LatestTag(ctx context.Context, ref imageref.Reference) (string, error)
}

// VMToolchain defines the virtualization operations the engine needs.
//
// In production, this is satisfied by *tools.Toolset.
// In tests, this is satisfied by mock implementations.
type VMToolchain interface {
	// Materialize pulls the image at tag, exports its filesystem, and
	// imports it as a VM named vmIdentifier.
	Materialize(ctx context.Context, ref imageref.Reference, tag, vmIdentifier string) error

	// ListVMs returns the virtualization layer's current inventory.
	ListVMs(ctx context.Context) ([]string, error)

	// DeleteVM removes a VM. Returns tools.ErrVMNotFound if already
	// absent and tools.ErrVMBusy if in use.
	DeleteVM(ctx context.Context, vmIdentifier string) error
}
