package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/tools"
)

// mockRegistry is a mock implementation of the RegistryClient
// interface for testing.
type mockRegistry struct {
	mu sync.Mutex

	// Configurable behavior
	latestTagFunc func(ref imageref.Reference) (string, error)

	// Call tracking
	latestTagCalls []string
}

func newMockRegistry(tag string) *mockRegistry {
	return &mockRegistry{
		latestTagFunc: func(ref imageref.Reference) (string, error) {
			return tag, nil
		},
	}
}

func (m *mockRegistry) LatestTag(_ context.Context, ref imageref.Reference) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestTagCalls = append(m.latestTagCalls, ref.Repo())
	return m.latestTagFunc(ref)
}

// mockToolchain is a mock implementation of the VMToolchain interface
// for testing. By default it tracks a fake inventory: Materialize adds
// the VM, DeleteVM removes it or fails with tools.ErrVMNotFound.
type mockToolchain struct {
	mu sync.Mutex

	inventory map[string]bool

	// Configurable behavior
	materializeFunc func(ref imageref.Reference, tag, vmIdentifier string) error
	listVMsFunc     func() ([]string, error)
	deleteVMFunc    func(vmIdentifier string) error

	// Call tracking
	materializeCalls []string
	deleteVMCalls    []string
	listVMsCalls     int
}

func newMockToolchain(existing ...string) *mockToolchain {
	m := &mockToolchain{inventory: make(map[string]bool)}
	for _, vm := range existing {
		m.inventory[vm] = true
	}

	// Default: materialization registers the VM in the fake inventory
	m.materializeFunc = func(ref imageref.Reference, tag, vmIdentifier string) error {
		m.inventory[vmIdentifier] = true
		return nil
	}

	// Default: list returns the fake inventory
	m.listVMsFunc = func() ([]string, error) {
		vms := make([]string, 0, len(m.inventory))
		for vm := range m.inventory {
			vms = append(vms, vm)
		}
		return vms, nil
	}

	// Default: delete removes from inventory, not-found if absent
	m.deleteVMFunc = func(vmIdentifier string) error {
		if !m.inventory[vmIdentifier] {
			return fmt.Errorf("%w: %s", tools.ErrVMNotFound, vmIdentifier)
		}
		delete(m.inventory, vmIdentifier)
		return nil
	}

	return m
}

func (m *mockToolchain) Materialize(_ context.Context, ref imageref.Reference, tag, vmIdentifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materializeCalls = append(m.materializeCalls, vmIdentifier)
	return m.materializeFunc(ref, tag, vmIdentifier)
}

func (m *mockToolchain) ListVMs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listVMsCalls++
	return m.listVMsFunc()
}

func (m *mockToolchain) DeleteVM(_ context.Context, vmIdentifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteVMCalls = append(m.deleteVMCalls, vmIdentifier)
	return m.deleteVMFunc(vmIdentifier)
}

func (m *mockToolchain) has(vmIdentifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[vmIdentifier]
}
