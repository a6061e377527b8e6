// Package engine implements the reconciliation engine: it tracks named
// VM records against the registry's tag list and drives the external
// operations needed to converge the local fleet to a tag, preserving
// the at-most-one-VM-per-name invariant across partial failures.
package engine

import (
	"fmt"
	"sort"

	"github.com/jbweber/dragon/internal/record"
)

// Engine reconciles the record store against the registry and the
// virtualization inventory. All operations run to completion or
// failure before returning; there is no background execution.
type Engine struct {
	store    *record.Store
	registry RegistryClient
	vms      VMToolchain
}

// NewEngine creates an engine over the given store and external tool
// adapters.
func NewEngine(store *record.Store, registry RegistryClient, vms VMToolchain) *Engine {
	return &Engine{store: store, registry: registry, vms: vms}
}

// Result describes a successfully materialized VM. Callers use it to
// register a terminal profile; the engine itself never touches the
// terminal emulator's configuration.
type Result struct {
	Name              string
	VMIdentifier      string
	TerminalProfileID string
	// ConnectCommand is the command line a terminal profile should run
	// to attach to the VM.
	ConnectCommand string
}

func resultFor(r *record.Record) *Result {
	return &Result{
		Name:              r.Name,
		VMIdentifier:      r.VMIdentifier,
		TerminalProfileID: r.TerminalProfileID,
		ConnectCommand:    fmt.Sprintf("wsl.exe -d %s", r.VMIdentifier),
	}
}

// lookup loads the store and returns the named record.
func (e *Engine) lookup(name string) (*record.Record, error) {
	doc, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	r, ok := doc.Records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", record.ErrRecordNotFound, name)
	}
	return r, nil
}

// names returns all record names in the store, sorted.
func (e *Engine) names() ([]string, error) {
	doc, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Records))
	for name := range doc.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
