package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/record"
	"github.com/jbweber/dragon/internal/tools"
)

// setupUpgradeTest creates a devbox record at v1 with the registry
// reporting v2 as most recent and latest_tag already refreshed.
func setupUpgradeTest(t *testing.T) (*Engine, *record.Store, *mockRegistry, *mockToolchain) {
	t.Helper()
	store := testStore(t)
	registry := newMockRegistry("v1")
	vms := newMockToolchain()
	e := NewEngine(store, registry, vms)

	if _, err := e.New(context.Background(), "devbox", testRef(t, "registry.example/app"), "v1"); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	registry.latestTagFunc = func(ref imageref.Reference) (string, error) { return "v2", nil }
	if _, err := e.Update(context.Background(), "devbox"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return e, store, registry, vms
}

func TestUpgrade_CreateNewPolicy(t *testing.T) {
	e, store, _, vms := setupUpgradeTest(t)

	result, err := e.Upgrade(context.Background(), "devbox")
	if err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	if result.VMIdentifier != "devbox-v2" {
		t.Errorf("Expected vm identifier 'devbox-v2', got %q", result.VMIdentifier)
	}
	if !vms.has("devbox-v2") {
		t.Errorf("Expected new VM 'devbox-v2' in inventory")
	}
	if vms.has("devbox-v1") {
		t.Errorf("Expected old VM 'devbox-v1' to be deleted")
	}

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	r := doc.Records["devbox"]
	if r.CurrentTag != "v2" || r.LatestTag != "v2" {
		t.Errorf("Expected current_tag == latest_tag == 'v2', got %q / %q", r.CurrentTag, r.LatestTag)
	}
	if r.VMIdentifier != "devbox-v2" {
		t.Errorf("Expected vm_identifier 'devbox-v2', got %q", r.VMIdentifier)
	}
	if r.Phase != record.PhaseUpgraded {
		t.Errorf("Expected phase Upgraded, got %q", r.Phase)
	}
}

func TestUpgrade_NewBeforeDeleteOrdering(t *testing.T) {
	e, _, _, vms := setupUpgradeTest(t)

	// The old VM must never be deleted before the new one is
	// materialized and confirmed present.
	vms.deleteVMFunc = func(vmIdentifier string) error {
		if !vms.inventory["devbox-v2"] {
			t.Errorf("Old VM deleted before new VM was present")
		}
		delete(vms.inventory, vmIdentifier)
		return nil
	}

	if _, err := e.Upgrade(context.Background(), "devbox"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if len(vms.deleteVMCalls) != 1 || vms.deleteVMCalls[0] != "devbox-v1" {
		t.Errorf("Expected exactly one delete of 'devbox-v1', got %v", vms.deleteVMCalls)
	}
}

func TestUpgrade_MaterializeFailureKeepsPreUpgradeState(t *testing.T) {
	e, store, _, vms := setupUpgradeTest(t)

	vms.materializeFunc = func(ref imageref.Reference, tag, vmIdentifier string) error {
		return &tools.MaterializeError{Step: tools.StepImport, Err: fmt.Errorf("import failed")}
	}

	_, err := e.Upgrade(context.Background(), "devbox")
	if err == nil {
		t.Fatalf("Expected Upgrade to fail")
	}
	var merr *tools.MaterializeError
	if !errors.As(err, &merr) || merr.Step != tools.StepImport {
		t.Errorf("Expected failing step %q in error, got %v", tools.StepImport, err)
	}

	// Old VM still present, record unchanged.
	if !vms.has("devbox-v1") {
		t.Errorf("Old VM must survive a failed upgrade")
	}
	if len(vms.deleteVMCalls) != 0 {
		t.Errorf("No deletes may happen after a failed materialization, got %v", vms.deleteVMCalls)
	}
	doc, loadErr := store.Load()
	if loadErr != nil {
		t.Fatalf("Load failed: %v", loadErr)
	}
	r := doc.Records["devbox"]
	if r.CurrentTag != "v1" || r.VMIdentifier != "devbox-v1" {
		t.Errorf("Record must stay at pre-upgrade state, got tag %q vm %q", r.CurrentTag, r.VMIdentifier)
	}
}

func TestUpgrade_ResumeAfterInterruption(t *testing.T) {
	e, store, _, vms := setupUpgradeTest(t)

	// Simulate a previous run interrupted after import: both VMs exist,
	// record still points at the old one.
	vms.inventory["devbox-v2"] = true

	if _, err := e.Upgrade(context.Background(), "devbox"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	// Materialization was skipped; old VM deleted; record updated.
	if len(vms.materializeCalls) != 1 { // only the initial New
		t.Errorf("Expected materialization to be skipped, got calls %v", vms.materializeCalls)
	}
	if vms.has("devbox-v1") {
		t.Errorf("Expected old VM to be deleted on resume")
	}
	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Records["devbox"].CurrentTag != "v2" {
		t.Errorf("Expected record updated to 'v2', got %q", doc.Records["devbox"].CurrentTag)
	}
}

func TestUpgrade_ReplacePolicyWhenTagsEqual(t *testing.T) {
	e, store, _, vms := setupUpgradeTest(t)

	// First upgrade converges to v2.
	if _, err := e.Upgrade(context.Background(), "devbox"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	deletesAfterFirst := len(vms.deleteVMCalls)

	// Second upgrade with no update in between: latest == current, so
	// the VM is refreshed in place under the same identifier.
	result, err := e.Upgrade(context.Background(), "devbox")
	if err != nil {
		t.Fatalf("Second upgrade failed: %v", err)
	}
	if result.VMIdentifier != "devbox-v2" {
		t.Errorf("Expected same identifier 'devbox-v2', got %q", result.VMIdentifier)
	}

	// Replace policy is delete-then-recreate.
	if len(vms.deleteVMCalls) != deletesAfterFirst+1 {
		t.Errorf("Expected one more delete for the in-place refresh, got %v", vms.deleteVMCalls)
	}
	if vms.deleteVMCalls[len(vms.deleteVMCalls)-1] != "devbox-v2" {
		t.Errorf("Expected in-place delete of 'devbox-v2', got %v", vms.deleteVMCalls)
	}
	if !vms.has("devbox-v2") {
		t.Errorf("Expected VM 'devbox-v2' re-materialized")
	}

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	r := doc.Records["devbox"]
	if r.CurrentTag != "v2" || r.LatestTag != "v2" {
		t.Errorf("Record must be unchanged by in-place refresh, got %q / %q", r.CurrentTag, r.LatestTag)
	}
}

func TestUpgrade_DeleteOldNotFoundIsSuccess(t *testing.T) {
	e, store, _, vms := setupUpgradeTest(t)

	// Old VM vanished externally (drift); upgrade must still succeed.
	delete(vms.inventory, "devbox-v1")

	if _, err := e.Upgrade(context.Background(), "devbox"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Records["devbox"].CurrentTag != "v2" {
		t.Errorf("Expected record updated to 'v2', got %q", doc.Records["devbox"].CurrentTag)
	}
}

func TestUpgrade_DeleteOldBusyAbortsRecordUpdate(t *testing.T) {
	e, store, _, vms := setupUpgradeTest(t)

	vms.deleteVMFunc = func(vmIdentifier string) error {
		return fmt.Errorf("%w: %s", tools.ErrVMBusy, vmIdentifier)
	}

	_, err := e.Upgrade(context.Background(), "devbox")
	if !errors.Is(err, tools.ErrVMBusy) {
		t.Fatalf("Expected ErrVMBusy, got %v", err)
	}

	// Both VMs exist now; the record must keep pointing at the old one
	// so a re-run can pick up from here.
	doc, loadErr := store.Load()
	if loadErr != nil {
		t.Fatalf("Load failed: %v", loadErr)
	}
	if doc.Records["devbox"].CurrentTag != "v1" {
		t.Errorf("Record must not be updated when old VM deletion fails, got %q", doc.Records["devbox"].CurrentTag)
	}
}

func TestUpgrade_RefreshesEmptyLatestTag(t *testing.T) {
	store := testStore(t)
	registry := newMockRegistry("v2")
	vms := newMockToolchain("devbox-v1")
	e := NewEngine(store, registry, vms)

	// Hand-authored record that was never update-checked.
	err := store.Create(&record.Record{
		Name:           "devbox",
		ImageReference: "registry.example/app",
		CurrentTag:     "v1",
		VMIdentifier:   "devbox-v1",
		Phase:          record.PhasePulled,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := e.Upgrade(context.Background(), "devbox"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Records["devbox"].CurrentTag != "v2" {
		t.Errorf("Expected upgrade to v2 after inline refresh, got %q", doc.Records["devbox"].CurrentTag)
	}
}

func TestUpgradeAll_ContinuesPastFailures(t *testing.T) {
	store := testStore(t)
	registry := newMockRegistry("v1")
	vms := newMockToolchain()
	e := NewEngine(store, registry, vms)

	for _, name := range []string{"alpha", "beta"} {
		if _, err := e.New(context.Background(), name, testRef(t, "registry.example/"+name), "v1"); err != nil {
			t.Fatalf("New %s failed: %v", name, err)
		}
	}
	registry.latestTagFunc = func(ref imageref.Reference) (string, error) { return "v2", nil }
	if err := e.UpdateAll(context.Background()); err != nil {
		t.Fatalf("UpdateAll failed: %v", err)
	}

	vms.materializeFunc = func(ref imageref.Reference, tag, vmIdentifier string) error {
		if vmIdentifier == "alpha-v2" {
			return &tools.MaterializeError{Step: tools.StepPull, Err: fmt.Errorf("boom")}
		}
		vms.inventory[vmIdentifier] = true
		return nil
	}

	results, err := e.UpgradeAll(context.Background())
	if err == nil {
		t.Fatalf("Expected collective error")
	}
	if len(results) != 1 || results[0].Name != "beta" {
		t.Errorf("Expected beta to upgrade despite alpha failing, got %v", results)
	}

	doc, loadErr := store.Load()
	if loadErr != nil {
		t.Fatalf("Load failed: %v", loadErr)
	}
	if doc.Records["alpha"].CurrentTag != "v1" {
		t.Errorf("Expected alpha untouched, got %q", doc.Records["alpha"].CurrentTag)
	}
	if doc.Records["beta"].CurrentTag != "v2" {
		t.Errorf("Expected beta upgraded, got %q", doc.Records["beta"].CurrentTag)
	}
}
