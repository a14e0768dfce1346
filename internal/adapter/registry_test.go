package adapter

import (
	"testing"
)

func specAdapter(id, name string) Adapter {
	return NewFileAdapter(ToolSpec{ID: id, Name: name})
}

func TestRegistryPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(specAdapter("zed", "Zed"))
	r.Register(specAdapter("claude", "Claude Code"))
	r.Register(specAdapter("nvim", "Neovim"))

	want := []string{"zed", "claude", "nvim"}
	got := r.IDs()
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	r.Register(specAdapter("claude", "Claude Code"))
	r.Register(specAdapter("zed", "Zed"))
	r.Register(specAdapter("claude", "Claude Code v2"))

	a, ok := r.Get("claude")
	if !ok {
		t.Fatal("Get() should find the re-registered adapter")
	}
	if a.Name() != "Claude Code v2" {
		t.Errorf("Name() = %q, want the replacement", a.Name())
	}

	// Replacement keeps the original position.
	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "claude" || ids[1] != "zed" {
		t.Errorf("IDs() = %v, want [claude zed]", ids)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("unknown"); ok {
		t.Error("Get() should report false for unregistered identifiers")
	}
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	r.Register(specAdapter("b", "B"))
	r.Register(specAdapter("a", "A"))

	all := r.All()
	if len(all) != 2 || all[0].ID() != "b" || all[1].ID() != "a" {
		t.Errorf("All() order = [%s %s], want [b a]", all[0].ID(), all[1].ID())
	}
}

func TestBuiltinSpecs(t *testing.T) {
	specs := BuiltinSpecs()
	if len(specs) != 14 {
		t.Errorf("BuiltinSpecs() has %d entries, want 14", len(specs))
	}

	seen := map[string]bool{}
	for _, spec := range specs {
		if spec.ID == "" || spec.Name == "" {
			t.Errorf("spec %+v missing ID or Name", spec)
		}
		if seen[spec.ID] {
			t.Errorf("duplicate tool id %q", spec.ID)
		}
		seen[spec.ID] = true
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	if r.Len() != len(BuiltinSpecs()) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(BuiltinSpecs()))
	}
	if _, ok := r.Get("claude"); !ok {
		t.Error("claude adapter should be registered")
	}
	if _, ok := r.Get("git"); !ok {
		t.Error("git adapter should be registered")
	}
}
