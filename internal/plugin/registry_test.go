package plugin

import (
	"strings"
	"testing"

	"github.com/ausocean/tsp/internal/tspacket"
)

type nullProcessor struct{}

func (nullProcessor) Start() error { return nil }
func (nullProcessor) Stop() error  { return nil }
func (nullProcessor) Process(pkt *tspacket.Packet) (Verdict, error) {
	return Null, nil
}

// TestS6RegistryPrecedence is scenario S6 from the spec: once a processor
// is registered under a name, GetProcessor returns it without attempting
// a dynamic load, even when dynamic loading is enabled.
func TestS6RegistryPrecedence(t *testing.T) {
	r := &Registry{SharedLibraryAllowed: true, SearchPath: []string{"/nonexistent"}}
	r.RegisterProcessor("null", func() Processor { return nullProcessor{} })

	a, err := r.GetProcessor("null")
	if err != nil {
		t.Fatalf("GetProcessor: %v", err)
	}
	if _, ok := a().(nullProcessor); !ok {
		t.Error("expected the registered nullProcessor allocator")
	}
}

func TestRegisterOverwrites(t *testing.T) {
	r := &Registry{}
	r.RegisterProcessor("p", func() Processor { return nullProcessor{} })
	r.RegisterProcessor("p", func() Processor { return nullProcessor{} })

	a, err := r.GetProcessor("p")
	if err != nil {
		t.Fatalf("GetProcessor: %v", err)
	}
	if a == nil {
		t.Fatal("expected an allocator")
	}
}

func TestRegisterNilAllocatorIgnored(t *testing.T) {
	r := &Registry{}
	r.RegisterProcessor("p", nil)
	if _, err := r.GetProcessor("p"); err == nil {
		t.Error("expected RegistryError for a name that was never actually registered")
	}
}

func TestGetMissingWithoutSharedLibrary(t *testing.T) {
	r := &Registry{}
	_, err := r.GetProcessor("missing")
	if err == nil {
		t.Fatal("expected RegistryError")
	}
	if _, ok := err.(*RegistryError); !ok {
		t.Errorf("got %T, want *RegistryError", err)
	}
}

func TestListPluginsColumnAlignment(t *testing.T) {
	r := &Registry{}
	r.RegisterInput("file", func() Input { return nil })
	r.RegisterProcessor("null", func() Processor { return nullProcessor{} })
	r.RegisterOutput("udp", func() Output { return nil })

	out := r.ListPlugins(false)
	if out == "" {
		t.Fatal("expected non-empty listing")
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4 (header plus one per plugin):\n%s", len(lines), out)
	}
	col := strings.Index(lines[0], "NAME")
	for _, line := range lines {
		if len(line) <= col || line[col-1] != ' ' || line[col] == ' ' {
			t.Errorf("name column does not start at offset %d in line %q", col, line)
		}
	}
}
