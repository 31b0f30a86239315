/*
NAME
  registry.go

DESCRIPTION
  A process-wide, name -> allocator registry for the three plugin roles.
  Replaces the C++ original's static-constructor self-registration with an
  explicit call each plugin's package makes from its own init(), plus an
  optional directory scan that dynamically loads a shared object by name
  on a registry miss. Both modes sit behind the same Get* call so stage
  construction never needs to know which one resolved a name.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
)

// RegistryError reports a plugin name that could not be resolved, by
// lookup or by dynamic load.
type RegistryError struct {
	Role Role
	Name string
	Err  error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin: no %s plugin %q: %v", e.Role, e.Name, e.Err)
	}
	return fmt.Sprintf("plugin: no %s plugin %q", e.Role, e.Name)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// Registry holds the three name -> allocator mappings. The zero value is
// ready to use; registration is safe to call from package init()
// functions regardless of package initialization order, since each map is
// created lazily under the registry's own mutex rather than relying on
// any ordering between translation units.
type Registry struct {
	mu         sync.RWMutex
	inputs     map[string]InputAllocator
	processors map[string]ProcessorAllocator
	outputs    map[string]OutputAllocator

	// SearchPath lists directories scanned for dynamically loadable
	// plugins. SharedLibraryAllowed gates whether a registry miss may
	// fall back to a dynamic load at all.
	SearchPath           []string
	SharedLibraryAllowed bool
}

// Default is the process-wide registry instance. Plugin packages call its
// Register* methods from their own init() function; the CLI and tests may
// also construct a private *Registry for isolation.
var Default = &Registry{}

// RegisterInput inserts or overwrites the Input allocator for name. A nil
// allocator is ignored.
func (r *Registry) RegisterInput(name string, a InputAllocator) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inputs == nil {
		r.inputs = make(map[string]InputAllocator)
	}
	r.inputs[name] = a
}

// RegisterProcessor inserts or overwrites the Processor allocator for
// name. A nil allocator is ignored.
func (r *Registry) RegisterProcessor(name string, a ProcessorAllocator) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processors == nil {
		r.processors = make(map[string]ProcessorAllocator)
	}
	r.processors[name] = a
}

// RegisterOutput inserts or overwrites the Output allocator for name. A
// nil allocator is ignored.
func (r *Registry) RegisterOutput(name string, a OutputAllocator) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outputs == nil {
		r.outputs = make(map[string]OutputAllocator)
	}
	r.outputs[name] = a
}

// GetInput resolves name to an Input allocator, falling back to a dynamic
// shared-object load (see tryDynamicLoad) if it is not already registered
// and SharedLibraryAllowed is set. It returns RegistryError if name still
// cannot be resolved after that attempt.
func (r *Registry) GetInput(name string) (InputAllocator, error) {
	r.mu.RLock()
	a, ok := r.inputs[name]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}
	if err := r.tryDynamicLoad(RoleInput, name); err != nil {
		return nil, &RegistryError{Role: RoleInput, Name: name, Err: err}
	}
	r.mu.RLock()
	a, ok = r.inputs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &RegistryError{Role: RoleInput, Name: name}
	}
	return a, nil
}

// GetProcessor resolves name to a Processor allocator; see GetInput.
func (r *Registry) GetProcessor(name string) (ProcessorAllocator, error) {
	r.mu.RLock()
	a, ok := r.processors[name]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}
	if err := r.tryDynamicLoad(RoleProcessor, name); err != nil {
		return nil, &RegistryError{Role: RoleProcessor, Name: name, Err: err}
	}
	r.mu.RLock()
	a, ok = r.processors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &RegistryError{Role: RoleProcessor, Name: name}
	}
	return a, nil
}

// GetOutput resolves name to an Output allocator; see GetInput.
func (r *Registry) GetOutput(name string) (OutputAllocator, error) {
	r.mu.RLock()
	a, ok := r.outputs[name]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}
	if err := r.tryDynamicLoad(RoleOutput, name); err != nil {
		return nil, &RegistryError{Role: RoleOutput, Name: name, Err: err}
	}
	r.mu.RLock()
	a, ok = r.outputs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &RegistryError{Role: RoleOutput, Name: name}
	}
	return a, nil
}

// tryDynamicLoad attempts a single dynamic load of the named plugin if
// SharedLibraryAllowed is set; otherwise it loads nothing and returns an
// error saying dynamic loading is disabled. A successfully
// loaded shared object registers itself through the same Register* calls
// as a statically linked plugin, from the loaded package's init().
func (r *Registry) tryDynamicLoad(role Role, name string) error {
	r.mu.RLock()
	allowed := r.SharedLibraryAllowed
	paths := append([]string(nil), r.SearchPath...)
	r.mu.RUnlock()
	if !allowed {
		return fmt.Errorf("dynamic loading disabled")
	}
	return loadPlugin(r, role, name, paths)
}

// LoadAllPlugins scans SearchPath for every shared object matching the
// plugin naming convention and loads each exactly once, regardless of
// role. It is a no-op if SharedLibraryAllowed is false.
func (r *Registry) LoadAllPlugins() error {
	r.mu.RLock()
	allowed := r.SharedLibraryAllowed
	paths := append([]string(nil), r.SearchPath...)
	r.mu.RUnlock()
	if !allowed {
		return nil
	}
	return loadAllPlugins(r, paths)
}

// ListPlugins returns a column-aligned inventory of every registered
// plugin, grouped by role. If loadAll is true and dynamic loading is
// allowed, LoadAllPlugins runs first so the listing reflects shared
// objects as well as statically registered plugins.
func (r *Registry) ListPlugins(loadAll bool) string {
	if loadAll {
		_ = r.LoadAllPlugins()
	}

	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	r.mu.RLock()
	defer r.mu.RUnlock()

	type row struct{ role, name string }
	var rows []row
	for name := range r.inputs {
		rows = append(rows, row{"input", name})
	}
	for name := range r.processors {
		rows = append(rows, row{"processor", name})
	}
	for name := range r.outputs {
		rows = append(rows, row{"output", name})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].role != rows[j].role {
			return rows[i].role < rows[j].role
		}
		return rows[i].name < rows[j].name
	})

	fmt.Fprintln(w, "ROLE\tNAME")
	for _, rr := range rows {
		fmt.Fprintf(w, "%s\t%s\n", rr.role, rr.name)
	}
	w.Flush()
	return buf.String()
}
