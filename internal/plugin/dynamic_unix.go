//go:build linux || darwin

/*
NAME
  dynamic_unix.go

DESCRIPTION
  Dynamic plugin loading for platforms where Go's plugin package is
  supported (Linux and macOS). A shared object is named after the plugin
  naming convention (a "tsp-plugin-" prefix, then role, then name) and
  opened with plugin.Open, whose side effect of running the loaded
  package's init() functions is this rewrite's stand-in for the original's
  static-constructor self-registration (see Design Note 9).

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
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"
)

var loadedMu sync.Mutex
var loaded = map[string]bool{}

// pluginFileName returns the shared-object name for role/name, per the
// "prefix plus role plus name" naming convention.
func pluginFileName(role Role, name string) string {
	return fmt.Sprintf("tsp-plugin-%s-%s.so", role, name)
}

// loadPlugin opens the shared object for role/name, found by searching
// paths in order. A plugin is only ever opened once per process; a
// second request for an already-loaded file fails rather than reopening,
// since a second miss after a load means the file did not self-register
// under the requested name.
func loadPlugin(r *Registry, role Role, name string, paths []string) error {
	fname := pluginFileName(role, name)

	loadedMu.Lock()
	already := loaded[fname]
	loadedMu.Unlock()
	if already {
		return fmt.Errorf("plugin %s already loaded but did not self-register %s %q", fname, role, name)
	}

	for _, dir := range paths {
		full := filepath.Join(dir, fname)
		if _, err := os.Stat(full); err != nil {
			continue
		}
		if _, err := plugin.Open(full); err != nil {
			return fmt.Errorf("opening %s: %w", full, err)
		}
		loadedMu.Lock()
		loaded[fname] = true
		loadedMu.Unlock()
		return nil
	}
	return fmt.Errorf("%s not found in search path", fname)
}

// loadAllPlugins scans every directory in paths for files matching the
// naming convention and loads each one exactly once.
func loadAllPlugins(r *Registry, paths []string) error {
	var firstErr error
	for _, dir := range paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), "tsp-plugin-") || filepath.Ext(e.Name()) != ".so" {
				continue
			}
			loadedMu.Lock()
			already := loaded[e.Name()]
			loadedMu.Unlock()
			if already {
				continue
			}
			full := filepath.Join(dir, e.Name())
			if _, err := plugin.Open(full); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("opening %s: %w", full, err)
				}
				continue
			}
			loadedMu.Lock()
			loaded[e.Name()] = true
			loadedMu.Unlock()
		}
	}
	return firstErr
}
