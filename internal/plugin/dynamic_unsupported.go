//go:build !linux && !darwin

/*
NAME
  dynamic_unsupported.go

DESCRIPTION
  Stand-in for dynamic_unix.go on platforms where Go's plugin package is
  unavailable (e.g. Windows). SharedLibraryAllowed should simply be left
  false there; if a caller sets it anyway, lookups fail with a clear
  RegistryError rather than failing to build.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package plugin

import "fmt"

func loadPlugin(r *Registry, role Role, name string, paths []string) error {
	return fmt.Errorf("dynamic plugin loading is not supported on this platform")
}

func loadAllPlugins(r *Registry, paths []string) error {
	return fmt.Errorf("dynamic plugin loading is not supported on this platform")
}
