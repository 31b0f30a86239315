/*
NAME
  options.go

DESCRIPTION
  A minimal comma-separated key=value option parser shared by the
  built-in plugins, mirroring the "vars" map style config.Config.Update
  consumes in the teacher's config package, but scoped to one plugin
  instance's Options string rather than the whole pipeline config.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package builtin provides the small set of input, processor, and
// output plugins shipped with tsp itself: file-backed I/O and a PID
// filter, each self-registering with plugin.Default from its own
// init().
package builtin

import "strings"

// parseOptions splits a comma-separated "key=value" options string into
// a map. An entry with no "=" is kept with an empty value, so boolean
// flags (e.g. "loop") can be written bare.
func parseOptions(s string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		} else {
			out[kv] = ""
		}
	}
	return out
}
