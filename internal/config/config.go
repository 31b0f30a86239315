/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for a tsp pipeline
// run: which plugins to load, in what order, and the ring and logging
// parameters that govern the run.
package config

import (
	"fmt"

	"github.com/ausocean/utils/logging"
)

// PluginSpec names one plugin instance and the options string passed to
// its allocator, mirroring the "name plus free-form option string"
// convention most tsp-style command-line tools use for plugin
// arguments.
type PluginSpec struct {
	// Name is the registered plugin name, looked up in a plugin.Registry.
	Name string

	// Options is an unparsed argument string handed to the plugin after
	// construction; individual plugins define their own option syntax.
	Options string

	// JointTermination opts a processor or the output into the joint
	// termination rendezvous (see internal/term). Only meaningful for
	// Processors and Output; ignored for Input.
	JointTermination bool

	// IgnoreAborts demotes a broken-pipe read/write failure to a clean
	// stage end instead of a Fatal (see internal/ioclass). Meaningful
	// for Input and Output; ignored for Processors, which never perform
	// their own I/O.
	IgnoreAborts bool
}

// Config provides parameters relevant to one tsp pipeline run. A new
// Config must be passed to pipeline.Build (by way of cmd/tsp's resolve
// step, which looks PluginSpec.Name up in a registry). Default values
// for these fields are defined as consts below.
type Config struct {
	// Input names the single input plugin.
	Input PluginSpec

	// Processors names the ordered chain of processor plugins; each
	// packet passes through them in order before reaching Output.
	Processors []PluginSpec

	// Output names the single output plugin.
	Output PluginSpec

	// RingSize is the number of packet slots shared by every stage. It
	// defaults to DefaultRingSize if zero.
	RingSize int

	// IgnoreJointTermination turns every stage's joint termination
	// request into an individual one, process-wide.
	IgnoreJointTermination bool

	// PluginSearchPath lists directories scanned for dynamically
	// loadable plugins (see internal/plugin). Empty disables dynamic
	// loading regardless of AllowSharedLibraries.
	PluginSearchPath []string

	// AllowSharedLibraries gates whether a plugin name that is not
	// statically registered may be resolved via a dynamic load from
	// PluginSearchPath.
	AllowSharedLibraries bool

	// Logger holds an implementation of the Logger interface as defined
	// in stage.Logger; logging.Logger satisfies it directly.
	Logger logging.Logger
}

// DefaultRingSize is used when Config.RingSize is left at zero.
const DefaultRingSize = 64

// Validate checks for errors in the config fields and defaults settings
// where a field has been left unset.
func (c *Config) Validate() error {
	if c.Input.Name == "" {
		return fmt.Errorf("config: Input.Name is required")
	}
	if c.Output.Name == "" {
		return fmt.Errorf("config: Output.Name is required")
	}
	for i, p := range c.Processors {
		if p.Name == "" {
			return fmt.Errorf("config: Processors[%d].Name is required", i)
		}
	}
	if c.RingSize == 0 {
		c.RingSize = DefaultRingSize
	}
	if c.RingSize < 2 {
		return fmt.Errorf("config: RingSize must be at least 2, got %d", c.RingSize)
	}
	return nil
}
