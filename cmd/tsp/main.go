/*
NAME
  main.go

DESCRIPTION
  tsp is a command-line MPEG-TS pipeline runner: an input plugin feeds a
  packet ring, an ordered chain of processor plugins inspect and mutate
  each packet in place, and an output plugin drains the ring, all wired
  up from plugin names given on the command line.

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

// Package main is the tsp command-line pipeline runner.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	_ "github.com/ausocean/tsp/internal/builtin"
	"github.com/ausocean/tsp/internal/config"
	"github.com/ausocean/tsp/internal/pipeline"
	"github.com/ausocean/tsp/internal/plugin"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration, matching cmd/rv's constants.
const (
	logPath      = "tsp.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

// pluginFlag collects one or more "name[:option=value,...]" arguments,
// e.g. -processor pidfilter:pids=256;257.
type pluginFlag struct {
	specs []config.PluginSpec
}

func (f *pluginFlag) String() string {
	var parts []string
	for _, s := range f.specs {
		parts = append(parts, s.Name)
	}
	return strings.Join(parts, ",")
}

func (f *pluginFlag) Set(v string) error {
	name, opts, _ := strings.Cut(v, ":")
	if name == "" {
		return fmt.Errorf("plugin spec %q is missing a name", v)
	}
	f.specs = append(f.specs, config.PluginSpec{Name: name, Options: opts})
	return nil
}

func main() {
	showVersion := flag.Bool("version", false, "show version")
	listPlugins := flag.Bool("list-plugins", false, "list registered plugins and exit")
	input := flag.String("input", "", "input plugin, as name[:options]")
	output := flag.String("output", "", "output plugin, as name[:options]")
	var processors pluginFlag
	flag.Var(&processors, "processor", "processor plugin, as name[:options] (repeatable)")
	ringSize := flag.Int("ring-size", config.DefaultRingSize, "number of packet slots shared by every stage")
	ignoreJoint := flag.Bool("ignore-joint-termination", false, "treat every joint termination request as individual")
	pluginPath := flag.String("plugin-path", "", "colon-separated search path for dynamically loaded plugins")
	allowShared := flag.Bool("allow-shared-libraries", false, "allow resolving unregistered plugin names via dynamic load")
	jointProcessors := flag.String("joint-termination-processors", "", "comma-separated list of -processor names opted into joint termination")
	jointOutput := flag.Bool("joint-termination-output", false, "opt the output plugin into joint termination")
	ignoreInputAborts := flag.Bool("ignore-input-aborts", false, "demote a broken-pipe input read failure to a clean end of stream")
	ignoreOutputAborts := flag.Bool("ignore-output-aborts", false, "demote a broken-pipe output write failure to a clean stage end")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if *pluginPath != "" {
		plugin.Default.SearchPath = strings.Split(*pluginPath, ":")
	}
	plugin.Default.SharedLibraryAllowed = *allowShared

	if *listPlugins {
		fmt.Print(plugin.Default.ListPlugins(*allowShared))
		return
	}

	jointSet := make(map[string]bool)
	for _, name := range strings.Split(*jointProcessors, ",") {
		if name != "" {
			jointSet[name] = true
		}
	}
	for i := range processors.specs {
		processors.specs[i].JointTermination = jointSet[processors.specs[i].Name]
	}

	cfg := config.Config{
		Processors:             processors.specs,
		Output:                 config.PluginSpec{JointTermination: *jointOutput, IgnoreAborts: *ignoreOutputAborts},
		RingSize:               *ringSize,
		IgnoreJointTermination: *ignoreJoint,
		PluginSearchPath:       plugin.Default.SearchPath,
		AllowSharedLibraries:   *allowShared,
		Logger:                 log,
	}
	if *input != "" {
		name, opts, _ := strings.Cut(*input, ":")
		cfg.Input = config.PluginSpec{Name: name, Options: opts, IgnoreAborts: *ignoreInputAborts}
	}
	if *output != "" {
		name, opts, _ := strings.Cut(*output, ":")
		cfg.Output = config.PluginSpec{Name: name, Options: opts, JointTermination: *jointOutput, IgnoreAborts: *ignoreOutputAborts}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err.Error())
	}

	log.Info("starting tsp", "version", version, "input", cfg.Input.Name, "output", cfg.Output.Name)

	p, err := buildPipeline(cfg, log)
	if err != nil {
		log.Fatal("could not build pipeline", "error", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status := p.Run(ctx)
	log.Info("tsp run finished", "status", status.String())
	if status == pipeline.ExitFatal {
		os.Exit(1)
	}
}

// buildPipeline resolves every configured plugin name against the
// default registry, constructs one instance of each, and hands the
// result to pipeline.Build.
func buildPipeline(cfg config.Config, log logging.Logger) (*pipeline.Pipeline, error) {
	inAlloc, err := plugin.Default.GetInput(cfg.Input.Name)
	if err != nil {
		return nil, err
	}
	outAlloc, err := plugin.Default.GetOutput(cfg.Output.Name)
	if err != nil {
		return nil, err
	}

	spec := pipeline.Spec{
		InputName:              cfg.Input.Name,
		Input:                  inAlloc(),
		InputOptions:           cfg.Input.Options,
		InputIgnoreAborts:      cfg.Input.IgnoreAborts,
		OutputName:             cfg.Output.Name,
		Output:                 outAlloc(),
		OutputOptions:          cfg.Output.Options,
		OutputJointTermination: cfg.Output.JointTermination && !cfg.IgnoreJointTermination,
		OutputIgnoreAborts:     cfg.Output.IgnoreAborts,
		RingSize:               cfg.RingSize,
		Log:                    log,
	}

	for _, ps := range cfg.Processors {
		procAlloc, err := plugin.Default.GetProcessor(ps.Name)
		if err != nil {
			return nil, err
		}
		spec.Processors = append(spec.Processors, pipeline.ProcessorStage{
			Name:             ps.Name,
			Plugin:           procAlloc(),
			Options:          ps.Options,
			JointTermination: ps.JointTermination && !cfg.IgnoreJointTermination,
		})
	}

	return pipeline.Build(spec)
}
