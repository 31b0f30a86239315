/*
NAME
  file.go

DESCRIPTION
  File-backed input and output plugins: the simplest possible
  implementation of plugin.Input / plugin.Output, reading or writing raw
  188-byte packets sequentially from or to a path on disk.

  Grounded on device/file/file.go's AVFile (an os.File wrapped behind a
  mutex, a "set" flag gating Start until configured, and an optional loop
  mode), adapted from AVDevice's io.Reader contract to plugin.Input's
  batch Receive and from nothing (the teacher has no generic file
  output device; revid's file sender is output-format specific) to
  plugin.Output's batch Send, built in the same style.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package builtin

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ausocean/tsp/internal/plugin"
	"github.com/ausocean/tsp/internal/tspacket"
)

func init() {
	plugin.Default.RegisterInput("file", func() plugin.Input { return &FileInput{} })
	plugin.Default.RegisterOutput("file", func() plugin.Output { return &FileOutput{} })
}

// FileInput reads packets sequentially from a file named by its
// "path" option, optionally restarting from the beginning when the
// "loop" option is present.
type FileInput struct {
	mu   sync.Mutex
	path string
	loop bool
	f    *os.File
}

// NewFileInput returns a FileInput configured directly, bypassing
// SetOptions; useful for tests and for embedding in other plugins.
func NewFileInput(path string, loop bool) *FileInput {
	return &FileInput{path: path, loop: loop}
}

// SetOptions parses "path=..." and an optional bare "loop" flag from a
// comma-separated options string; see parseOptions.
func (in *FileInput) SetOptions(s string) {
	opts := parseOptions(s)
	in.path = opts["path"]
	_, in.loop = opts["loop"]
}

func (in *FileInput) Start() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.path == "" {
		return fmt.Errorf("builtin: FileInput requires a path option")
	}
	f, err := os.Open(in.path)
	if err != nil {
		return fmt.Errorf("builtin: opening %s: %w", in.path, err)
	}
	in.f = f
	return nil
}

func (in *FileInput) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.f == nil {
		return nil
	}
	err := in.f.Close()
	in.f = nil
	return err
}

// Receive fills buf with whole packets read from the file, restarting
// from the beginning if loop is set and the end of the file is reached;
// a trailing partial packet is discarded in either case. It returns
// io.EOF once the file is exhausted and loop is not set.
func (in *FileInput) Receive(buf []tspacket.Packet) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.f == nil {
		return 0, fmt.Errorf("builtin: FileInput.Receive called before Start")
	}
	for i := range buf {
		_, err := io.ReadFull(in.f, buf[i][:])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if !in.loop {
				return i, io.EOF
			}
			if _, serr := in.f.Seek(0, io.SeekStart); serr != nil {
				return i, fmt.Errorf("builtin: restarting loop: %w", serr)
			}
			_, err = io.ReadFull(in.f, buf[i][:])
		}
		if err != nil {
			return i, fmt.Errorf("builtin: reading packet %d: %w", i, err)
		}
		if verr := buf[i].Validate(); verr != nil {
			return i, verr
		}
	}
	return len(buf), nil
}

// FileOutput writes packets sequentially to a file named by its "path"
// option, creating it if necessary; Start truncates any existing content.
type FileOutput struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileOutput returns a FileOutput configured directly.
func NewFileOutput(path string) *FileOutput { return &FileOutput{path: path} }

func (out *FileOutput) SetOptions(s string) {
	out.path = parseOptions(s)["path"]
}

func (out *FileOutput) Start() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.path == "" {
		return fmt.Errorf("builtin: FileOutput requires a path option")
	}
	f, err := os.OpenFile(out.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("builtin: creating %s: %w", out.path, err)
	}
	out.f = f
	return nil
}

func (out *FileOutput) Stop() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.f == nil {
		return nil
	}
	err := out.f.Close()
	out.f = nil
	return err
}

// Send writes count packets from buf to the file. It always reports
// true: a FileOutput has no notion of its own natural end.
func (out *FileOutput) Send(buf []tspacket.Packet, count int) (bool, error) {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.f == nil {
		return false, fmt.Errorf("builtin: FileOutput.Send called before Start")
	}
	for i := 0; i < count; i++ {
		if _, err := out.f.Write(buf[i][:]); err != nil {
			return false, fmt.Errorf("builtin: writing packet %d: %w", i, err)
		}
	}
	return true, nil
}
