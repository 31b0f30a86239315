package config

import "testing"

func TestValidateDefaultsRingSize(t *testing.T) {
	c := &Config{
		Input:  PluginSpec{Name: "file"},
		Output: PluginSpec{Name: "udp"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.RingSize != DefaultRingSize {
		t.Errorf("RingSize = %d, want %d", c.RingSize, DefaultRingSize)
	}
}

func TestValidateRejectsMissingInput(t *testing.T) {
	c := &Config{Output: PluginSpec{Name: "udp"}}
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing Input.Name")
	}
}

func TestValidateRejectsMissingOutput(t *testing.T) {
	c := &Config{Input: PluginSpec{Name: "file"}}
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing Output.Name")
	}
}

func TestValidateRejectsUnnamedProcessor(t *testing.T) {
	c := &Config{
		Input:      PluginSpec{Name: "file"},
		Output:     PluginSpec{Name: "udp"},
		Processors: []PluginSpec{{Name: "pidfilter"}, {}},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for a processor with no name")
	}
}

func TestValidateRejectsTinyRingSize(t *testing.T) {
	c := &Config{
		Input:    PluginSpec{Name: "file"},
		Output:   PluginSpec{Name: "udp"},
		RingSize: 1,
	}
	if err := c.Validate(); err == nil {
		t.Error("expected error for RingSize < 2")
	}
}
