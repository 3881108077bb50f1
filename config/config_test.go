package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/vsariola/chipbox/config"
	"github.com/vsariola/chipbox/synth"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "nothing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c != config.Default() {
		t.Fatalf("expected the defaults, got %+v", c)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
engine:
  samplerate: 48000
  exporttail: 2.5
output:
  backend: portaudio
export:
  directory: ~/renders
  pcm16: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Engine.SampleRate != 48000 || c.Engine.ExportTail != 2.5 {
		t.Errorf("engine settings not read: %+v", c.Engine)
	}
	if c.Engine.MinRelease != synth.DefaultConfig().MinRelease {
		t.Errorf("unset engine settings should keep their defaults: %+v", c.Engine)
	}
	if c.Output.Backend != config.BackendPortAudio || !c.Export.PCM16 {
		t.Errorf("output settings not read: %+v", c)
	}
	home, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if c.Export.Directory != filepath.Join(home, "renders") {
		t.Errorf("~ not expanded: %v", c.Export.Directory)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"syntax":  "engine: [1, 2",
		"backend": "output: {backend: jack}",
	} {
		path := filepath.Join(dir, name+".yml")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := config.Load(path); err == nil {
			t.Errorf("%v: expected an error", name)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yml")
	c := config.Default()
	c.Engine.SampleRate = 96000
	c.Output.BufferFrames = 512
	if err := config.Save(path, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != c {
		t.Fatalf("got %+v, expected %+v", got, c)
	}
}
