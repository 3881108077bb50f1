// Package config reads and writes the settings of the chipbox tools.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/mitchellh/go-homedir"
	"github.com/vsariola/chipbox/synth"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Engine synth.Config
		Output Output
		Export Export
		// Samples is the directory the sample assets are loaded from.
		Samples string `yaml:",omitempty"`
	}

	// Output selects the live audio backend. BufferFrames is the size of
	// the buffers asked from the backend; zero lets the backend choose.
	Output struct {
		Backend      string
		BufferFrames int `yaml:",omitempty"`
	}

	// Export controls where and how songs are rendered to files.
	Export struct {
		Directory string `yaml:",omitempty"`
		PCM16     bool   `yaml:",omitempty"`
	}
)

const (
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
)

// Default returns the default settings.
func Default() Config {
	return Config{
		Engine: synth.DefaultConfig(),
		Output: Output{Backend: BackendOto},
	}
}

// Path returns the location of the user's config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("cannot find the config directory"))
	}
	return filepath.Join(dir, "chipbox", "config.yml"), nil
}

// Load reads the config file at path over the defaults, so the file only
// needs to list what it changes. A missing file gives the defaults. The
// directories in the config have a leading ~ expanded.
func Load(path string) (Config, error) {
	c := Default()
	path, err := homedir.Expand(path)
	if err != nil {
		return c, fault.Wrap(err, fmsg.With("invalid config path"), ftag.With(ftag.InvalidArgument))
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fault.Wrap(err, fmsg.With("cannot read config"))
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Default(), fault.Wrap(err, fmsg.With("cannot parse config "+path), ftag.With(ftag.InvalidArgument))
	}
	if c.Export.Directory, err = homedir.Expand(c.Export.Directory); err != nil {
		return Default(), fault.Wrap(err, fmsg.With("invalid export directory"), ftag.With(ftag.InvalidArgument))
	}
	if c.Samples, err = homedir.Expand(c.Samples); err != nil {
		return Default(), fault.Wrap(err, fmsg.With("invalid sample directory"), ftag.With(ftag.InvalidArgument))
	}
	switch c.Output.Backend {
	case BackendOto, BackendPortAudio:
	default:
		return Default(), fault.New("unknown audio backend "+c.Output.Backend, fmsg.With("invalid config"), ftag.With(ftag.InvalidArgument))
	}
	c.Engine = c.Engine.Normalized()
	return c, nil
}

// Save writes the config to path, creating the directory if needed.
func Save(path string, c Config) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("invalid config path"), ftag.With(ftag.InvalidArgument))
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return fault.Wrap(err, fmsg.With("cannot encode config"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("cannot create config directory"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("cannot write config"))
	}
	return nil
}
