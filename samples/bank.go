// Package samples holds the sample assets that pitched-sample and drumset
// instruments refer to by name.
package samples

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"
)

type (
	// Bank is a set of named mono samples. It is safe to use from several
	// goroutines; the engine only reads it when a song is prepared.
	Bank struct {
		mu      sync.RWMutex
		samples map[string]Sample
	}

	// Sample is decoded mono audio in [-1, 1] with its native rate.
	Sample struct {
		Data       []float32
		SampleRate int
	}
)

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{samples: map[string]Sample{}}
}

// Add stores a sample under the name, replacing any previous one.
func (b *Bank) Add(name string, s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[name] = s
}

// Sample returns the sample with the given name.
func (b *Bank) Sample(name string) (data []float32, sampleRate int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.samples[name]
	return s.Data, s.SampleRate, ok
}

// Names returns the names of the samples in the bank, sorted.
func (b *Bank) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ret := make([]string, 0, len(b.samples))
	for name := range b.samples {
		ret = append(ret, name)
	}
	slices.Sort(ret)
	return ret
}

// LoadDir decodes every .wav file in the directory into the bank, naming
// each sample after its file name without the extension. The files are
// decoded in parallel. A leading ~ in dir is expanded to the home directory.
func (b *Bank) LoadDir(dir string) error {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return fault.Wrap(err, fmsg.With("invalid sample directory"))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fault.Wrap(err, fmsg.With("cannot read sample directory"), ftag.With(ftag.NotFound))
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		e := e // per-iteration copy; the module targets go 1.21 loop semantics
		g.Go(func() error {
			s, err := LoadFile(path)
			if err != nil {
				return err
			}
			b.Add(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), s)
			return nil
		})
	}
	return g.Wait()
}
