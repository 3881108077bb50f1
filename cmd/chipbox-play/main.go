package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/config"
	"github.com/vsariola/chipbox/oto"
	"github.com/vsariola/chipbox/samples"
	"github.com/vsariola/chipbox/stream"
	"github.com/vsariola/chipbox/synth"
	"github.com/vsariola/chipbox/version"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead. Only for .raw output.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, the export directory of the config, or the working directory.")
	play := flag.Bool("p", false, "Play the input songs (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered song as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered song as .wav file. By default, saves 24-bit samples.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	loop := flag.Bool("l", false, "Play the loop range of the songs until interrupted.")
	configPath := flag.String("config", "", "Config file to use. By default, chipbox/config.yml in the user config directory.")
	sampleDir := flag.String("samples", "", "Directory of .wav sample assets. Overrides the config.")
	sampleRate := flag.Int("rate", 0, "Sample rate. Overrides the config.")
	backend := flag.String("backend", "", "Audio backend: oto or portaudio. Overrides the config.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	if *sampleDir != "" {
		cfg.Samples = *sampleDir
	}
	if *sampleRate != 0 {
		cfg.Engine.SampleRate = *sampleRate
	}
	if *backend != "" {
		cfg.Output.Backend = *backend
	}
	if *directory != "" {
		cfg.Export.Directory = *directory
	}
	if *pcm {
		cfg.Export.PCM16 = true
	}
	cfg.Engine = cfg.Engine.Normalized()
	bank := samples.NewBank()
	if cfg.Samples != "" {
		if err := bank.LoadDir(cfg.Samples); err != nil {
			fmt.Fprintf(os.Stderr, "could not load samples: %v\n", err)
			os.Exit(1)
		}
	}
	files, err := inputFiles(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	retval := 0
	if *rawOut || *wavOut {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for _, file := range files {
			g.Go(func() error {
				err := export(file, cfg, bank, *rawOut, *wavOut, *stdout, logger)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
				}
				return err
			})
		}
		if g.Wait() != nil {
			retval = 1
		}
	}
	if *play {
		audioContext, err := newAudioContext(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire %v audio context: %v\n", cfg.Output.Backend, err)
			os.Exit(1)
		}
		for _, file := range files {
			if ctx.Err() != nil {
				break
			}
			if err := playFile(ctx, audioContext, file, cfg, bank, *loop, logger); err != nil {
				fmt.Fprintf(os.Stderr, "could not play file %v: %v\n", file, err)
				retval = 1
			}
		}
		audioContext.Close()
	}
	os.Exit(retval)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return config.Default(), nil
		}
		path = p
	}
	return config.Load(path)
}

func newAudioContext(cfg config.Config) (chipbox.AudioContext, error) {
	switch cfg.Output.Backend {
	case config.BackendOto:
		c, err := oto.NewContext(cfg.Engine.SampleRate, cfg.Output.BufferFrames)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendPortAudio:
		return newPortAudioContext(cfg.Engine.SampleRate, cfg.Output.BufferFrames)
	}
	return nil, fmt.Errorf("unknown audio backend %q", cfg.Output.Backend)
}

// inputFiles expands directories in the arguments to the song files in
// them.
func inputFiles(args []string) ([]string, error) {
	var ret []string
	for _, param := range args {
		param, err := homedir.Expand(param)
		if err != nil {
			return nil, fmt.Errorf("invalid path %v: %v", param, err)
		}
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			for _, pattern := range []string{"*.yml", "*.yaml", "*.json"} {
				files, err := filepath.Glob(filepath.Join(param, pattern))
				if err != nil {
					return nil, fmt.Errorf("could not glob the path %v for song files: %v", param, err)
				}
				ret = append(ret, files...)
			}
			continue
		}
		ret = append(ret, param)
	}
	return ret, nil
}

func readSong(filename string) (chipbox.Song, error) {
	inputBytes, err := os.ReadFile(filename)
	if err != nil {
		return chipbox.Song{}, fmt.Errorf("could not read file %v: %v", filename, err)
	}
	var song chipbox.Song
	if errJSON := json.Unmarshal(inputBytes, &song); errJSON != nil {
		if errYaml := yaml.Unmarshal(inputBytes, &song); errYaml != nil {
			return chipbox.Song{}, fmt.Errorf("the song could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	return song, nil
}

func export(filename string, cfg config.Config, bank *samples.Bank, rawOut, wavOut, stdout bool, logger *slog.Logger) error {
	song, err := readSong(filename)
	if err != nil {
		return err
	}
	check := song.Copy()
	diags, err := check.Validate()
	if err != nil {
		return err
	}
	for _, d := range diags {
		logger.Warn(d.Code.String(), "file", filename, "channel", d.Channel, "instrument", d.Instrument, "value", d.Value)
	}
	start := time.Now()
	buffer, err := synth.RenderWholeSong(song, cfg.Engine.SampleRate, cfg.Engine, bank)
	if err != nil {
		return err
	}
	logger.Info("rendered", "file", filename, "frames", len(buffer), "took", time.Since(start))
	output := func(extension string, write func(f *os.File) error) error {
		dir := cfg.Export.Directory
		if dir == "" {
			dir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
			}
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create output directory %v: %v", dir, err)
		}
		_, name := filepath.Split(filename)
		name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("could not create file: %v", err)
		}
		defer f.Close()
		if err := write(f); err != nil {
			return fmt.Errorf("could not write file %v: %v", f.Name(), err)
		}
		return nil
	}
	if rawOut {
		raw, err := buffer.Raw(cfg.Export.PCM16)
		if err != nil {
			return fmt.Errorf("could not generate .raw file: %v", err)
		}
		if stdout {
			if _, err := os.Stdout.Write(raw); err != nil {
				return err
			}
		} else if err := output(".raw", func(f *os.File) error { _, err := f.Write(raw); return err }); err != nil {
			return fmt.Errorf("error outputting .raw file: %v", err)
		}
	}
	if wavOut {
		if stdout {
			return fmt.Errorf(".wav output needs a file, it cannot be written to standard output")
		}
		if err := output(".wav", func(f *os.File) error {
			return stream.EncodeWAV(f, buffer, cfg.Engine.SampleRate, cfg.Export.PCM16)
		}); err != nil {
			return fmt.Errorf("error outputting .wav file: %v", err)
		}
	}
	return nil
}

func playFile(ctx context.Context, audioContext chipbox.AudioContext, filename string, cfg config.Config, bank *samples.Bank, loop bool, logger *slog.Logger) error {
	song, err := readSong(filename)
	if err != nil {
		return err
	}
	if !loop {
		song.Loop.Enabled = false
	} else if !song.Loop.Enabled {
		song.Loop = chipbox.Loop{Start: 0, End: song.Bars, Enabled: true}
	}
	engine, err := synth.NewEngine(song, cfg.Engine, bank)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go synth.LogDiagnostics(ctx, engine.Diagnostics(), logger.With("file", filename))
	if err := engine.Play(); err != nil {
		return err
	}
	playWaiter := audioContext.Play(engine.Source())
	done := make(chan struct{})
	go func() {
		playWaiter.Wait()
		close(done)
	}()
	showProgress := term.IsTerminal(int(os.Stderr.Fd()))
	for {
		select {
		case <-done:
			if showProgress {
				fmt.Fprintln(os.Stderr)
			}
			return nil
		case <-ctx.Done():
			playWaiter.Close()
			<-done
			if showProgress {
				fmt.Fprintln(os.Stderr)
			}
			return nil
		case n := <-engine.Notifications():
			if showProgress {
				fmt.Fprintf(os.Stderr, "\r%v  bar %3d tick %3d  level %5.1f dB ", filepath.Base(filename), n.Pos.Bar, n.Pos.Tick, decibels(max(n.Level[0], n.Level[1])))
			}
		}
	}
}

func decibels(level float32) float64 {
	if level <= 0 {
		return -99
	}
	return max(20*math.Log10(float64(level)), -99)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "chipbox command line utility for playing and rendering .yml/.json song files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
