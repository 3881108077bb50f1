package synth

type (
	// Config holds the engine settings that are not part of a song. A zero
	// field means its default, except for ExportTail, where zero means no
	// tail.
	Config struct {
		SampleRate int `yaml:",omitempty"`

		// FilterRampSamples is the longest time, in samples, that the channel
		// filters and effects take to move to a new setting. Voice filters
		// follow their envelopes over whole ticks instead.
		FilterRampSamples int `yaml:",omitempty"`

		// MinRelease is the shortest release fade, in seconds, applied when a
		// voice is released, so that note-offs and seeks never click.
		MinRelease float64 `yaml:",omitempty"`

		// MaxEchoSeconds is the longest echo delay supported. The echo buffers
		// of every channel are allocated for it when a song is prepared.
		MaxEchoSeconds float64 `yaml:",omitempty"`

		// MaxDelayFrames caps the size of one echo buffer. If MaxEchoSeconds
		// needs more, the echo is bypassed.
		MaxDelayFrames int `yaml:",omitempty"`

		// ExportTail is how long, in seconds, exports keep rendering the
		// release and effect tails after the song ends. At most
		// MaxTailSeconds.
		ExportTail     float64 `yaml:",omitempty"`
		MaxTailSeconds float64 `yaml:",omitempty"`

		// MeterDecay is the factor by which the level meter falls per
		// rendered block of MaxBlockSize frames.
		MeterDecay float64 `yaml:",omitempty"`
	}
)

const (
	DefaultSampleRate = 44100
	MinSampleRate     = 8000
	MaxSampleRate     = 192000

	// MaxBlockSize is the largest number of frames the engine renders at
	// once internally. Longer requests are split.
	MaxBlockSize = 256
)

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:        DefaultSampleRate,
		FilterRampSamples: 64,
		MinRelease:        0.005,
		MaxEchoSeconds:    1,
		MaxDelayFrames:    1 << 18,
		ExportTail:        1,
		MaxTailSeconds:    10,
		MeterDecay:        0.95,
	}
}

// Normalized returns the config with zero fields replaced by their defaults
// and every field clamped into its valid range.
func (c Config) Normalized() Config {
	d := DefaultConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	c.SampleRate = min(max(c.SampleRate, MinSampleRate), MaxSampleRate)
	if c.FilterRampSamples <= 0 {
		c.FilterRampSamples = d.FilterRampSamples
	}
	if c.MinRelease <= 0 {
		c.MinRelease = d.MinRelease
	}
	if c.MaxEchoSeconds <= 0 {
		c.MaxEchoSeconds = d.MaxEchoSeconds
	}
	if c.MaxDelayFrames <= 0 {
		c.MaxDelayFrames = d.MaxDelayFrames
	}
	if c.MaxTailSeconds <= 0 {
		c.MaxTailSeconds = d.MaxTailSeconds
	}
	c.ExportTail = min(max(c.ExportTail, 0), c.MaxTailSeconds)
	if c.MeterDecay <= 0 || c.MeterDecay >= 1 {
		c.MeterDecay = d.MeterDecay
	}
	return c
}
