package chipbox

type (
	// Channel is one lane of the song. Each channel has its own patterns
	// and instruments, so a pattern can only use instruments of the channel
	// it belongs to. Order tells which pattern plays in which bar.
	Channel struct {
		Name   string      `yaml:",omitempty"`
		Type   ChannelType `yaml:",omitempty"`
		Muted  bool        `yaml:",omitempty"`
		Solo   bool        `yaml:",omitempty"`
		Octave int         `yaml:",omitempty"` // transposes every note of the channel by octaves

		Order       Order        `yaml:",flow"`
		Patterns    []Pattern    `yaml:",omitempty"`
		Instruments []Instrument `yaml:",omitempty"`

		// Mods lists the targets of a mod channel; a note with pitch p in a
		// mod channel drives Mods[p].
		Mods []ModSetting `yaml:",omitempty"`
	}

	ChannelType int

	// Order is the pattern order of a channel, in practice just a slice of
	// integers, but provides convenience functions that return -1 values for
	// indices out of bounds of the array, and functions to increase the size
	// of the slice only by necessary amount when a new item is added,
	// filling the unused slots with -1s.
	Order []int

	// Pattern is a bar worth of notes. Instruments lists which of the
	// channel's instruments play the notes; an empty list means the first
	// instrument.
	Pattern struct {
		Instruments []int  `yaml:",flow,omitempty"`
		Notes       []Note `yaml:",omitempty"`
	}

	// Note is a note or a chord in a pattern. Start and Duration are in
	// ticks relative to the start of the bar. Pins shape the note over its
	// duration; with no pins the note has a steady value of 1 and no bend.
	//
	// Tie continues the voice of the note that ends where this one starts
	// instead of starting a new one. Slide also glides the pitch from the
	// previous note.
	Note struct {
		Start    int
		Duration int
		Pitches  []int `yaml:",flow"`
		Pins     []Pin `yaml:",flow,omitempty"`
		Tie      bool  `yaml:",omitempty"`
		Slide    bool  `yaml:",omitempty"`
	}

	// Pin is a breakpoint of a note's piecewise-linear shape. Tick is an
	// offset from the start of the note, Value is normalized to [0, 1] and
	// Interval bends the pitch, in semitones.
	Pin struct {
		Tick     int
		Value    float64
		Interval float64 `yaml:",omitempty"`
	}

	// ModSetting is the target of a mod channel row. Channel -1 targets a
	// song parameter; Instrument -1 targets every instrument of the
	// channel.
	ModSetting struct {
		Channel    int
		Instrument int
		Parameter  ParameterID
		Mode       ModMode `yaml:",omitempty"`
	}

	ModMode int
)

const (
	PitchChannel ChannelType = iota
	NoiseChannel
	ModChannel
)

const (
	// ModOverwrite replaces the value of the parameter.
	ModOverwrite ModMode = iota
	// ModMultiply scales the value the instrument and its envelopes produce.
	ModMultiply
)

// MaxChordSize is the maximum number of pitches in one note.
const MaxChordSize = 4

var channelTypeNames = []string{"pitch", "noise", "mod"}
var modModeNames = []string{"overwrite", "multiply"}

func (t ChannelType) String() string { return enumName(channelTypeNames, int(t)) }

func (t ChannelType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ChannelType) UnmarshalText(text []byte) error {
	return enumParse(channelTypeNames, "channel type", text, (*int)(t))
}

func (m ModMode) String() string { return enumName(modModeNames, int(m)) }

func (m ModMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ModMode) UnmarshalText(text []byte) error {
	return enumParse(modModeNames, "mod mode", text, (*int)(m))
}

// Get returns the value at index; or -1 is the index is out of range
func (s Order) Get(index int) int {
	if index < 0 || index >= len(s) {
		return -1
	}
	return s[index]
}

// Set sets the value at index; appending -1s until the slice is long enough.
func (s *Order) Set(index, value int) {
	for len(*s) <= index {
		*s = append(*s, -1)
	}
	(*s)[index] = value
}

// PatternAt returns the pattern playing in the given bar. ok is false for an
// empty bar; valid is false when the order points to a pattern that does not
// exist, which the engine plays as silence.
func (c *Channel) PatternAt(bar int) (pattern *Pattern, index int, ok bool, valid bool) {
	index = c.Order.Get(bar)
	if index < 0 {
		return nil, index, false, true
	}
	if index >= len(c.Patterns) {
		return nil, index, false, false
	}
	return &c.Patterns[index], index, true, true
}

// InstrumentIndex returns the index of the k:th instrument of the pattern,
// k wrapping over the list. A pattern with no instruments uses instrument 0.
func (p *Pattern) InstrumentIndex(k int) int {
	if len(p.Instruments) == 0 {
		return 0
	}
	return p.Instruments[k%len(p.Instruments)]
}

// End returns the tick where the note ends, relative to the bar.
func (n *Note) End() int {
	return n.Start + n.Duration
}

// Copy makes a deep copy of a Channel.
func (c *Channel) Copy() Channel {
	ret := *c
	ret.Order = append(Order(nil), c.Order...)
	ret.Mods = append([]ModSetting(nil), c.Mods...)
	ret.Patterns = make([]Pattern, len(c.Patterns))
	for i := range c.Patterns {
		ret.Patterns[i] = c.Patterns[i].Copy()
	}
	ret.Instruments = make([]Instrument, len(c.Instruments))
	for i := range c.Instruments {
		ret.Instruments[i] = c.Instruments[i].Copy()
	}
	return ret
}

// Copy makes a deep copy of a Pattern.
func (p *Pattern) Copy() Pattern {
	ret := Pattern{Instruments: append([]int(nil), p.Instruments...)}
	ret.Notes = make([]Note, len(p.Notes))
	for i, n := range p.Notes {
		n.Pitches = append([]int(nil), n.Pitches...)
		n.Pins = append([]Pin(nil), n.Pins...)
		ret.Notes[i] = n
	}
	return ret
}
