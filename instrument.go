package chipbox

type (
	// Instrument describes how the notes of a channel are synthesized. Type
	// selects the voice generator; the generator-specific fields are only
	// read by the matching type. Volume is in decibels; Attack and Release
	// are fades in seconds.
	Instrument struct {
		Name    string         `yaml:",omitempty"`
		Type    InstrumentType `yaml:",omitempty"`
		Volume  float64        `yaml:",omitempty"`
		Attack  float64        `yaml:",omitempty"`
		Release float64        `yaml:",omitempty"`

		Chord         ChordMode `yaml:",omitempty"`
		ArpeggioSpeed float64   `yaml:",omitempty"`
		SlideTicks    int       `yaml:",omitempty"`
		Detune        float64   `yaml:",omitempty"` // cents

		ChipWave   string         `yaml:",omitempty"`
		CustomWave []float64      `yaml:",flow,omitempty"`
		Harmonics  []float64      `yaml:",flow,omitempty"`
		Spectrum   []float64      `yaml:",flow,omitempty"`
		NoiseWave  string         `yaml:",omitempty"`
		PulseWidth float64        `yaml:",omitempty"`
		FM         FM             `yaml:",omitempty"`
		Sample     SampleSettings `yaml:",omitempty"`
		Drums      []Drum         `yaml:",omitempty"`

		Unison  Unison  `yaml:",omitempty"`
		Vibrato Vibrato `yaml:",omitempty"`

		Envelopes []EnvelopeSettings `yaml:",omitempty"`

		// EQFilter is applied to the whole instrument output; NoteFilter to
		// each voice, following the pitch by KeyTracking (0 = fixed, 1 =
		// full tracking around middle C). The shifts move all stages of a
		// chain by octaves.
		EQFilter        []FilterStage `yaml:",omitempty"`
		NoteFilter      []FilterStage `yaml:",omitempty"`
		EQFilterShift   float64       `yaml:",omitempty"`
		NoteFilterShift float64       `yaml:",omitempty"`
		KeyTracking     float64       `yaml:",omitempty"`

		Effects Effects `yaml:",omitempty"`
	}

	InstrumentType int
	ChordMode      int

	// FM is a four operator FM voice. Algorithm selects how the operators
	// modulate each other; FeedbackType which operator feeds back to
	// itself.
	FM struct {
		Algorithm    int         `yaml:",omitempty"`
		FeedbackType int         `yaml:",omitempty"`
		Feedback     float64     `yaml:",omitempty"`
		Operators    [4]Operator `yaml:",flow"`
	}

	Operator struct {
		Ratio     float64
		Amplitude float64
		Waveform  string `yaml:",omitempty"`
	}

	// SampleSettings refers to a sample asset by name. RootPitch is the
	// pitch at which the sample plays at its native rate.
	SampleSettings struct {
		Name      string `yaml:",omitempty"`
		RootPitch int    `yaml:",omitempty"`
		Loop      bool   `yaml:",omitempty"`
		LoopStart int    `yaml:",omitempty"`
		LoopEnd   int    `yaml:",omitempty"`
	}

	// Drum is one pitch of a drumset: either shaped noise or a one-shot
	// sample, decaying exponentially with the time constant Decay.
	Drum struct {
		Spectrum []float64 `yaml:",flow,omitempty"`
		Decay    float64   `yaml:",omitempty"`
		Sample   string    `yaml:",omitempty"`
	}

	// Unison stacks detuned copies of every tone. Spread is the distance
	// between the outermost copies and Offset shifts all of them, both in
	// semitones. Sign is the polarity of the second copy.
	Unison struct {
		Voices     int     `yaml:",omitempty"`
		Spread     float64 `yaml:",omitempty"`
		Offset     float64 `yaml:",omitempty"`
		Expression float64 `yaml:",omitempty"`
		Sign       float64 `yaml:",omitempty"`
	}

	// Vibrato is a sine pitch LFO. Depth is in semitones, Speed in Hz and
	// Delay in seconds from the start of the note.
	Vibrato struct {
		Depth float64 `yaml:",omitempty"`
		Speed float64 `yaml:",omitempty"`
		Delay float64 `yaml:",omitempty"`
	}

	// EnvelopeSettings assigns an envelope curve to a target parameter. The
	// curve output in [0, 1] is mapped onto [Start, End]. Index selects the
	// filter stage or the FM operator for targets that have several;
	// -1 means all of them.
	EnvelopeSettings struct {
		Target ParameterID
		Index  int           `yaml:",omitempty"`
		Curve  EnvelopeCurve `yaml:",omitempty"`
		Speed  float64       `yaml:",omitempty"`
		Start  float64       `yaml:",omitempty"`
		End    float64       `yaml:",omitempty"`
	}

	EnvelopeCurve int

	// FilterStage is one stage of a filter chain. Resonance is the Q of the
	// two-pole stages; Gain is the boost or cut of a peak stage, in dB.
	FilterStage struct {
		Type      FilterType
		Frequency float64
		Resonance float64 `yaml:",omitempty"`
		Gain      float64 `yaml:",omitempty"`
	}

	FilterType int

	// Effects are the per-instrument effect settings. Every effect is
	// bypassed at zero. Pan and StereoWidth are in [-1, 1] with 0 meaning
	// center and unchanged width; EchoDelay is in seconds.
	Effects struct {
		Distortion     float64 `yaml:",omitempty"`
		Chorus         float64 `yaml:",omitempty"`
		Bitcrusher     float64 `yaml:",omitempty"`
		BitcrusherHold float64 `yaml:",omitempty"`
		RingMod        float64 `yaml:",omitempty"`
		RingModHz      float64 `yaml:",omitempty"`
		Pan            float64 `yaml:",omitempty"`
		StereoWidth    float64 `yaml:",omitempty"`
		EchoDelay      float64 `yaml:",omitempty"`
		EchoFeedback   float64 `yaml:",omitempty"`
		EchoMix        float64 `yaml:",omitempty"`
		Reverb         float64 `yaml:",omitempty"`
	}

	// InstrumentTypeInfo documents an instrument type: its name and which
	// parameters it takes.
	InstrumentTypeInfo struct {
		Name       string
		Parameters []ParameterID
	}
)

const (
	ChipWave InstrumentType = iota
	CustomChipWave
	FMSynth
	Harmonics
	Spectrum
	PitchedSample
	Drumset
	PWM
	Noise
	NumInstrumentTypes
)

const (
	Simultaneous ChordMode = iota
	Strum
	Arpeggio
)

const (
	CurveNoteSize EnvelopeCurve = iota
	CurveSteady
	CurvePunch
	CurveFlare
	CurveTwang
	CurveSwell
	CurveDecay
	CurveTriangle
	CurveSine
	NumEnvelopeCurves
)

const (
	LowPass FilterType = iota
	HighPass
	BandPass
	Peak
	LowPass1
	HighPass1
)

const (
	MaxUnisonVoices   = 4
	MaxFilterStages   = 8
	MaxEnvelopes      = 12
	NumFMAlgorithms   = 12
	NumFMFeedbacks    = 5
	CustomWaveLength  = 64
	NumHarmonics      = 28
	NumSpectrumBands  = 30
	MaxDrums          = 12
	DefaultSlideTicks = 3
)

// ChipWaves lists the built-in chip waveforms by name.
var ChipWaves = []string{"rounded", "triangle", "square", "pulse4", "pulse8", "sawtooth", "doublesaw", "doublepulse", "spiky", "sine"}

// NoiseWaves lists the built-in noise waveforms by name.
var NoiseWaves = []string{"retro", "white", "clang", "buzz", "hollow"}

// OperatorWaveforms lists the FM operator waveforms by name.
var OperatorWaveforms = []string{"sine", "triangle", "sawtooth", "square"}

var instrumentTypeNames = []string{"chip", "customchip", "fm", "harmonics", "spectrum", "sample", "drumset", "pwm", "noise"}
var chordModeNames = []string{"simultaneous", "strum", "arpeggio"}
var curveNames = []string{"notesize", "steady", "punch", "flare", "twang", "swell", "decay", "triangle", "sine"}
var filterTypeNames = []string{"lowpass", "highpass", "bandpass", "peak", "lowpass1", "highpass1"}

var commonParameters = []ParameterID{
	ParamVolume, ParamPan, ParamDistortion, ParamChorus, ParamBitcrusher,
	ParamBitcrusherHold, ParamRingMod, ParamRingModHz, ParamEchoDelay,
	ParamEchoFeedback, ParamEchoMix, ParamReverb, ParamStereoWidth,
	ParamEQFilterCutoff, ParamNoteFilterCutoff, ParamDetune, ParamVibratoDepth,
	ParamArpeggioSpeed,
}

func withCommon(ids ...ParameterID) []ParameterID {
	return append(append([]ParameterID(nil), commonParameters...), ids...)
}

// InstrumentTypes documents all the instrument types.
var InstrumentTypes = [NumInstrumentTypes]InstrumentTypeInfo{
	ChipWave:       {Name: "chip", Parameters: withCommon()},
	CustomChipWave: {Name: "customchip", Parameters: withCommon()},
	FMSynth:        {Name: "fm", Parameters: withCommon(ParamFMFeedback, ParamOperatorAmplitude)},
	Harmonics:      {Name: "harmonics", Parameters: withCommon()},
	Spectrum:       {Name: "spectrum", Parameters: withCommon()},
	PitchedSample:  {Name: "sample", Parameters: withCommon()},
	Drumset:        {Name: "drumset", Parameters: withCommon()},
	PWM:            {Name: "pwm", Parameters: withCommon(ParamPulseWidth)},
	Noise:          {Name: "noise", Parameters: withCommon()},
}

func (t InstrumentType) String() string { return enumName(instrumentTypeNames, int(t)) }

func (t InstrumentType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *InstrumentType) UnmarshalText(text []byte) error {
	return enumParse(instrumentTypeNames, "instrument type", text, (*int)(t))
}

// HasParameter reports whether instruments of the type take the parameter.
func (t InstrumentType) HasParameter(id ParameterID) bool {
	if t < 0 || t >= NumInstrumentTypes {
		return false
	}
	for _, p := range InstrumentTypes[t].Parameters {
		if p == id {
			return true
		}
	}
	return id == ParamPitch
}

func (c ChordMode) String() string { return enumName(chordModeNames, int(c)) }

func (c ChordMode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ChordMode) UnmarshalText(text []byte) error {
	return enumParse(chordModeNames, "chord mode", text, (*int)(c))
}

func (c EnvelopeCurve) String() string { return enumName(curveNames, int(c)) }

func (c EnvelopeCurve) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *EnvelopeCurve) UnmarshalText(text []byte) error {
	return enumParse(curveNames, "envelope curve", text, (*int)(c))
}

func (f FilterType) String() string { return enumName(filterTypeNames, int(f)) }

func (f FilterType) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FilterType) UnmarshalText(text []byte) error {
	return enumParse(filterTypeNames, "filter type", text, (*int)(f))
}

// DefaultInstrument returns a playable instrument of the given type.
func DefaultInstrument(t InstrumentType) Instrument {
	ret := Instrument{
		Type:          t,
		Release:       0.05,
		ArpeggioSpeed: 1,
		SlideTicks:    DefaultSlideTicks,
		Unison:        Unison{Voices: 1, Expression: 1, Sign: 1},
		Envelopes:     []EnvelopeSettings{{Target: ParamVolume, Curve: CurveNoteSize, Speed: 1, Start: 0, End: 1}},
	}
	switch t {
	case ChipWave:
		ret.ChipWave = "square"
	case CustomChipWave:
		ret.CustomWave = make([]float64, CustomWaveLength)
		for i := range ret.CustomWave {
			ret.CustomWave[i] = 1 - 2*float64(i)/CustomWaveLength
		}
	case FMSynth:
		ret.FM = FM{Algorithm: 0, Operators: [4]Operator{{Ratio: 1, Amplitude: 1}, {Ratio: 1, Amplitude: 0.5}, {Ratio: 2}, {Ratio: 3}}}
	case Harmonics:
		ret.Harmonics = make([]float64, NumHarmonics)
		for i := range ret.Harmonics {
			ret.Harmonics[i] = 1 / float64(i+1)
		}
	case Spectrum:
		ret.Spectrum = make([]float64, NumSpectrumBands)
		for i := range ret.Spectrum {
			ret.Spectrum[i] = 0.5
		}
	case PitchedSample:
		ret.Sample = SampleSettings{RootPitch: 60}
	case Drumset:
		ret.Drums = []Drum{{Spectrum: []float64{1, 1, 0.5, 0.25}, Decay: 0.2}}
	case PWM:
		ret.PulseWidth = 0.5
	case Noise:
		ret.NoiseWave = "retro"
	}
	return ret
}

// Copy makes a deep copy of an Instrument.
func (instr *Instrument) Copy() Instrument {
	ret := *instr
	ret.CustomWave = append([]float64(nil), instr.CustomWave...)
	ret.Harmonics = append([]float64(nil), instr.Harmonics...)
	ret.Spectrum = append([]float64(nil), instr.Spectrum...)
	ret.Envelopes = append([]EnvelopeSettings(nil), instr.Envelopes...)
	ret.EQFilter = append([]FilterStage(nil), instr.EQFilter...)
	ret.NoteFilter = append([]FilterStage(nil), instr.NoteFilter...)
	ret.Drums = make([]Drum, len(instr.Drums))
	for i, d := range instr.Drums {
		d.Spectrum = append([]float64(nil), d.Spectrum...)
		ret.Drums[i] = d
	}
	return ret
}

// validate clamps the instrument in place. Fields left at their zero value
// where zero makes no sense get their defaults silently.
func (instr *Instrument) validate(report func(code DiagnosticCode, value float64)) {
	if instr.Type < 0 || instr.Type >= NumInstrumentTypes {
		report(DiagUnknownWave, float64(instr.Type))
		instr.Type = ChipWave
	}
	if instr.ArpeggioSpeed == 0 {
		instr.ArpeggioSpeed = 1
	}
	if instr.SlideTicks <= 0 {
		instr.SlideTicks = DefaultSlideTicks
	}
	if instr.Unison.Voices == 0 {
		instr.Unison.Voices = 1
	}
	if instr.Unison.Expression == 0 {
		instr.Unison.Expression = 1
	}
	if instr.Unison.Sign == 0 {
		instr.Unison.Sign = 1
	}
	if instr.Unison.Voices < 1 || instr.Unison.Voices > MaxUnisonVoices {
		report(DiagParameterClamped, float64(instr.Unison.Voices))
		instr.Unison.Voices = clampInt(instr.Unison.Voices, 1, MaxUnisonVoices)
	}
	if instr.Attack < 0 || instr.Release < 0 {
		report(DiagParameterClamped, min(instr.Attack, instr.Release))
		instr.Attack = max(instr.Attack, 0)
		instr.Release = max(instr.Release, 0)
	}
	if instr.Chord < Simultaneous || instr.Chord > Arpeggio {
		report(DiagParameterClamped, float64(instr.Chord))
		instr.Chord = Simultaneous
	}
	switch instr.Type {
	case ChipWave:
		if indexOf(ChipWaves, instr.ChipWave) < 0 {
			report(DiagUnknownWave, 0)
			instr.ChipWave = ChipWaves[0]
		}
	case Noise:
		if indexOf(NoiseWaves, instr.NoiseWave) < 0 {
			report(DiagUnknownWave, 0)
			instr.NoiseWave = NoiseWaves[0]
		}
	case FMSynth:
		if instr.FM.Algorithm < 0 || instr.FM.Algorithm >= NumFMAlgorithms {
			report(DiagParameterClamped, float64(instr.FM.Algorithm))
			instr.FM.Algorithm = clampInt(instr.FM.Algorithm, 0, NumFMAlgorithms-1)
		}
		if instr.FM.FeedbackType < 0 || instr.FM.FeedbackType >= NumFMFeedbacks {
			report(DiagParameterClamped, float64(instr.FM.FeedbackType))
			instr.FM.FeedbackType = clampInt(instr.FM.FeedbackType, 0, NumFMFeedbacks-1)
		}
		for i := range instr.FM.Operators {
			op := &instr.FM.Operators[i]
			if op.Ratio == 0 {
				op.Ratio = 1
			}
			if op.Waveform != "" && indexOf(OperatorWaveforms, op.Waveform) < 0 {
				report(DiagUnknownWave, float64(i))
				op.Waveform = ""
			}
		}
	case CustomChipWave:
		if len(instr.CustomWave) == 0 {
			instr.CustomWave = DefaultInstrument(CustomChipWave).CustomWave
		}
	case Harmonics:
		if len(instr.Harmonics) == 0 {
			instr.Harmonics = DefaultInstrument(Harmonics).Harmonics
		}
		if len(instr.Harmonics) > NumHarmonics {
			report(DiagParameterClamped, float64(len(instr.Harmonics)))
			instr.Harmonics = instr.Harmonics[:NumHarmonics]
		}
	case Spectrum:
		if len(instr.Spectrum) == 0 {
			instr.Spectrum = DefaultInstrument(Spectrum).Spectrum
		}
		if len(instr.Spectrum) > NumSpectrumBands {
			report(DiagParameterClamped, float64(len(instr.Spectrum)))
			instr.Spectrum = instr.Spectrum[:NumSpectrumBands]
		}
	case PitchedSample:
		if instr.Sample.RootPitch == 0 {
			instr.Sample.RootPitch = 60
		}
	case Drumset:
		if len(instr.Drums) == 0 {
			instr.Drums = DefaultInstrument(Drumset).Drums
		}
		if len(instr.Drums) > MaxDrums {
			report(DiagParameterClamped, float64(len(instr.Drums)))
			instr.Drums = instr.Drums[:MaxDrums]
		}
	case PWM:
		if instr.PulseWidth == 0 {
			instr.PulseWidth = 0.5
		}
	}
	for _, id := range InstrumentTypes[instr.Type].Parameters {
		if id == ParamOperatorAmplitude {
			continue
		}
		v, _ := instr.Parameter(id)
		info := Parameters[id]
		if v < info.Min || v > info.Max {
			report(DiagParameterClamped, v)
			instr.SetParameter(id, v)
		}
	}
	if len(instr.Envelopes) > MaxEnvelopes {
		report(DiagParameterClamped, float64(len(instr.Envelopes)))
		instr.Envelopes = instr.Envelopes[:MaxEnvelopes]
	}
	for i := range instr.Envelopes {
		env := &instr.Envelopes[i]
		if !env.Target.Valid() || !Parameters[env.Target].CanEnvelope || !instr.Type.HasParameter(env.Target) {
			report(DiagParameterClamped, float64(env.Target))
			env.Target = ParamVolume
		}
		if env.Curve < 0 || env.Curve >= NumEnvelopeCurves {
			report(DiagParameterClamped, float64(env.Curve))
			env.Curve = CurveSteady
		}
		if env.Speed <= 0 {
			env.Speed = 1
		}
		if env.Start == 0 && env.End == 0 {
			env.End = 1
		}
		env.Start = clampFloat(env.Start, 0, 1)
		env.End = clampFloat(env.End, 0, 1)
	}
	validateFilters := func(stages *[]FilterStage) {
		if len(*stages) > MaxFilterStages {
			report(DiagFilterClamped, float64(len(*stages)))
			*stages = (*stages)[:MaxFilterStages]
		}
		for i := range *stages {
			s := &(*stages)[i]
			if s.Type < LowPass || s.Type > HighPass1 {
				report(DiagFilterClamped, float64(s.Type))
				s.Type = LowPass
			}
			if s.Frequency <= 0 {
				report(DiagFilterClamped, s.Frequency)
				s.Frequency = 1000
			}
		}
	}
	validateFilters(&instr.EQFilter)
	validateFilters(&instr.NoteFilter)
	instr.KeyTracking = clampFloat(instr.KeyTracking, 0, 1)
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

// ChipWaveIndex returns the index of the named chip wave in ChipWaves, or 0
// if there is no such wave.
func ChipWaveIndex(name string) int { return max(indexOf(ChipWaves, name), 0) }

// NoiseWaveIndex returns the index of the named noise wave in NoiseWaves, or
// 0 if there is no such wave.
func NoiseWaveIndex(name string) int { return max(indexOf(NoiseWaves, name), 0) }

// OperatorWaveformIndex returns the index of the named waveform in
// OperatorWaveforms, or 0 (sine) if there is no such waveform.
func OperatorWaveformIndex(name string) int { return max(indexOf(OperatorWaveforms, name), 0) }
