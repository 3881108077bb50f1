package chipbox

type (
	// ParameterID identifies a scalar that envelopes, mod channels and live
	// edits can change. All three use the same ID space.
	ParameterID int

	// ParameterInfo documents one parameter: its range in native units, the
	// level it lives at, and what can drive it.
	ParameterInfo struct {
		Name        string
		Min         float64 // minimum value of the parameter, inclusive
		Max         float64 // maximum value of the parameter, inclusive
		Scope       ParameterScope
		CanEnvelope bool // if an instrument envelope can target this parameter
		CanModulate bool // if a mod channel can target this parameter
	}

	ParameterScope int
)

const (
	// SongScope parameters belong to the song.
	SongScope ParameterScope = iota
	// InstrumentScope parameters are read once per tick for the effect bus
	// of the instrument.
	InstrumentScope
	// VoiceScope parameters are read once per tick for every voice.
	VoiceScope
)

const (
	ParamVolume ParameterID = iota
	ParamPan
	ParamDistortion
	ParamChorus
	ParamBitcrusher
	ParamBitcrusherHold
	ParamRingMod
	ParamRingModHz
	ParamEchoDelay
	ParamEchoFeedback
	ParamEchoMix
	ParamReverb
	ParamStereoWidth
	ParamEQFilterCutoff
	ParamNoteFilterCutoff
	ParamDetune
	ParamVibratoDepth
	ParamArpeggioSpeed
	ParamPulseWidth
	ParamFMFeedback
	ParamOperatorAmplitude
	ParamPitch
	ParamTempo
	ParamSongVolume
	NumParameters
)

// PitchEnvelopeRange is the bend of a pitch envelope at either end of its
// range, in semitones.
const PitchEnvelopeRange = 12

// Parameters documents all the parameters, indexed by ParameterID.
var Parameters = [NumParameters]ParameterInfo{
	ParamVolume:            {Name: "volume", Min: MinVolume, Max: MaxVolume, Scope: VoiceScope, CanEnvelope: true, CanModulate: true},
	ParamPan:               {Name: "pan", Min: -1, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamDistortion:        {Name: "distortion", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamChorus:            {Name: "chorus", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamBitcrusher:        {Name: "bitcrusher", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamBitcrusherHold:    {Name: "bitcrusherHold", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamRingMod:           {Name: "ringMod", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamRingModHz:         {Name: "ringModHz", Min: 0, Max: 4000, Scope: InstrumentScope, CanModulate: true},
	ParamEchoDelay:         {Name: "echoDelay", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamEchoFeedback:      {Name: "echoFeedback", Min: 0, Max: 0.95, Scope: InstrumentScope, CanModulate: true},
	ParamEchoMix:           {Name: "echoMix", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamReverb:            {Name: "reverb", Min: 0, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamStereoWidth:       {Name: "stereoWidth", Min: -1, Max: 1, Scope: InstrumentScope, CanModulate: true},
	ParamEQFilterCutoff:    {Name: "eqFilterCutoff", Min: -8, Max: 8, Scope: InstrumentScope, CanModulate: true},
	ParamNoteFilterCutoff:  {Name: "noteFilterCutoff", Min: -8, Max: 0, Scope: VoiceScope, CanEnvelope: true, CanModulate: true},
	ParamDetune:            {Name: "detune", Min: -100, Max: 100, Scope: VoiceScope, CanModulate: true},
	ParamVibratoDepth:      {Name: "vibratoDepth", Min: 0, Max: 2, Scope: VoiceScope, CanEnvelope: true, CanModulate: true},
	ParamArpeggioSpeed:     {Name: "arpeggioSpeed", Min: 0, Max: 4, Scope: VoiceScope, CanEnvelope: true, CanModulate: true},
	ParamPulseWidth:        {Name: "pulseWidth", Min: 0, Max: 0.5, Scope: VoiceScope, CanEnvelope: true, CanModulate: true},
	ParamFMFeedback:        {Name: "fmFeedback", Min: 0, Max: 1, Scope: VoiceScope, CanEnvelope: true, CanModulate: true},
	ParamOperatorAmplitude: {Name: "operatorAmplitude", Min: 0, Max: 1, Scope: VoiceScope, CanEnvelope: true},
	ParamPitch:             {Name: "pitch", Min: -PitchEnvelopeRange, Max: PitchEnvelopeRange, Scope: VoiceScope, CanEnvelope: true},
	ParamTempo:             {Name: "tempo", Min: MinBPM, Max: MaxBPM, Scope: SongScope, CanModulate: true},
	ParamSongVolume:        {Name: "songVolume", Min: MinVolume, Max: MaxVolume, Scope: SongScope, CanModulate: true},
}

// Valid reports whether the ID names a parameter.
func (id ParameterID) Valid() bool {
	return id >= 0 && id < NumParameters
}

func (id ParameterID) String() string {
	if !id.Valid() {
		return enumName(nil, int(id))
	}
	return Parameters[id].Name
}

func (id ParameterID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ParameterID) UnmarshalText(text []byte) error {
	names := make([]string, NumParameters)
	for i, p := range Parameters {
		names[i] = p.Name
	}
	return enumParse(names, "parameter", text, (*int)(id))
}

// Normalize maps a native value of the parameter to [0, 1], clamping.
func (id ParameterID) Normalize(value float64) float64 {
	if !id.Valid() {
		return 0
	}
	p := Parameters[id]
	return clampFloat((value-p.Min)/(p.Max-p.Min), 0, 1)
}

// Denormalize maps a value in [0, 1] to the native range of the parameter,
// clamping.
func (id ParameterID) Denormalize(value float64) float64 {
	if !id.Valid() {
		return 0
	}
	p := Parameters[id]
	return p.Min + clampFloat(value, 0, 1)*(p.Max-p.Min)
}

// Clamp clamps a native value of the parameter into its range.
func (id ParameterID) Clamp(value float64) float64 {
	if !id.Valid() {
		return value
	}
	return clampFloat(value, Parameters[id].Min, Parameters[id].Max)
}

// Parameter returns the native value of an instrument parameter. ok is
// false for song parameters and for parameters that only envelopes drive.
func (instr *Instrument) Parameter(id ParameterID) (value float64, ok bool) {
	if p := instr.parameterPtr(id); p != nil {
		return *p, true
	}
	return 0, false
}

// SetParameter sets an instrument parameter, clamping the value into the
// parameter's range. Returns false if the instrument has no such parameter.
func (instr *Instrument) SetParameter(id ParameterID, value float64) bool {
	p := instr.parameterPtr(id)
	if p == nil {
		return false
	}
	*p = id.Clamp(value)
	return true
}

func (instr *Instrument) parameterPtr(id ParameterID) *float64 {
	switch id {
	case ParamVolume:
		return &instr.Volume
	case ParamPan:
		return &instr.Effects.Pan
	case ParamDistortion:
		return &instr.Effects.Distortion
	case ParamChorus:
		return &instr.Effects.Chorus
	case ParamBitcrusher:
		return &instr.Effects.Bitcrusher
	case ParamBitcrusherHold:
		return &instr.Effects.BitcrusherHold
	case ParamRingMod:
		return &instr.Effects.RingMod
	case ParamRingModHz:
		return &instr.Effects.RingModHz
	case ParamEchoDelay:
		return &instr.Effects.EchoDelay
	case ParamEchoFeedback:
		return &instr.Effects.EchoFeedback
	case ParamEchoMix:
		return &instr.Effects.EchoMix
	case ParamReverb:
		return &instr.Effects.Reverb
	case ParamStereoWidth:
		return &instr.Effects.StereoWidth
	case ParamEQFilterCutoff:
		return &instr.EQFilterShift
	case ParamNoteFilterCutoff:
		return &instr.NoteFilterShift
	case ParamDetune:
		return &instr.Detune
	case ParamVibratoDepth:
		return &instr.Vibrato.Depth
	case ParamArpeggioSpeed:
		return &instr.ArpeggioSpeed
	case ParamPulseWidth:
		return &instr.PulseWidth
	case ParamFMFeedback:
		return &instr.FM.Feedback
	}
	return nil
}

// Parameter returns the native value of a song parameter.
func (s *Song) Parameter(id ParameterID) (value float64, ok bool) {
	switch id {
	case ParamTempo:
		return float64(s.BPM), true
	case ParamSongVolume:
		return s.Volume, true
	}
	return 0, false
}

// SetParameter sets a song parameter, clamping the value into the
// parameter's range.
func (s *Song) SetParameter(id ParameterID, value float64) bool {
	switch id {
	case ParamTempo:
		s.BPM = int(id.Clamp(value) + 0.5)
	case ParamSongVolume:
		s.Volume = id.Clamp(value)
	default:
		return false
	}
	return true
}
