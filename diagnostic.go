package chipbox

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

type (
	// Diagnostic reports a non-fatal problem found while validating or
	// playing a song. Diagnostics are plain values so that the audio
	// goroutine can send them without allocating; formatting happens on the
	// receiving side. Channel, Instrument and Bar are -1 when not relevant.
	Diagnostic struct {
		Kind       DiagnosticKind
		Code       DiagnosticCode
		Channel    int
		Instrument int
		Bar        int
		Value      float64
	}

	DiagnosticKind int
	DiagnosticCode int
)

const (
	// DataIntegrity problems are references to things that do not exist;
	// the engine plays silence in their place.
	DataIntegrity DiagnosticKind = iota
	// Configuration problems are values out of their range; the engine
	// clamps them at the point of use.
	Configuration
	// Resource problems are buffers that could not be provided; the engine
	// bypasses the part that needed them.
	Resource
)

const (
	DiagMissingPattern DiagnosticCode = iota
	DiagMissingInstrument
	DiagMissingModSetting
	DiagMissingSample
	DiagMissingChannel
	DiagTempoClamped
	DiagMeterClamped
	DiagLengthClamped
	DiagLoopClamped
	DiagNoteClamped
	DiagParameterClamped
	DiagFilterClamped
	DiagUnknownWave
	DiagEchoBypassed
	DiagChannelBypassed
	DiagEventOverflow
	DiagQueueFull
	NumDiagnosticCodes
)

var diagnosticCodeInfo = [NumDiagnosticCodes]struct {
	kind    DiagnosticKind
	message string
}{
	DiagMissingPattern:    {DataIntegrity, "order refers to a missing pattern"},
	DiagMissingInstrument: {DataIntegrity, "pattern refers to a missing instrument"},
	DiagMissingModSetting: {DataIntegrity, "mod note refers to a missing mod setting"},
	DiagMissingSample:     {DataIntegrity, "sample asset not found"},
	DiagMissingChannel:    {DataIntegrity, "command refers to a missing channel or instrument"},
	DiagTempoClamped:      {Configuration, "tempo clamped"},
	DiagMeterClamped:      {Configuration, "beats per bar or ticks per beat clamped"},
	DiagLengthClamped:     {Configuration, "song length clamped"},
	DiagLoopClamped:       {Configuration, "loop range clamped"},
	DiagNoteClamped:       {Configuration, "note clamped into its bar"},
	DiagParameterClamped:  {Configuration, "parameter clamped"},
	DiagFilterClamped:     {Configuration, "filter stage clamped"},
	DiagUnknownWave:       {Configuration, "unknown waveform, using the default"},
	DiagEchoBypassed:      {Resource, "echo buffer unavailable, echo bypassed"},
	DiagChannelBypassed:   {Resource, "channel state unavailable, channel bypassed"},
	DiagEventOverflow:     {Resource, "too many events in one block, events dropped"},
	DiagQueueFull:         {Resource, "command queue full"},
}

var diagnosticKindNames = []string{"data", "config", "resource"}

// Kind returns the category of the code.
func (c DiagnosticCode) Kind() DiagnosticKind {
	if c < 0 || c >= NumDiagnosticCodes {
		return DataIntegrity
	}
	return diagnosticCodeInfo[c].kind
}

func (c DiagnosticCode) String() string {
	if c < 0 || c >= NumDiagnosticCodes {
		return fmt.Sprintf("diagnostic(%d)", int(c))
	}
	return diagnosticCodeInfo[c].message
}

func (k DiagnosticKind) String() string { return enumName(diagnosticKindNames, int(k)) }

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %v", d.Kind, d.Code)
	if d.Channel >= 0 {
		fmt.Fprintf(&b, " (channel %d", d.Channel)
		if d.Instrument >= 0 {
			fmt.Fprintf(&b, ", instrument %d", d.Instrument)
		}
		if d.Bar >= 0 {
			fmt.Fprintf(&b, ", bar %d", d.Bar)
		}
		b.WriteString(")")
	} else if d.Bar >= 0 {
		fmt.Fprintf(&b, " (bar %d)", d.Bar)
	}
	if d.Value != 0 {
		fmt.Fprintf(&b, ", value %g", d.Value)
	}
	return b.String()
}

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("%d", v)
	}
	return names[v]
}

func enumParse(names []string, what string, text []byte, dst *int) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range names {
		if strings.ToLower(n) == s {
			*dst = i
			return nil
		}
	}
	return fault.New(fmt.Sprintf("unknown %s %q", what, s), fmsg.With("cannot parse "+what), ftag.With(ftag.InvalidArgument))
}
