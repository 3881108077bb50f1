//go:build !portaudio

package main

import (
	"errors"

	"github.com/vsariola/chipbox"
)

func newPortAudioContext(sampleRate, bufferFrames int) (chipbox.AudioContext, error) {
	return nil, errors.New("built without portaudio support; rebuild with -tags portaudio")
}
