//go:build portaudio

package main

import (
	"github.com/vsariola/chipbox"
	"github.com/vsariola/chipbox/portaudio"
)

func newPortAudioContext(sampleRate, bufferFrames int) (chipbox.AudioContext, error) {
	c, err := portaudio.NewContext(sampleRate, bufferFrames)
	if err != nil {
		return nil, err
	}
	return c, nil
}
