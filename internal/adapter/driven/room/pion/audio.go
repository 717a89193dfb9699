package pion

import (
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
)

const opusFrameDuration = 20 * time.Millisecond

// AudioSource feeds the published microphone track. ReadSample returning
// io.EOF stops publishing.
type AudioSource interface {
	ReadSample() (media.Sample, error)
}

// opusSilence is a single Opus frame that decodes to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SilenceSource publishes comfort silence. The agent side only needs a live
// track to start talking.
type SilenceSource struct{}

func (SilenceSource) ReadSample() (media.Sample, error) {
	return media.Sample{Data: opusSilence, Duration: opusFrameDuration}, nil
}
