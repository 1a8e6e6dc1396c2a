package codecs

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
)

// BuildAACConfig synthesizes the AudioSpecificConfig bytes an A_AAC track
// stores as CodecPrivate, assuming AAC-LC.
func BuildAACConfig(sampleRate float64, channels int) ([]byte, error) {
	cfg := mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   int(sampleRate),
		ChannelCount: channels,
	}
	b, err := cfg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("codecs: cannot build aac config: %w", err)
	}
	return b, nil
}
