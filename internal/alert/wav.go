package alert

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/chibaminto/compactalarm/internal/foundation/errors"
)

// wavFormat describes PCM audio pulled out of a WAV container.
type wavFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// maxChunkBytes caps a single chunk allocation. Alarm sounds are short
// clips, so anything past this is a corrupt or hostile size field.
const maxChunkBytes = 64 << 20

// parseWAV walks the RIFF chunk list and returns the format plus the raw PCM
// payload of the data chunk. Only 16-bit PCM is supported downstream.
func parseWAV(data []byte) (wavFormat, []byte, error) {
	reader := bytes.NewReader(data)

	header := make([]byte, 12)
	if _, err := io.ReadFull(reader, header); err != nil {
		return wavFormat{}, nil, errors.AudioError("truncated WAV header").Build()
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, nil, errors.AudioError("not a RIFF/WAVE file").Build()
	}

	var format wavFormat
	var pcm []byte
	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(reader, chunkHeader); err != nil {
			break
		}
		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:])
		if chunkSize > maxChunkBytes {
			return wavFormat{}, nil, errors.AudioError("oversized chunk").
				WithContext("chunk", chunkID).
				WithContext("size", chunkSize).Build()
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return wavFormat{}, nil, errors.AudioError("fmt chunk too short").
					WithContext("size", chunkSize).Build()
			}
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(reader, body); err != nil {
				return wavFormat{}, nil, errors.AudioError("truncated fmt chunk").Build()
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			format.BitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			pcm = make([]byte, chunkSize)
			if _, err := io.ReadFull(reader, pcm); err != nil {
				return wavFormat{}, nil, errors.AudioError("truncated data chunk").Build()
			}
		default:
			if _, err := reader.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return wavFormat{}, nil, errors.AudioError("malformed chunk list").
					WithContext("chunk", chunkID).Build()
			}
		}
		if format.SampleRate != 0 && pcm != nil {
			break
		}
	}

	if format.SampleRate == 0 || format.Channels == 0 {
		return wavFormat{}, nil, errors.AudioError("missing fmt chunk").Build()
	}
	if pcm == nil {
		return wavFormat{}, nil, errors.AudioError("missing data chunk").Build()
	}
	if format.BitDepth != 16 {
		return wavFormat{}, nil, errors.AudioError("unsupported bit depth").
			WithContext("bit_depth", format.BitDepth).Build()
	}
	return format, pcm, nil
}

// defaultToneFormat is the format of the synthesized fallback tone.
var defaultToneFormat = wavFormat{SampleRate: 44100, Channels: 1, BitDepth: 16}

// synthesizeTone renders a mono 16-bit beep pattern used when no sound file
// is configured: 880 Hz on for 400ms, silent for 200ms, looped by the player.
func synthesizeTone() []byte {
	const (
		freq    = 880.0
		beepDur = 400 * time.Millisecond
		gapDur  = 200 * time.Millisecond
	)
	rate := defaultToneFormat.SampleRate
	beepSamples := int(beepDur.Seconds() * float64(rate))
	gapSamples := int(gapDur.Seconds() * float64(rate))

	pcm := make([]byte, (beepSamples+gapSamples)*2)
	for i := 0; i < beepSamples; i++ {
		// Short attack/release ramp keeps the loop seam from clicking.
		envelope := 1.0
		const ramp = 512
		if i < ramp {
			envelope = float64(i) / ramp
		} else if beepSamples-i < ramp {
			envelope = float64(beepSamples-i) / ramp
		}
		v := math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
		sample := int16(v * envelope * 0.6 * math.MaxInt16)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}
	return pcm
}
