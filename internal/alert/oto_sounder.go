// Package alert provides the host alert surfaces behind the lifecycle
// interfaces: looping audio playback through oto, plus log-backed
// notification and vibration surfaces for hosts without the real hardware.
package alert

import (
	"bytes"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/chibaminto/compactalarm/internal/foundation/errors"
	"github.com/chibaminto/compactalarm/internal/lifecycle"
)

// The process gets one audio context; oto does not support re-creation.
var (
	audioCtx     *oto.Context
	audioCtxOnce sync.Once
	audioCtxErr  error
)

func initAudioContext(format wavFormat) (*oto.Context, error) {
	audioCtxOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			audioCtxErr = errors.WrapError(err, errors.CategoryAudio, "audio context init failed").Build()
			return
		}
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			audioCtxErr = errors.AudioError("audio hardware not ready").Build()
			return
		}
		audioCtx = ctx
	})
	return audioCtx, audioCtxErr
}

// OtoSounder plays a looping alarm sound. The PCM payload is loaded once at
// construction, either from a configured WAV file or a synthesized tone.
type OtoSounder struct {
	format wavFormat
	pcm    []byte
}

// NewOtoSounder loads soundPath as a 16-bit PCM WAV. An empty path selects
// the built-in tone.
func NewOtoSounder(soundPath string) (*OtoSounder, error) {
	if soundPath == "" {
		return &OtoSounder{format: defaultToneFormat, pcm: synthesizeTone()}, nil
	}
	data, err := os.ReadFile(soundPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryAudio, "failed to read sound file").
			WithContext("path", soundPath).Build()
	}
	format, pcm, err := parseWAV(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryAudio, "failed to parse sound file").
			WithContext("path", soundPath).Build()
	}
	return &OtoSounder{format: format, pcm: pcm}, nil
}

// PlayLoop starts looping playback at volume zero and returns the handle
// controlling it. Volume stays where the caller ramps it until Stop.
func (s *OtoSounder) PlayLoop() (lifecycle.SoundHandle, error) {
	ctx, err := initAudioContext(s.format)
	if err != nil {
		return nil, err
	}
	h := &otoHandle{
		ctx:      ctx,
		pcm:      s.pcm,
		stopChan: make(chan struct{}),
	}
	go h.loop()
	return h, nil
}

type otoHandle struct {
	ctx *oto.Context
	pcm []byte

	mu      sync.Mutex
	player  *oto.Player
	volume  float64
	stopped bool

	stopChan chan struct{}
}

// loop re-creates the one-shot oto player each pass to restart the clip.
func (h *otoHandle) loop() {
	for {
		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		player := h.ctx.NewPlayer(bytes.NewReader(h.pcm))
		player.SetVolume(h.volume)
		h.player = player
		h.mu.Unlock()

		player.Play()
		for player.IsPlaying() {
			select {
			case <-h.stopChan:
				player.Pause()
				_ = player.Close()
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		if err := player.Close(); err != nil {
			slog.Warn("Failed to close audio player", "error", err)
		}

		select {
		case <-h.stopChan:
			return
		default:
		}
	}
}

// SetVolume applies v (0..1) to the running loop.
func (h *otoHandle) SetVolume(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return errors.AudioError("playback already stopped").Build()
	}
	h.volume = v
	if h.player != nil {
		h.player.SetVolume(v)
	}
	return nil
}

// Stop ends the loop. Safe to call twice.
func (h *otoHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopChan)
	if h.player != nil {
		h.player.Pause()
	}
	return nil
}
