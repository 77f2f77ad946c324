package audio

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"go.uber.org/zap"
)

// SampleRate is the rate cues are synthesized at and the speaker runs at.
const SampleRate = beep.SampleRate(44100)

// Cue names played at stage transitions.
const (
	CueSelect   = "select"
	CueSuccess  = "success"
	CueStart    = "start"
	CueDownload = "download"
	CueExtract  = "extract"
	CueInstall  = "install"
	CueError    = "error"
	CueDone     = "done"
)

// Note is one tone of a cue.
type Note struct {
	Freq float64 // Hz, 0 is a rest
	Dur  time.Duration
}

var cues = map[string][]Note{
	CueSelect:   {{880, 40 * time.Millisecond}},
	CueSuccess:  {{660, 70 * time.Millisecond}, {990, 110 * time.Millisecond}},
	CueStart:    {{523.25, 90 * time.Millisecond}, {659.25, 90 * time.Millisecond}, {783.99, 140 * time.Millisecond}},
	CueDownload: {{587.33, 80 * time.Millisecond}, {0, 30 * time.Millisecond}, {587.33, 80 * time.Millisecond}},
	CueExtract:  {{698.46, 120 * time.Millisecond}},
	CueInstall:  {{783.99, 80 * time.Millisecond}, {987.77, 120 * time.Millisecond}},
	CueError:    {{220, 180 * time.Millisecond}, {0, 40 * time.Millisecond}, {196, 260 * time.Millisecond}},
	CueDone:     {{523.25, 80 * time.Millisecond}, {783.99, 80 * time.Millisecond}, {1046.5, 220 * time.Millisecond}},
}

// Player plays cues on the default audio device. A disabled Player, or one
// whose device failed to open, does nothing.
type Player struct {
	logger *zap.Logger
	volume float64

	mu      sync.Mutex
	enabled bool
	custom  map[string][]byte

	once    sync.Once
	initErr error

	// replaced in tests
	initSpeaker func(beep.SampleRate, int) error
	playOn      func(...beep.Streamer)
}

// NewPlayer returns a Player. volumeDB is applied to every cue, base 2.
func NewPlayer(enabled bool, volumeDB float64, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		logger:      logger.Named("audio"),
		volume:      volumeDB,
		enabled:     enabled,
		custom:      make(map[string][]byte),
		initSpeaker: speaker.Init,
		playOn:      speaker.Play,
	}
}

// LoadDir registers every <cue>.wav in dir as a replacement for the built-in
// tone. A missing directory is not an error.
func (p *Player) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".wav") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		p.custom[strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))] = data
	}
	return nil
}

func (p *Player) ready() bool {
	p.mu.Lock()
	enabled := p.enabled
	p.mu.Unlock()
	if !enabled {
		return false
	}

	p.once.Do(func() {
		p.initErr = p.initSpeaker(SampleRate, SampleRate.N(time.Second/10))
		if p.initErr != nil {
			p.logger.Warn("Audio device unavailable, sounds disabled", zap.Error(p.initErr))
		}
	})
	if p.initErr != nil {
		p.mu.Lock()
		p.enabled = false
		p.mu.Unlock()
		return false
	}
	return true
}

// streamer builds the stream for a cue, or nil when the name is unknown.
func (p *Player) streamer(name string) beep.Streamer {
	p.mu.Lock()
	data, ok := p.custom[name]
	p.mu.Unlock()

	if ok {
		s, format, err := DecodeSound(data)
		if err == nil {
			var out beep.Streamer = s
			if format.SampleRate != SampleRate {
				out = beep.Resample(4, format.SampleRate, SampleRate, s)
			}
			return &effects.Volume{Streamer: out, Base: 2, Volume: p.volume}
		}
		p.logger.Warn("Sound file couldn't be decoded, using built-in tone", zap.String("cue", name), zap.Error(err))
	}

	notes, ok := cues[name]
	if !ok {
		return nil
	}
	return &effects.Volume{Streamer: Melody(SampleRate, notes...), Base: 2, Volume: p.volume}
}

// Play plays a cue synchronously (blocks until complete)
func (p *Player) Play(name string) {
	if !p.ready() {
		return
	}
	s := p.streamer(name)
	if s == nil {
		return
	}

	done := make(chan struct{})
	p.playOn(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))
	<-done
}

// PlayAsync starts a cue and returns immediately.
func (p *Player) PlayAsync(name string) {
	if !p.ready() {
		return
	}
	if s := p.streamer(name); s != nil {
		p.playOn(s)
	}
}

// StopAll stops all currently playing sounds
func (p *Player) StopAll() {
	if p.ready() {
		speaker.Clear()
	}
}

// DecodeSound decodes WAV sound data into a streamer
func DecodeSound(soundData []byte) (beep.StreamSeekCloser, beep.Format, error) {
	return wav.Decode(bytes.NewReader(soundData))
}

// Tone returns an endless sine wave at freq Hz with a short fade in and out
// over length samples. freq 0 is silence.
func Tone(sr beep.SampleRate, freq float64, length int) beep.Streamer {
	fade := sr.N(5 * time.Millisecond)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			var v float64
			if freq > 0 {
				amp := 0.3
				if pos < fade {
					amp *= float64(pos) / float64(fade)
				} else if rem := length - pos; rem < fade {
					amp *= math.Max(float64(rem), 0) / float64(fade)
				}
				v = amp * math.Sin(2*math.Pi*freq*float64(pos)/float64(sr))
			}
			samples[i] = [2]float64{v, v}
			pos++
		}
		return len(samples), true
	})
}

// Melody plays notes back to back.
func Melody(sr beep.SampleRate, notes ...Note) beep.Streamer {
	parts := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		length := sr.N(n.Dur)
		parts = append(parts, beep.Take(length, Tone(sr, n.Freq, length)))
	}
	return beep.Seq(parts...)
}
