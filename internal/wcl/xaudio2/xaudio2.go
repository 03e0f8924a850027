// Package xaudio2 implements a minimal XAudio2 engine: a mastering
// voice and source voices that background-stream submitted PCM buffers
// to the audio mixing server, mirroring internal/wcl/dsound's streaming
// shape but over XAudio2's submit-buffer API instead of DirectSound's
// lock/play cycle (SubmitSourceBuffer enqueues; the voice streams
// whatever has been enqueued rather than replaying one fixed buffer).
package xaudio2

import (
	"sync"

	"github.com/citc-os/workstation/internal/audiomix"
	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

var log = logging.L("xaudio2")

// WaveFormat mirrors the WAVEFORMATEX fields SourceVoice creation uses.
type WaveFormat struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// Engine owns the mixer dial parameters, mastering-voice state, and the
// source-voice handle table.
type Engine struct {
	audioSocketPath string
	mu              sync.Mutex
	mixer           *audiomix.Client
	voices          *winabi.Table[SourceVoice]
}

// NewEngine constructs an XAudio2 engine that dials the mixing server
// lazily, on the first CreateMasteringVoice or CreateSourceVoice call
// (and again on the next such call while the dial keeps failing).
func NewEngine(audioSocketPath string) *Engine {
	return &Engine{
		audioSocketPath: audioSocketPath,
		voices:          winabi.NewTable[SourceVoice](winabi.RangeOSHandle),
	}
}

// CreateMasteringVoice is a no-op beyond confirming the engine is
// reachable to the mixer: XAudio2's mastering voice has no separate
// observable state in this port, since every source voice streams
// straight to the mixing server rather than through an in-process
// submix graph.
func (e *Engine) CreateMasteringVoice() uint64 {
	e.ensureMixer()
	return sOK
}

func (e *Engine) ensureMixer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer != nil {
		return
	}
	mixer, err := audiomix.Dial(e.audioSocketPath)
	if err != nil {
		log.Warn("xaudio2: mixing server unreachable, voices will be silent", logging.KeyError, err)
		return
	}
	e.mixer = mixer
}

// SourceVoice accepts submitted buffers on a queue and streams them to
// the mixer in submission order, one at a time (no cross-fade, no
// pitch/volume effects — this port's XAudio2 is PCM passthrough only).
type SourceVoice struct {
	mu      sync.Mutex
	format  WaveFormat
	mixer   *audiomix.Client
	streamID uint32
	queue   chan []byte
	stop    chan struct{}
	started bool
}

// CreateSourceVoice(const WAVEFORMATEX*) returns a voice handle bound
// to format.
func (e *Engine) CreateSourceVoice(format WaveFormat) winabi.Handle {
	e.ensureMixer()
	v := &SourceVoice{format: format, mixer: e.mixer, queue: make(chan []byte, 32), stop: make(chan struct{})}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voices.Alloc(v)
}

// SubmitSourceBuffer enqueues pcm for streaming.
func (e *Engine) SubmitSourceBuffer(handle winabi.Handle, pcm []byte) uint64 {
	v, err := e.voices.Get(handle)
	if err != nil {
		return eFail
	}
	select {
	case v.queue <- pcm:
	default:
		log.Warn("xaudio2: source voice queue full, dropping buffer")
	}
	return sOK
}

// Start begins draining the voice's queue to the mixer.
func (e *Engine) Start(handle winabi.Handle) uint64 {
	v, err := e.voices.Get(handle)
	if err != nil {
		return eFail
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started {
		return sOK
	}
	v.started = true

	if v.mixer == nil {
		go v.drainSilently()
		return sOK
	}
	channels := v.format.Channels
	if channels == 0 {
		channels = 2
	}
	sid, err := v.mixer.OpenStream(v.format.SampleRate, channels, v.format.BitsPerSample)
	if err != nil {
		log.Warn("xaudio2: OpenStream failed", logging.KeyError, err)
		go v.drainSilently()
		return sOK
	}
	v.streamID = sid
	go v.drain()
	return sOK
}

func (v *SourceVoice) drain() {
	for {
		select {
		case <-v.stop:
			v.mixer.CloseStream(v.streamID)
			return
		case pcm := <-v.queue:
			if err := v.mixer.WritePacket(v.streamID, pcm); err != nil {
				return
			}
		}
	}
}

// drainSilently discards queued buffers when the mixer is unreachable,
// so SubmitSourceBuffer's queue never backs up permanently.
func (v *SourceVoice) drainSilently() {
	for {
		select {
		case <-v.stop:
			return
		case <-v.queue:
		}
	}
}

// Stop halts streaming for a voice.
func (e *Engine) Stop(handle winabi.Handle) uint64 {
	v, err := e.voices.Get(handle)
	if err != nil {
		return eFail
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started {
		close(v.stop)
		v.started = false
		v.stop = make(chan struct{})
	}
	return sOK
}

const (
	sOK   = 0
	eFail = 0x80004005
)

// Register installs xaudio2's exports into reg: XAudio2Create (which
// returns S_OK without creating any state) and CreateMasteringVoice.
// CreateSourceVoice, SubmitSourceBuffer, Start and Stop are Go methods
// only and are not exported to the guest; SubmitSourceBuffer takes an
// already-resolved Go byte slice rather than a guest pointer (see
// DESIGN.md).
func (e *Engine) Register(reg *winabi.StubRegistry) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "xaudio2", Name: name, Fn: fn})
	}
	add("XAudio2Create", func(a []uint64) uint64 { return sOK })
	add("CreateMasteringVoice", func(a []uint64) uint64 { return e.CreateMasteringVoice() })
}
