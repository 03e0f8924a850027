// Package dsound implements DirectSound8 as a COM device registered
// with internal/wcl/ole32: CreateSoundBuffer returns a buffer whose
// Play background-streams its PCM contents to the audio mixing server
// (internal/audiomix). If the mixing server is unreachable the buffer
// falls back to discarding audio silently, per the device-absent
// degrade rule — the guest observes successful playback
// either way, since DirectSound has no synchronous "did it actually
// make sound" feedback path.
package dsound

import (
	"sync"

	"github.com/citc-os/workstation/internal/audiomix"
	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/ole32"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

var log = logging.L("dsound")

// WaveFormat mirrors WAVEFORMATEX's fields this port actually uses.
type WaveFormat struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// Device is the DirectSound8 object CoCreateInstance hands back. It
// owns the mixing-server connection every buffer it creates streams
// through.
type Device struct {
	mu       sync.Mutex
	refcount uint32
	mixer    *audiomix.Client // nil if the mixing server is unreachable
}

// Host owns the mixer dial parameters and registers the DirectSound8
// CLSID with an ole32.Host.
type Host struct {
	audioSocketPath string
	buffers         *winabi.Table[Buffer]
}

// NewHost constructs a dsound host that dials the mixing server at
// audioSocketPath each time a DirectSound8 device is created (in the
// constructor WireInto registers), not at construction.
func NewHost(audioSocketPath string) *Host {
	return &Host{
		audioSocketPath: audioSocketPath,
		buffers:         winabi.NewTable[Buffer](winabi.RangeOSHandle),
	}
}

// WireInto registers DirectSound8's constructor with com.
func (h *Host) WireInto(com *ole32.Host) {
	com.RegisterClass(ole32.CLSIDDirectSound8, func() (ole32.Object, error) {
		mixer, err := audiomix.Dial(h.audioSocketPath)
		if err != nil {
			log.Warn("dsound: mixing server unreachable, buffers will be silent", logging.KeyError, err)
			mixer = nil
		}
		return &Device{mixer: mixer}, nil
	})
}

// Release implements ole32.Object.
func (d *Device) Release() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refcount == 0 {
		if d.mixer != nil {
			d.mixer.Close()
		}
		return 0
	}
	d.refcount--
	return d.refcount
}

// Buffer is one DirectSoundBuffer: a PCM store whose backing slice
// Host.Lock exposes, streamed to the mixer while playing is true. There
// is no Unlock; the DirectSoundBuffer_Lock export copies the current
// contents out to guest memory rather than mapping them.
// Grounded on the concurrency note that a playback thread in
// DirectSoundBuffer owns its data and communicates via the mixing
// server's socket rather than shared memory inside the host: Buffer's
// streaming loop runs on its own goroutine and only ever touches the
// mixer connection, never another package's state.
type Buffer struct {
	mu       sync.Mutex
	format   WaveFormat
	data     []byte
	playing  bool
	looping  bool
	streamID uint32
	mixer    *audiomix.Client
	stop     chan struct{}
}

// CreateSoundBuffer(DSBUFFERDESC) simplified to the wave format and
// requested buffer size; returns a Buffer handle.
func (h *Host) CreateSoundBuffer(dev *Device, format WaveFormat, size uint32) winabi.Handle {
	b := &Buffer{format: format, data: make([]byte, size), mixer: dev.mixer, stop: make(chan struct{})}
	return h.buffers.Alloc(b)
}

// Lock returns a writable view of the buffer's backing store (the
// whole buffer; partial-lock wraparound is not modeled).
func (h *Host) Lock(handle winabi.Handle) []byte {
	b, err := h.buffers.Get(handle)
	if err != nil {
		return nil
	}
	return b.data
}

// Play starts streaming the buffer's current contents to the mixer on
// a background goroutine; looping repeats the buffer until Stop.
func (h *Host) Play(handle winabi.Handle, looping bool) uint64 {
	b, err := h.buffers.Get(handle)
	if err != nil {
		return eFail
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.playing {
		return sOK
	}
	b.playing = true
	b.looping = looping
	b.stop = make(chan struct{})

	if b.mixer == nil {
		return sOK // silent playback, still reports success
	}

	channels := b.format.Channels
	if channels == 0 {
		channels = 2
	}
	streamID, err := b.mixer.OpenStream(b.format.SampleRate, channels, b.format.BitsPerSample)
	if err != nil {
		log.Warn("dsound: OpenStream failed", logging.KeyError, err)
		return sOK
	}
	b.streamID = streamID

	go b.stream()
	return sOK
}

func (b *Buffer) stream() {
	for {
		select {
		case <-b.stop:
			b.mixer.CloseStream(b.streamID)
			return
		default:
		}
		b.mu.Lock()
		data := append([]byte(nil), b.data...)
		looping := b.looping
		b.mu.Unlock()

		if err := b.mixer.WritePacket(b.streamID, data); err != nil {
			return
		}
		if !looping {
			b.mu.Lock()
			b.playing = false
			b.mu.Unlock()
			b.mixer.CloseStream(b.streamID)
			return
		}
	}
}

// Stop halts a playing buffer.
func (h *Host) Stop(handle winabi.Handle) uint64 {
	b, err := h.buffers.Get(handle)
	if err != nil {
		return eFail
	}
	b.mu.Lock()
	playing := b.playing
	b.playing = false
	stop := b.stop
	b.mu.Unlock()
	if playing {
		close(stop)
	}
	return sOK
}

const (
	sOK   = 0
	eFail = 0x80004005
)

// Register installs dsound's DLL-level exports into reg. Real
// DirectSound calls everything past DirectSoundCreate8 through a COM
// vtable; this port exposes the same operations as flat dsound.dll
// exports instead (consistent with ole32's own simplification of
// skipping vtable layout), taking the device/buffer handle as an
// explicit first argument rather than an implicit this pointer.
func (h *Host) Register(reg *winabi.StubRegistry, com *ole32.Host, mem winabi.ProcessMemory) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "dsound", Name: name, Fn: fn})
	}
	add("DirectSoundCreate8", func(a []uint64) uint64 {
		handle, hr := com.CoCreateInstance(ole32.CLSIDDirectSound8)
		if hr == sOK && a[1] != 0 {
			winabi.WriteUint64(mem, a[1], uint64(handle))
		}
		return hr
	})
	add("DirectSound_CreateSoundBuffer", func(a []uint64) uint64 {
		dev := deviceFor(com, winabi.Handle(a[0]))
		if dev == nil {
			return uint64(eFail)
		}
		format := WaveFormat{SampleRate: uint32(a[1]), Channels: uint16(a[2]), BitsPerSample: uint16(a[3])}
		return uint64(h.CreateSoundBuffer(dev, format, uint32(a[4])))
	})
	add("DirectSoundBuffer_Lock", func(a []uint64) uint64 {
		buf := h.Lock(winabi.Handle(a[0]))
		if buf == nil || a[1] == 0 {
			return uint64(eFail)
		}
		winabi.WriteBytes(mem, a[1], buf)
		return sOK
	})
	add("DirectSoundBuffer_Play", func(a []uint64) uint64 { return h.Play(winabi.Handle(a[0]), a[1] != 0) })
	add("DirectSoundBuffer_Stop", func(a []uint64) uint64 { return h.Stop(winabi.Handle(a[0])) })
}

// deviceFor recovers the concrete *Device a prior CoCreateInstance
// handed back as an opaque ole32.Object handle.
func deviceFor(com *ole32.Host, handle winabi.Handle) *Device {
	obj, ok := com.Lookup(handle)
	if !ok {
		return nil
	}
	dev, ok := obj.(*Device)
	if !ok {
		return nil
	}
	return dev
}
