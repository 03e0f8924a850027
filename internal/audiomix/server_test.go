package audiomix

import "testing"

func TestSaturatingAddClampsHigh(t *testing.T) {
	if got := saturatingAdd(30000, 10000); got != 32767 {
		t.Fatalf("saturatingAdd = %d, want 32767", got)
	}
}

func TestSaturatingAddClampsLow(t *testing.T) {
	if got := saturatingAdd(-30000, -10000); got != -32768 {
		t.Fatalf("saturatingAdd = %d, want -32768", got)
	}
}

func TestSaturatingAddWithinRange(t *testing.T) {
	if got := saturatingAdd(100, -50); got != 50 {
		t.Fatalf("saturatingAdd = %d, want 50", got)
	}
}

type fakeSink struct {
	frames [][]int16
}

func (s *fakeSink) Write(samples []int16) error {
	cp := make([]int16, len(samples))
	copy(cp, samples)
	s.frames = append(s.frames, cp)
	return nil
}
func (s *fakeSink) Close() error { return nil }

func TestMixOnceMixesTwoStreams(t *testing.T) {
	srv := New(&fakeSink{})
	a := srv.openStream(OpenStream{Rate: 48000, Channels: 2, Bits: 16})
	b := srv.openStream(OpenStream{Rate: 48000, Channels: 2, Bits: 16})

	srv.writePacket(a, []byte{0x10, 0x00, 0x20, 0x00}) // two int16 samples: 16, 32
	srv.writePacket(b, []byte{0x05, 0x00, 0x05, 0x00}) // 5, 5

	if err := srv.MixOnce(4); err != nil {
		t.Fatalf("MixOnce: %v", err)
	}

	sink := srv.sink.(*fakeSink)
	if len(sink.frames) != 1 {
		t.Fatalf("expected one mixed frame, got %d", len(sink.frames))
	}
	frame := sink.frames[0]
	if frame[0] != 21 || frame[1] != 37 {
		t.Fatalf("mixed samples = %v, want [21 37 0 0]", frame)
	}
}

func TestMixOnceDropsUnknownStream(t *testing.T) {
	srv := New(&fakeSink{})
	srv.writePacket(999, []byte{0x01, 0x00})
	if err := srv.MixOnce(4); err != nil {
		t.Fatalf("MixOnce: %v", err)
	}
	if len(srv.sink.(*fakeSink).frames) != 0 {
		t.Fatal("expected no frame emitted for a dropped packet")
	}
}
