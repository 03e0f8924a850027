package wire

import (
	"bytes"
	"io"
	"net"
	"os"
	"testing"
)

func TestSendRecvRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	payload := CreateSurface{X: 10, Y: 20, W: 640, H: 480}.Encode()

	done := make(chan error, 1)
	go func() { done <- sc.Send(ReqCreateSurface, payload) }()

	typ, got, err := cc.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if typ != ReqCreateSurface {
		t.Fatalf("type = %v, want %v", typ, ReqCreateSurface)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %v, want %v", got, payload)
	}

	decoded, err := DecodeCreateSurface(got)
	if err != nil {
		t.Fatalf("DecodeCreateSurface: %v", err)
	}
	if decoded != (CreateSurface{X: 10, Y: 20, W: 640, H: 480}) {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestRecvEmptyPayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	go func() {
		if err := sc.Send(ReqListWindows, nil); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	typ, payload, err := cc.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if typ != ReqListWindows {
		t.Fatalf("type = %v, want %v", typ, ReqListWindows)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %v, want empty", payload)
	}
}

func TestSendRejectsOversizePayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	oversized := make([]byte, MaxPayloadSize+1)
	if err := sc.Send(ReqClipboardSet, oversized); err == nil {
		t.Fatal("expected error for oversized payload, got nil")
	}
}

func TestRecvReturnsEOFOnCleanClose(t *testing.T) {
	server, client := net.Pipe()
	cc := NewConn(client)

	server.Close()

	_, _, err := cc.Recv()
	if err == nil {
		t.Fatal("expected error after peer close, got nil")
	}
	if !isEOFLike(err) {
		t.Fatalf("error = %v, want io.EOF-shaped", err)
	}
}

func isEOFLike(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func TestSetTitleCodecRoundTrip(t *testing.T) {
	want := SetTitle{ID: 7, Title: "a terminal window"}
	got, err := DecodeSetTitle(want.Encode())
	if err != nil {
		t.Fatalf("DecodeSetTitle: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSetTitleCodecRejectsTruncatedPayload(t *testing.T) {
	full := SetTitle{ID: 1, Title: "hello"}.Encode()
	if _, err := DecodeSetTitle(full[:len(full)-2]); err == nil {
		t.Fatal("expected error decoding truncated title payload")
	}
}

func TestBytesCodecRoundTrip(t *testing.T) {
	want := Bytes{Data: []byte("clipboard contents")}
	got, err := DecodeBytes(want.Encode())
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Fatalf("got %v, want %v", got.Data, want.Data)
	}
}

func TestWindowListCodecRoundTrip(t *testing.T) {
	want := WindowList{Entries: []WindowListEntry{
		{SurfaceID: 1, Minimized: false, Title: "editor"},
		{SurfaceID: 2, Minimized: true, Title: "terminal"},
	}}
	got, err := DecodeWindowList(want.Encode())
	if err != nil {
		t.Fatalf("DecodeWindowList: %v", err)
	}
	if len(got.Entries) != len(want.Entries) {
		t.Fatalf("entries = %d, want %d", len(got.Entries), len(want.Entries))
	}
	for i := range want.Entries {
		if got.Entries[i] != want.Entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got.Entries[i], want.Entries[i])
		}
	}
}

func TestSendRecvWithFD(t *testing.T) {
	serverConn, clientConn, err := socketpair(t)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer serverConn.Close()
	defer clientConn.Close()

	sc := NewConn(serverConn)
	cc := NewConn(clientConn)

	tmp, err := os.CreateTemp(t.TempDir(), "buf")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer tmp.Close()
	if _, err := tmp.WriteString("pixel data"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	payload := AttachBuffer{ID: 3, W: 64, H: 64, Stride: 256, Format: FormatARGB8888}.Encode()

	done := make(chan error, 1)
	go func() { done <- sc.SendWithFD(ReqAttachBuffer, payload, int(tmp.Fd())) }()

	typ, got, fd, err := cc.RecvWithFD()
	if err != nil {
		t.Fatalf("RecvWithFD: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SendWithFD: %v", err)
	}
	defer unixClose(fd)

	if typ != ReqAttachBuffer {
		t.Fatalf("type = %v, want %v", typ, ReqAttachBuffer)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
	if fd < 0 {
		t.Fatal("expected a valid fd, got -1")
	}

	f := os.NewFile(uintptr(fd), "received")
	defer f.Close()
	buf := make([]byte, len("pixel data"))
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "pixel data" {
		t.Fatalf("got %q, want %q", buf, "pixel data")
	}
}
