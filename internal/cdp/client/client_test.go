package client_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/citc-os/workstation/internal/cdp/client"
	"github.com/citc-os/workstation/internal/cdp/server"
)

var errBadWelcome = errors.New("unexpected welcome geometry")

func TestConnectReceivesWelcome(t *testing.T) {
	s := server.New(1280, 800)
	sockPath := filepath.Join(t.TempDir(), "cdp.sock")
	if err := s.Listen(sockPath); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := client.Connect(sockPath, client.Callbacks{})
		if err == nil {
			if conn.ScreenW != 1280 || conn.ScreenH != 800 {
				err = errBadWelcome
			}
			conn.Close()
		}
		done <- err
	}()

	if err := s.AcceptOne(); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("client: %v", err)
	}
}
