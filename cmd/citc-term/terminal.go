package main

import (
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/citc-os/workstation/internal/cdp/client"
	"github.com/citc-os/workstation/internal/logging"
)

// terminal owns one PTY-backed shell and the surface it renders into.
// Output from the PTY repaints the glyph grid and commits the surface;
// CDP key events are written to the PTY's stdin. This mirrors
// internal/terminal's Session: a read loop feeding a
// callback, a write path, and a single close path.
type terminal struct {
	grid *glyphGrid
	surf *client.Surface

	mu     sync.Mutex
	ptyFd  *os.File
	cmd    *exec.Cmd
	closed bool
}

func (t *terminal) startShell(shell string, cols, rows int) error {
	master, tty, err := openPty()
	if err != nil {
		return err
	}
	if err := setWinsize(master.Fd(), uint16(cols), uint16(rows)); err != nil {
		master.Close()
		tty.Close()
		return err
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), "TERM=vt100", "HOME=/root", "COLUMNS="+strconv.Itoa(cols), "LINES="+strconv.Itoa(rows))
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = ptyProcAttr()

	if err := cmd.Start(); err != nil {
		master.Close()
		tty.Close()
		return err
	}
	tty.Close()

	t.ptyFd = master
	t.cmd = cmd

	go t.readLoop()
	go func() {
		cmd.Wait()
		t.close()
	}()
	return nil
}

func (t *terminal) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.ptyFd.Read(buf)
		if n > 0 {
			t.grid.feed(buf[:n])
			t.repaint()
		}
		if err != nil {
			return
		}
	}
}

func (t *terminal) repaint() {
	t.grid.render(t.surf.Pix, t.surf.Stride)
	if err := t.surf.Commit(); err != nil {
		return
	}
	t.surf.RequestFrame()
}

func (t *terminal) writeInput(b byte) {
	t.mu.Lock()
	fd := t.ptyFd
	t.mu.Unlock()
	if fd == nil {
		return
	}
	if _, err := fd.Write([]byte{b}); err != nil {
		logging.L("citc-term").Debug("pty write failed", logging.KeyError, err)
	}
}

func (t *terminal) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	if t.ptyFd != nil {
		t.ptyFd.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
}
