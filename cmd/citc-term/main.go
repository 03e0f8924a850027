// Command citc-term is a CDP client: a terminal emulator window backed
// by a PTY shell. It exists as the reference CDP client implementation
// and as a manual-verification tool for the compositor — grounded on
// internal/cdp/client's callback-driven dispatch loop and on the
// internal/terminal PTY session (openPty/ptsname/unlockpt),
// generalized from "stream a PTY to a websocket" to "stream a PTY into
// a CDP surface's pixel buffer".
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/citc-os/workstation/internal/cdp/client"
	"github.com/citc-os/workstation/internal/config"
	"github.com/citc-os/workstation/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
	shellFl string
	colsFl  int
	rowsFl  int
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "citc-term",
	Short: "CDP terminal emulator client",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the compositor and open a terminal window",
	Run: func(cmd *cobra.Command, args []string) {
		runTerm()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("citc-term v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/citc/wcl.yaml)")
	runCmd.Flags().StringVar(&shellFl, "shell", "", "shell to launch (default $SHELL or /bin/sh)")
	runCmd.Flags().IntVar(&colsFl, "cols", 80, "terminal columns")
	runCmd.Flags().IntVar(&rowsFl, "rows", 24, "terminal rows")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runTerm connects to the compositor's CDP socket, creates a surface
// sized for a colsFl x rowsFl glyph grid, starts a PTY shell, and pumps
// PTY output into the surface while forwarding CDP key events into the
// PTY's stdin. It commits and requests a new frame whenever the grid
// is repainted, never on a busy-wait timer.
func runTerm() {
	logging.Init("text", "info", os.Stdout)
	log = logging.L("main")

	cfg, err := config.LoadWCL(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	shell := shellFl
	if shell == "" {
		shell = os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
	}

	grid := newGlyphGrid(colsFl, rowsFl)

	term := &terminal{grid: grid}

	conn, err := client.Connect(cfg.DisplaySocketPath, client.Callbacks{
		OnKey: func(keycode, state, char, mods uint32) {
			if state == 0 || char == 0 {
				return
			}
			term.writeInput(byte(char))
		},
		OnFrameDone: func(id uint32) {},
		OnConfigure: func(id, w, h uint32) {},
	})
	if err != nil {
		log.Error("connect failed", logging.KeyError, err)
		os.Exit(1)
	}
	defer conn.Close()

	surf, err := conn.CreateSurface(80, 80, grid.pixelW(), grid.pixelH(), "citc-term")
	if err != nil {
		log.Error("create surface failed", logging.KeyError, err)
		os.Exit(1)
	}
	defer surf.Destroy()

	term.surf = surf

	if err := term.startShell(shell, colsFl, rowsFl); err != nil {
		log.Error("failed to start shell", logging.KeyError, err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		term.close()
		os.Exit(0)
	}()

	for {
		if err := conn.Dispatch(); err != nil {
			log.Info("disconnected from compositor", logging.KeyError, err)
			return
		}
	}
}
