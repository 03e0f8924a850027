// Command citc-compositor is the display server: it owns the
// framebuffer and input devices, listens on the CDP socket, and runs
// the single-threaded composite loop described in internal/compositor
// and internal/cdp/server.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/citc-os/workstation/internal/cdp/server"
	"github.com/citc-os/workstation/internal/compositor/fbdev"
	"github.com/citc-os/workstation/internal/compositor/input"
	"github.com/citc-os/workstation/internal/compositor/loop"
	"github.com/citc-os/workstation/internal/compositor/render"
	"github.com/citc-os/workstation/internal/config"
	"github.com/citc-os/workstation/internal/health"
	"github.com/citc-os/workstation/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "citc-compositor",
	Short: "CITC display server (CDP compositor)",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the compositor",
	Run: func(cmd *cobra.Command, args []string) {
		runCompositor()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("citc-compositor v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print process health and exit",
	Run: func(cmd *cobra.Command, args []string) {
		printStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/citc/compositor.yaml)")
	rootCmd.AddCommand(runCmd, versionCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(logFile, format, level string) {
	var output io.Writer = os.Stdout
	if logFile != "" {
		rw, err := logging.NewRotatingWriter(logFile, 64, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", logFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(format, level, output)
	log = logging.L("main")
}

// runCompositor boots every C1-C7 subsystem and drives the event loop
// until SIGINT/SIGTERM. SIGPIPE is ignored process-wide so a client
// disconnecting mid-write never crashes the server.
func runCompositor() {
	cfg, err := config.LoadCompositor(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg.LogFile, cfg.LogFormat, cfg.LogLevel)

	signal.Ignore(syscall.SIGPIPE)

	log.Info("starting compositor", "version", version, "socket", cfg.SocketPath,
		"screen", fmt.Sprintf("%dx%d", cfg.ScreenWidth, cfg.ScreenHeight))

	dev, err := fbdev.Open(cfg.FramebufferDev)
	if err != nil {
		log.Warn("framebuffer device absent, falling back to headless", logging.KeyError, err)
		dev = fbdev.NewHeadless(cfg.ScreenWidth, cfg.ScreenHeight)
	}
	defer dev.Close()

	devices, err := input.ScanDevices()
	if err != nil {
		log.Warn("input device scan failed, running with zero input devices", logging.KeyError, err)
		devices = nil
	}
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()
	log.Info("input devices", "count", len(devices))

	srv := server.New(cfg.ScreenWidth, cfg.ScreenHeight)
	if adopted, err := srv.AdoptSocketActivation(); err != nil {
		log.Error("socket activation failed", logging.KeyError, err)
		os.Exit(1)
	} else if adopted {
		log.Info("adopted socket-activated listener", "fd", 3)
	} else if err := srv.Listen(cfg.SocketPath); err != nil {
		log.Error("listen failed", logging.KeyError, err)
		os.Exit(1)
	}
	defer srv.Close()

	comp := &loop.Compositor{
		Server: srv,
		Device: dev,
		Renderer: &render.Renderer{
			ScreenW: cfg.ScreenWidth,
			ScreenH: cfg.ScreenHeight,
		},
		Devices: devices,
	}

	mon := health.NewMonitor()
	mon.Update("compositor", health.Healthy, "running")

	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down compositor")
		close(stop)
	}()

	if err := comp.Run(stop); err != nil {
		log.Error("compositor loop exited with error", logging.KeyError, err)
		os.Exit(1)
	}
	log.Info("compositor stopped")
}

func printStatus() {
	stats, err := health.CurrentProcessStats()
	if err != nil {
		fmt.Printf("status: unavailable (%v)\n", err)
		return
	}
	fmt.Printf("pid=%d rss=%dKB cpu=%.1f%% openFds=%d\n", os.Getpid(), stats.RSSBytes/1024, stats.CPUPercent, stats.OpenFDs)
}
