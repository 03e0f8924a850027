// Command wcl-run loads a PE/COFF Win32 executable and hosts it
// against this port's stub DLL runtime: kernel32, user32, gdi32,
// ole32, dsound, xaudio2, xinput, and the D3D11/D3D12/DXGI software
// rasterizer. Grounded on cmd/citc-compositor's Cobra/Viper/slog
// scaffolding and signal discipline, generalized from "run the display
// server" to "run one guest process against the emulated Win32 ABI".
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/citc-os/workstation/internal/config"
	"github.com/citc-os/workstation/internal/health"
	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/d3d"
	"github.com/citc-os/workstation/internal/wcl/dsound"
	"github.com/citc-os/workstation/internal/wcl/gdi32"
	"github.com/citc-os/workstation/internal/wcl/kernel32"
	"github.com/citc-os/workstation/internal/wcl/ole32"
	"github.com/citc-os/workstation/internal/wcl/pe"
	"github.com/citc-os/workstation/internal/wcl/user32"
	"github.com/citc-os/workstation/internal/wcl/winabi"
	"github.com/citc-os/workstation/internal/wcl/xaudio2"
	"github.com/citc-os/workstation/internal/wcl/xinput"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "wcl-run",
	Short: "Host a Win32 executable against the CITC compatibility runtime",
}

var runCmd = &cobra.Command{
	Use:   "run <exe>",
	Short: "Load and run a PE/COFF executable",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGuest(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wcl-run v%s\n", version)
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/citc/wcl.yaml)")
	rootCmd.AddCommand(runCmd, versionCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(format, level string) {
	logging.Init(format, level, io.Writer(os.Stdout))
	log = logging.L("main")
}

// runGuest wires every stub DLL into one winabi.StubRegistry, loads
// path against it, and runs the guest's message loop until it quits or
// the process receives SIGINT/SIGTERM.
func runGuest(path string) {
	cfg, err := config.LoadWCL(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg.LogFormat, cfg.LogLevel)

	signal.Ignore(syscall.SIGPIPE)
	log.Info("starting wcl-run", "version", version, "exe", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read executable", logging.KeyError, err)
		os.Exit(1)
	}

	reg := winabi.NewStubRegistry()

	k32 := kernel32.NewHost(os.Stdout, os.Stderr, os.Stdin)
	gdi := gdi32.NewHost()
	u32 := user32.NewHost(cfg.DisplaySocketPath, gdi)
	com := ole32.NewHost()
	ds := dsound.NewHost(cfg.AudioSocketPath)
	xa2 := xaudio2.NewEngine(cfg.AudioSocketPath)
	xi := xinput.NewHost()
	dev := d3d.NewDevice()
	_ = d3d.NewD12Device(dev) // D3D12 facade shares dev's resource table; no guest in this port drives it directly yet

	ds.WireInto(com)

	k32.Register(reg)
	gdi.Register(reg)
	u32.Register(reg)
	com.Register(reg)

	img, err := pe.Load(raw, path, reg, pe.LoadOptions{AllowUnresolvedImports: cfg.AllowUnresolved})
	if err != nil {
		log.Error("failed to load PE image", logging.KeyError, err)
		os.Exit(1)
	}

	k32.Attach(img)
	gdi.Attach(img)
	u32.Attach(img)
	com.Attach(img)

	ds.Register(reg, com, img)
	xa2.Register(reg)
	xi.Register(reg, img)

	mon := health.NewMonitor()
	mon.Update("wcl-run", health.Healthy, "running")

	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down wcl-run")
		close(stop)
		os.Exit(0)
	}()

	log.Info("invoking entry point", "entryRVA", img.EntryRVA, "imports", len(img.Imports))
	exitCode := img.CallEntry(0, 0, 0, 0)
	log.Info("guest entry point returned", "exitCode", exitCode)

	select {
	case <-stop:
	default:
	}
}

func printStatus() {
	stats, err := health.CurrentProcessStats()
	if err != nil {
		fmt.Printf("status: unavailable (%v)\n", err)
		return
	}
	fmt.Printf("pid=%d rss=%dKB cpu=%.1f%% openFds=%d\n", os.Getpid(), stats.RSSBytes/1024, stats.CPUPercent, stats.OpenFDs)
}
