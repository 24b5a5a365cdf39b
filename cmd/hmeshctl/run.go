package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/krisarmstrong/hmeshd/pkg/alme"
	"github.com/krisarmstrong/hmeshd/pkg/config"
	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/logging"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/stats"
	"github.com/krisarmstrong/hmeshd/pkg/storage"
	"github.com/krisarmstrong/hmeshd/pkg/tui"
	"github.com/krisarmstrong/hmeshd/pkg/wsc"
	"github.com/krisarmstrong/hmeshd/platform/pcapnet"
	"github.com/krisarmstrong/hmeshd/platform/snmpagent"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Abstraction Layer daemon",
	Long: `Start the IEEE 1905.1/1a Abstraction Layer entity: bind the given
local interfaces, join the 1905 multicast/broadcast topology exchange, and
serve the ALME management port.`,
	RunE: runRun,
}

var runOpts struct {
	alMAC      string
	interfaces string
	wholeNet   bool
	registrar  string
	verbosity  int
	port       int
	configPath string
	statsFile  string
	statsEvery time.Duration
	storePath  string
	tui        bool
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runOpts.alMAC, "al-mac", "m", "", "AL entity MAC address (required)")
	f.StringVarP(&runOpts.interfaces, "interfaces", "i", "", "comma-separated local interface names (required)")
	f.BoolVarP(&runOpts.wholeNet, "whole-network", "w", false, "accepted but has no effect: discovery covers direct neighbors only")
	f.StringVarP(&runOpts.registrar, "registrar", "r", "", "interface name to act as Wi-Fi registrar on")
	f.CountVarP(&runOpts.verbosity, "verbose", "v", "accepted (repeatable) but has no effect: log output does not depend on it")
	f.IntVarP(&runOpts.port, "port", "p", 8888, "ALME TCP management port")
	f.StringVarP(&runOpts.configPath, "config", "c", "", "path to a registrar/device-identity YAML config file")
	f.StringVar(&runOpts.statsFile, "stats-file", "", "periodically export runtime counters to this file (.json or .csv by extension)")
	f.DurationVar(&runOpts.statsEvery, "stats-interval", 30*time.Second, "how often to write --stats-file")
	f.StringVar(&runOpts.storePath, "store", "", "path to a BoltDB file for run history and device last-seen records (disabled if empty)")
	f.BoolVar(&runOpts.tui, "tui", false, "show an interactive topology viewer in the foreground instead of waiting for a signal")
}

func runRun(cmd *cobra.Command, args []string) error {
	logging.InitColors(true)

	if runOpts.alMAC == "" || runOpts.interfaces == "" {
		return withExitCode(exitInvalidArgs, fmt.Errorf("both --al-mac and --interfaces are required"))
	}
	alMAC, err := model.ParseMAC(runOpts.alMAC)
	if err != nil {
		return withExitCode(exitInvalidArgs, err)
	}
	ifaceNames := strings.Split(runOpts.interfaces, ",")
	for i := range ifaceNames {
		ifaceNames[i] = strings.TrimSpace(ifaceNames[i])
	}
	if len(ifaceNames) == 0 || ifaceNames[0] == "" {
		return withExitCode(exitNoInterfaces, fmt.Errorf("no interfaces given"))
	}

	var cfg *config.Config
	if runOpts.configPath != "" {
		cfg, err = config.Load(runOpts.configPath)
		if err != nil {
			return withExitCode(exitInvalidArgs, fmt.Errorf("loading config: %w", err))
		}
		if err := config.Validate(cfg); err != nil {
			return withExitCode(exitInvalidArgs, fmt.Errorf("invalid config: %w", err))
		}
	}

	backend, err := pcapnet.Open(ifaceNames)
	if err != nil {
		return withExitCode(exitInterfaceError, fmt.Errorf("opening interfaces: %w", err))
	}
	if len(backend.Interfaces()) == 0 {
		backend.Close()
		return withExitCode(exitNoInterfaces, fmt.Errorf("no usable interfaces among %v", ifaceNames))
	}

	vendors := model.NewVendorRegistry()
	deviceInfo := wsc.DefaultDeviceInfo()
	var registrar *model.RegistrarConfig
	var markerPath string
	if cfg != nil {
		registrar, err = cfg.ToRegistrarConfig()
		if err != nil {
			backend.Close()
			return withExitCode(exitInvalidArgs, fmt.Errorf("registrar config: %w", err))
		}
		deviceInfo = cfg.ToDeviceInfo()
		markerPath = cfg.MarkerPath
	}
	if runOpts.registrar != "" && registrar == nil {
		logging.Warning("--registrar %s given but no config file supplies registrar BSS settings", runOpts.registrar)
	}

	var store *storage.Storage
	if runOpts.storePath != "" {
		store, err = storage.Open(runOpts.storePath)
		if err != nil {
			backend.Close()
			return withExitCode(exitOSError, fmt.Errorf("opening store: %w", err))
		}
	}

	loop := engine.NewLoop(engine.Config{
		LocalALMAC:     alMAC,
		Backend:        backend,
		DeviceTimeout:  60 * time.Second,
		Registrar:      registrar,
		Vendors:        vendors,
		DeviceInfo:     deviceInfo,
		MarkerPath:     markerPath,
		MarkerInterval: 2 * time.Second,
	})

	almeAddr := fmt.Sprintf(":%d", runOpts.port)
	almeServer, err := alme.NewServer(almeAddr, func(payload []byte) []byte {
		return loop.SubmitALME(payload, 5*time.Second)
	})
	if err != nil {
		backend.Close()
		return withExitCode(exitOSError, fmt.Errorf("starting ALME server: %w", err))
	}

	var snmpSrv *snmpagent.Server
	if cfg != nil && cfg.SNMP.Enabled {
		agent := snmpagent.NewAgent(loop.Graph(), cfg.SNMP.Community)
		snmpSrv, err = snmpagent.Listen(cfg.SNMP.Listen, agent)
		if err != nil {
			almeServer.Stop()
			backend.Close()
			return withExitCode(exitOSError, fmt.Errorf("starting SNMP agent: %w", err))
		}
		go func() {
			if err := snmpSrv.Serve(); err != nil {
				logging.Error("SNMP agent stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := almeServer.Serve(); err != nil {
			logging.Error("ALME server stopped: %v", err)
		}
	}()

	logging.Info("hmeshd AL entity %s starting on %v (ALME port %d)", alMAC, ifaceNames, runOpts.port)
	started := time.Now()
	go loop.Run()

	var statsStop chan struct{}
	if runOpts.statsFile != "" {
		statsStop = make(chan struct{})
		go runStatsExporter(loop, started, runOpts.statsFile, runOpts.statsEvery, statsStop)
	}

	var storeStop chan struct{}
	if store != nil {
		storeStop = make(chan struct{})
		go runDeviceSync(loop, store, 10*time.Second, storeStop)
	}

	if runOpts.tui {
		if err := tui.Run(loop); err != nil {
			logging.Warning("tui exited: %v", err)
		}
	} else {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
	}
	if statsStop != nil {
		close(statsStop)
	}
	if storeStop != nil {
		close(storeStop)
	}

	logging.Info("shutting down")
	loop.Stop()
	almeServer.Stop()
	if snmpSrv != nil {
		snmpSrv.Stop()
	}
	if store != nil {
		snap := loop.Stats.Snapshot()
		_ = store.SyncGraph(loop.Graph())
		if err := store.AddRun(storage.RunRecord{
			StartedAt:   started,
			Duration:    time.Since(started),
			LocalALMAC:  alMAC.String(),
			Interfaces:  ifaceNames,
			DeviceCount: loop.Graph().Count(),
			CMDURx:      snap.CMDURx,
			CMDUTx:      snap.CMDUTx,
			Errors:      snap.FramesDropped + snap.MalformedDropped,
		}); err != nil {
			logging.Warning("recording run history failed: %v", err)
		}
		store.Close()
	}
	if err := backend.Close(); err != nil {
		return withExitCode(exitOSError, err)
	}

	logging.Success("stopped cleanly")
	return nil
}

// runDeviceSync periodically writes every known device's last-seen record
// to the store, so a restart can report neighbors it hasn't re-discovered
// yet.
func runDeviceSync(loop *engine.Loop, store *storage.Storage, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := store.SyncGraph(loop.Graph()); err != nil {
				logging.Warning("device ledger sync failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}

// runStatsExporter writes a stats.Snapshot to path every interval until
// stop is closed. The extension picks the format: .csv or .json (default).
func runStatsExporter(loop *engine.Loop, started time.Time, path string, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	export := func() {
		snap := stats.Collect(loop, started)
		var err error
		if strings.HasSuffix(path, ".csv") {
			err = stats.ExportCSV(snap, path)
		} else {
			err = stats.ExportJSON(snap, path)
		}
		if err != nil {
			logging.Warning("stats export to %s failed: %v", path, err)
		}
	}

	for {
		select {
		case <-ticker.C:
			export()
		case <-stop:
			export()
			return
		}
	}
}
