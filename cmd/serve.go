package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kumalab/kaiwastats/internal/analyzer"
	"github.com/kumalab/kaiwastats/internal/config"
	"github.com/kumalab/kaiwastats/internal/coordinator"
	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/service"
	"github.com/kumalab/kaiwastats/internal/statscache"
)

type serveRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DataDir   string    `json:"data_dir"`
}

var (
	flagServeAddr    string
	flagServeDetach  bool
	flagServePIDFile string
	flagServeLogFile string
	flagServeChild   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion and stats daemon with HTTP/SSE endpoints",
	RunE:  runServe,
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runServeStatus,
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runServeStop,
}

func init() {
	serveCmd.PersistentFlags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (default from config)")
	serveCmd.PersistentFlags().StringVar(&flagServePIDFile, "pid-file", "", "PID file path (default under data dir)")
	serveCmd.PersistentFlags().StringVar(&flagServeLogFile, "log-file", "", "Log file path for detached mode")

	serveCmd.Flags().BoolVar(&flagServeDetach, "detach", false, "Run the daemon as a background process")
	serveCmd.Flags().BoolVar(&flagServeChild, "child", false, "Internal: mark detached child process")
	_ = serveCmd.Flags().MarkHidden("child")

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func servePaths(cfg config.Config) (pidFile, logFile, addr string) {
	pidFile = flagServePIDFile
	if pidFile == "" {
		pidFile = cfg.PIDPath()
	}
	logFile = flagServeLogFile
	if logFile == "" {
		logFile = filepath.Join(cfg.DataDir(), "serve.log")
	}
	addr = flagServeAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return pidFile, logFile, addr
}

func runServe(_ *cobra.Command, _ []string) error {
	if flagServeDetach && flagServeChild {
		return errors.New("invalid daemon launch mode")
	}
	if flagServeDetach {
		return startServeDetached()
	}
	return runServeForeground()
}

func startServeDetached() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile, logFile, addr := servePaths(cfg)

	if err := ensureServeNotRunning(pidFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(pidFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}

	logf, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logf
	child.Stderr = logf
	child.Stdin = nil
	child.Env = os.Environ()

	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidFile)
	fmt.Printf("  API: http://%s/v1/status\n", addr)
	fmt.Printf("  Log: %s\n", logFile)
	return nil
}

func runServeForeground() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile, _, addr := servePaths(cfg)

	if err := ensureServeNotRunning(pidFile); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pidFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(pidFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(pidFile) }()

	state := serveRuntimeState{
		PID:       pid,
		Addr:      addr,
		StartedAt: time.Now(),
		DataDir:   cfg.DataDir(),
	}
	_ = writeState(statePath(pidFile), state)
	defer func() { _ = os.Remove(statePath(pidFile)) }()

	logger := newLogger()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cache := statscache.New(st, logger)
	persisted, err := st.LoadAllStats()
	if err != nil {
		return err
	}
	cache.Warm(persisted)

	var svc *service.Service
	coord := coordinator.New(coordinator.Config{
		Cache:            cache,
		Source:           st,
		Analyzer:         analyzer.New(nil, cfg.Analysis.KeywordCloudCap, logger),
		Debounce:         cfg.Debounce(),
		ComputeTimeout:   cfg.ComputeTimeout(),
		SweepConcurrency: cfg.Scheduler.SweepConcurrency,
		OnStatsUpdated:   func(stats model.DeviceStats) { svc.PublishStatsUpdated(stats) },
		Logger:           logger,
	})

	svc = service.New(service.Config{
		Addr:          addr,
		SweepInterval: cfg.SweepInterval(),
		EventsBuffer:  cfg.Server.EventsBuffer,
	}, st, cache, coord, logger)

	fmt.Printf("  kaiwastats daemon listening on http://%s\n", addr)
	fmt.Printf("  Sweeping every %s, debounce %s\n", cfg.SweepInterval(), cfg.Debounce())
	fmt.Printf("  Stop with: kaiwastats serve stop --pid-file %s\n", pidFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServeStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile, _, addr := servePaths(cfg)

	pid, err := readPID(pidFile)
	if err != nil {
		fmt.Println("  Daemon: not running (pid file not found)")
		return nil
	}

	if !processAlive(pid) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	if st, err := readState(statePath(pidFile)); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status")
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API status: HTTP %d\n", resp.StatusCode)
		return nil
	}

	var st service.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Printf("  API status: malformed response (%v)\n", err)
		return nil
	}

	fmt.Printf("  Devices: %d\n", st.Devices)
	fmt.Printf("  Cached bundles: %d\n", st.CachedBundles)
	if st.LastSweepAt.IsZero() {
		fmt.Println("  Last sweep: pending")
	} else {
		fmt.Printf("  Last sweep: %s\n", st.LastSweepAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("  Sweep count: %d\n", st.SweepCount)
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return nil
}

func runServeStop(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile, _, _ := servePaths(cfg)

	pid, err := readPID(pidFile)
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(pidFile)
			_ = os.Remove(statePath(pidFile))
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureServeNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st serveRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (serveRuntimeState, error) {
	var st serveRuntimeState
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
