// Command agorad is the orchestrator daemon: it wires together the
// transport, storage, launcher, registry and worker pool described
// across the internal packages and blocks until an OS signal or a
// remote shutdown message arrives.
//
// Grounded on the teacher's cmd/main.go bootstrap (env-driven config,
// a goroutine running the HTTP listener, signal.Notify + graceful
// Shutdown on SIGINT/SIGTERM), adapted from cobra-free getEnv/getEnvInt
// flag parsing to a spf13/cobra + spf13/pflag command, since nothing
// else in this family of tools uses a flat flag package and cobra is
// already part of the example corpus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agora-project/agorad/internal/config"
	"github.com/agora-project/agorad/internal/diag"
	"github.com/agora-project/agorad/internal/housekeeping"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/metrics"
	"github.com/agora-project/agorad/internal/queue"
	"github.com/agora-project/agorad/internal/registry"
	"github.com/agora-project/agorad/internal/storage"
	"github.com/agora-project/agorad/internal/storage/filetree"
	"github.com/agora-project/agorad/internal/storage/rediscache"
	"github.com/agora-project/agorad/internal/storage/sqlstore"
	"github.com/agora-project/agorad/internal/transport"
	"github.com/agora-project/agorad/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// flags mirrors every setting agorad serve accepts, before config
// file / default layering is applied.
type flags struct {
	transportURL      string
	transportUser     string
	transportPassword string

	storageBackend string
	storageRoot    string
	storageDriver  string
	storageDSN     string

	cacheRedisAddr string

	pluginRoot    string
	workspaceRoot string

	workers    int
	logLevel   string
	diagAddr   string
	configPath string
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	os.Exit(1)
}

// exitError carries the process exit code a failed serve run should
// produce: 1 for a bad flag/config (cobra's own argument validation
// also surfaces as this default), 2 for a fatal startup failure after
// flags parsed cleanly but before the worker pool started.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "agorad",
		Short: "agorad runs the online autotuning orchestrator",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "start the orchestrator daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(context.Background(), f)
		},
	}

	fl := serve.Flags()
	fl.StringVar(&f.transportURL, "transport-url", "", "message broker URL (e.g. nats://127.0.0.1:4222)")
	fl.StringVar(&f.transportUser, "transport-user", "", "message broker username")
	fl.StringVar(&f.transportPassword, "transport-password", "", "message broker password")
	fl.StringVar(&f.storageBackend, "storage-backend", "filetree", "storage backend: filetree|sqlstore")
	fl.StringVar(&f.storageRoot, "storage-root", "./data", "filetree storage root directory")
	fl.StringVar(&f.storageDriver, "storage-driver", "sqlite", "sqlstore driver: postgres|sqlite")
	fl.StringVar(&f.storageDSN, "storage-dsn", "", "sqlstore data source name (read by the sqlite driver only; the postgres driver does not use it)")
	fl.StringVar(&f.cacheRedisAddr, "cache-redis-addr", "", "redis address for read-through caching (empty disables caching)")
	fl.StringVar(&f.pluginRoot, "plugin-root", "./plugins", "directory containing plugin source trees")
	fl.StringVar(&f.workspaceRoot, "workspace-root", "./workspaces", "directory for per-invocation plugin workspaces")
	fl.IntVar(&f.workers, "workers", 8, "number of dispatch workers")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level: disabled|warning|info|pedantic|debug")
	fl.StringVar(&f.diagAddr, "diag-addr", ":9090", "address for the /healthz and /metrics HTTP server")
	fl.StringVar(&f.configPath, "config", "", "optional TOML config file layered under the flags above")

	root.AddCommand(serve)
	return root
}

// applyConfigFile layers the TOML file at f.configPath under the
// flags. The transport URL, user and password, the storage DSN and the
// Redis address (flags whose default is empty) take the file's value
// only while still empty, so a command-line value for them wins. Every
// other field takes the file's value whenever the file sets it: a flag
// left at its non-empty default cannot be told apart from one given on
// the command line, so for those fields the file overrides both.
func applyConfigFile(f *flags) error {
	if f.configPath == "" {
		return nil
	}
	file, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if f.transportURL == "" {
		f.transportURL = file.Transport.URL
	}
	if f.transportUser == "" {
		f.transportUser = file.Transport.User
	}
	if f.transportPassword == "" {
		f.transportPassword = file.Transport.Password
	}
	if file.Storage.Backend != "" {
		f.storageBackend = file.Storage.Backend
	}
	if file.Storage.Root != "" {
		f.storageRoot = file.Storage.Root
	}
	if file.Storage.Driver != "" {
		f.storageDriver = file.Storage.Driver
	}
	if f.storageDSN == "" {
		f.storageDSN = file.Storage.DSN
	}
	if f.cacheRedisAddr == "" {
		f.cacheRedisAddr = file.Cache.RedisAddr
	}
	if file.Plugins.Root != "" {
		f.pluginRoot = file.Plugins.Root
	}
	if file.Plugins.WorkspaceRoot != "" {
		f.workspaceRoot = file.Plugins.WorkspaceRoot
	}
	if file.Workers != 0 {
		f.workers = file.Workers
	}
	if file.LogLevel != "" {
		f.logLevel = file.LogLevel
	}
	if file.DiagAddr != "" {
		f.diagAddr = file.DiagAddr
	}
	return nil
}

func runServe(ctx context.Context, f *flags) error {
	if err := applyConfigFile(f); err != nil {
		return err
	}

	logger.Initialize(f.logLevel, true)
	log := logger.GetLogger()

	backend, err := openStorage(f)
	if err != nil {
		log.Error().Err(err).Msg("failed to open storage backend")
		return &exitError{code: 2, err: err}
	}
	defer backend.Close()

	var st storage.Adapter = backend
	if f.cacheRedisAddr != "" {
		st = rediscache.New(rediscache.Config{
			Addr:    f.cacheRedisAddr,
			Enabled: true,
			TTL:     time.Minute,
		}, backend)
	}

	if err := os.MkdirAll(f.workspaceRoot, 0o755); err != nil {
		log.Error().Err(err).Msg("workspace root is not writable")
		return &exitError{code: 2, err: err}
	}
	lnch := launcher.New(f.pluginRoot, f.workspaceRoot)

	inbox := queue.New(1024)
	remote, err := transport.New(transport.Config{
		URL:      f.transportURL,
		User:     f.transportUser,
		Password: f.transportPassword,
	}, inbox)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to transport")
		return &exitError{code: 2, err: err}
	}

	reg := registry.New(st, lnch, remote)
	if err := reg.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("failed to recover applications from storage")
		return &exitError{code: 2, err: err}
	}
	if err := remote.Start(); err != nil {
		log.Error().Err(err).Msg("failed to subscribe to transport")
		return &exitError{code: 2, err: err}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := worker.New(inbox, reg, remote, f.workers)
	pool.Start(reqCtx)
	poolDone := make(chan struct{})
	go func() {
		pool.Wait()
		close(poolDone)
	}()

	hk := housekeeping.New(reg, lnch)
	hk.Start(reqCtx)
	defer hk.Stop()

	metricsReg := prometheus.NewRegistry()
	metrics.Register(metricsReg)
	diagServer := diag.New(f.diagAddr, metricsReg, func() (int, bool) {
		return reg.Len(), true
	})
	diagServer.Start()
	defer diagServer.Shutdown(5 * time.Second)

	log.Info().
		Str("transport", f.transportURL).
		Str("storage_backend", f.storageBackend).
		Int("workers", f.workers).
		Str("diag_addr", f.diagAddr).
		Msg("agorad is ready")

	waitForShutdown(poolDone)

	log.Info().Msg("shutting down")
	inbox.Terminate()
	pool.Wait()
	reg.Shutdown()
	return nil
}

func openStorage(f *flags) (storage.Adapter, error) {
	switch f.storageBackend {
	case "filetree":
		return filetree.New(f.storageRoot)
	case "sqlstore":
		return sqlstore.New(sqlstore.Config{
			Driver: sqlstore.Driver(f.storageDriver),
			DSN:    f.storageDSN,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", f.storageBackend)
	}
}

// waitForShutdown blocks until either an OS signal arrives or the
// worker pool stops on its own, which happens when a remote "system"
// shutdown message closed the inbox: in that case there is nothing
// left to wait for a signal to interrupt.
func waitForShutdown(poolDone <-chan struct{}) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-poolDone:
	}
}
