// Command kerneld runs one node of the microkernel actor runtime: it loads
// NodeConfig, wires logging, constructs the kernel, namespace, and built-in
// services, and drives the runtime's event loop until shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/foundation42/microkernel/internal/config"
	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/guest"
	"github.com/foundation42/microkernel/internal/kernel/ns"
	"github.com/foundation42/microkernel/internal/kernel/reload"
	"github.com/foundation42/microkernel/internal/kernel/services"
	"github.com/foundation42/microkernel/internal/kernel/supervisor"
	"github.com/foundation42/microkernel/internal/kernel/transport"
	"github.com/foundation42/microkernel/internal/logging"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to an optional YAML config file")
		logDir      = flag.String("log-dir", "", "Directory for rotating log files (empty disables file logging)")
		maxLogFiles = flag.Int("max-log-files", logging.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogSize  = flag.Int("max-log-file-size", logging.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
		unixListen  = flag.String("unix-listen", "", "Unix-domain socket path to accept a peer node on (empty disables)")
		auditDB     = flag.String("audit-db", "", "Path to the supervisor restart-audit sqlite database (empty disables durable audit)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, rotator, err := logging.New(*logDir, *maxLogFiles, *maxLogSize)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	if rotator != nil {
		defer rotator.Close()
	}

	kernel.UseLogger(logger.WithPrefix(kernel.Subsystem))
	ns.UseLogger(logger.WithPrefix(ns.Subsystem))
	transport.UseLogger(logger.WithPrefix(transport.Subsystem))
	supervisor.UseLogger(logger.WithPrefix(supervisor.Subsystem))
	guest.UseLogger(logger.WithPrefix(guest.Subsystem))
	reload.UseLogger(logger.WithPrefix(reload.Subsystem))
	services.UseLogger(logger.WithPrefix(services.Subsystem))

	logger.InfoS(context.Background(), "Starting kerneld", "node_id", cfg.NodeID,
		"mailbox_capacity", cfg.MailboxCapacity, "state_root", cfg.StateRoot)

	rt := kernel.NewRuntime(kernel.Config{
		NodeID:                 cfg.NodeID,
		DefaultMailboxCapacity: cfg.MailboxCapacity,
		TimerPoolCapacity:      cfg.TimerPoolCapacity,
	})

	namespace := ns.New(rt, cfg.NameTableCapacity, 256)

	stateStore, err := services.NewStateStore(cfg.StateRoot)
	if err != nil {
		log.Fatalf("Failed to initialize state store: %v", err)
	}
	keys, err := stateStore.List("kerneld")
	if err != nil {
		logger.WarnS(context.Background(), "Failed to list daemon state keys", "error", err)
	}
	logger.InfoS(context.Background(), "State store ready", "root", cfg.StateRoot,
		"daemon_keys", len(keys))

	var auditSink *services.AuditSQLiteSink
	if *auditDB != "" {
		auditSink, err = services.OpenAuditSink(*auditDB)
		if err != nil {
			log.Fatalf("Failed to open restart audit sink: %v", err)
		}
		defer auditSink.Close()

		logger.InfoS(context.Background(), "Restart audit sink ready", "path", *auditDB)
	}

	loggerActorID := services.SpawnLogger(rt, nil)
	namespace.Register("/sys/log", loggerActorID)

	if *unixListen != "" {
		t, err := transport.ListenUnix(cfg.NodeID+1, *unixListen)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", *unixListen, err)
		}
		if !rt.RegisterTransport(t) {
			log.Fatalf("Failed to register transport: slot limit reached")
		}
		logger.InfoS(context.Background(), "Listening for peer node", "path", *unixListen)
	}

	if cfg.ReloadWatchDir != "" {
		watcher, err := reload.NewWatcher(rt, cfg.ReloadWatchDir,
			func(name string) (kernel.ID, bool) {
				return namespace.Lookup(name)
			},
			nil, false, namespace)
		if err != nil {
			logger.WarnS(context.Background(), "Failed to start reload watcher",
				"dir", cfg.ReloadWatchDir, "error", err)
		} else {
			defer watcher.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.InfoS(context.Background(), "Received signal, shutting down", "signal", sig)
		cancel()
		rt.StopRuntime()

		sig = <-sigCh
		logger.InfoS(context.Background(), "Received signal again, forcing exit", "signal", sig)
		os.Exit(1)
	}()

	for !rt.Stopped() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !rt.Step() && rt.IsEmpty() && !rt.HasEventSources() {
			return
		}
	}
}
