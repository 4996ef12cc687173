// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command focusshieldd is the unprivileged Control Server process
// (spec.md §4.3). It exposes the policy HTTP API on loopback and drives
// the enforcement agent over its IPC client.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/focusshield/internal/brand"
	"grimm.is/focusshield/internal/control"
	"grimm.is/focusshield/internal/install"
	"grimm.is/focusshield/internal/logging"
	"grimm.is/focusshield/internal/policy"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8743", "loopback address to listen on")
		policyPath = flag.String("policy", install.GetPolicyFile(), "policy document path")
		socketPath = flag.String("agent-socket", install.GetSocketPath(), "agent IPC socket path")
		tokenPath  = flag.String("token-file", install.GetTokenFile(), "bearer token file path")
		auditPath  = flag.String("audit-log", install.GetAuditLogFile(), "structured audit log path")
		logLevel   = flag.String("log-level", "", "log level override")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	logCfg.FilePath = fmt.Sprintf("%s/server.log", install.GetLogDir())
	logger := logging.New(logCfg)

	logger.Info("starting "+brand.Name+" control server", "version", brand.ServerBinary)

	store, err := policy.Load(*policyPath, logger, install.DefaultCategories())
	if err != nil {
		logger.Fatal("failed to load policy store", "error", err)
	}

	srv, err := control.New(control.Options{
		Store:     store,
		AgentSock: *socketPath,
		Logger:    logger,
		TokenPath: *tokenPath,
		AuditPath: *auditPath,
	})
	if err != nil {
		logger.Fatal("failed to construct control server", "error", err)
	}

	if err := srv.Startup(); err != nil {
		logger.Error("initial agent handshake failed, continuing to serve anyway", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.Watch(func() {
		if err := srv.Startup(); err != nil {
			logger.Warn("re-drive after out-of-band policy edit failed", "error", err)
		}
	})
	defer store.StopWatch()

	go srv.RunExpiryTicker(ctx)

	httpSrv := &http.Server{Addr: *addr, Handler: srv.Handler()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received termination signal, shutting down")
		cancel()
		httpSrv.Shutdown(context.Background())
	}()

	logger.Info("control server listening", "addr", *addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server exited with error", "error", err)
		os.Exit(1)
	}
}
