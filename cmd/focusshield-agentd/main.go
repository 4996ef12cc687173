// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command focusshield-agentd is the privileged Enforcement Agent process
// (spec.md §4.2). It owns the host-override table and the packet-filter
// anchor, accepts IPC from the control server, and runs the expiry
// sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/focusshield/internal/agent"
	"grimm.is/focusshield/internal/agent/ipc"
	"grimm.is/focusshield/internal/brand"
	"grimm.is/focusshield/internal/install"
	"grimm.is/focusshield/internal/logging"
)

func main() {
	var (
		mirrorPath  = flag.String("mirror", install.GetMirrorFile(), "agent mirror policy file")
		hostsPath   = flag.String("hosts", install.GetHostsPath(), "hosts file to manage")
		pfRules     = flag.String("pf-rules", install.GetPFRulesPath(), "pf anchor rules file")
		pfConf      = flag.String("pf-conf", install.GetPFConfPath(), "pf.conf to reference the anchor from")
		socketPath  = flag.String("socket", install.GetSocketPath(), "IPC socket path")
		resolverAddr = flag.String("resolver", install.GetResolverAddr(), "trusted external resolver address")
		logLevel    = flag.String("log-level", "", "log level override")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	logCfg.FilePath = fmt.Sprintf("%s/agent.log", install.GetLogDir())
	logger := logging.New(logCfg)

	logger.Info("starting "+brand.Name+" enforcement agent", "version", brand.AgentBinary)

	a, err := agent.New(agent.Config{
		MirrorPath:   *mirrorPath,
		HostsPath:    *hostsPath,
		PFRulesPath:  *pfRules,
		PFConfPath:   *pfConf,
		ResolverAddr: *resolverAddr,
	}, logger)
	if err != nil {
		logger.Fatal("failed to construct agent", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		logger.Fatal("failed to restore enforcement before serving", "error", err)
	}

	srv := ipc.NewServer(*socketPath, a, logger)
	if err := srv.Listen(); err != nil {
		logger.Fatal("failed to listen on IPC socket", "error", err)
	}

	go a.RunExpirySweep(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received termination signal, draining")
		a.Drain()
		cancel()
		srv.Close()
	}()

	logger.Info("agent serving", "socket", *socketPath)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("IPC server exited with error", "error", err)
		os.Exit(1)
	}
}
