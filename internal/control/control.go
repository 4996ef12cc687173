// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package control implements the Control Server (spec.md §4.3): the
// unprivileged process that exposes the policy HTTP API on loopback,
// enforces hard lockouts and grant-time caps, and drives the Enforcement
// Agent over its IPC client.
package control

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/focusshield/internal/agent/ipc"
	"grimm.is/focusshield/internal/control/metrics"
	"grimm.is/focusshield/internal/logging"
	"grimm.is/focusshield/internal/policy"
)

// TickerPeriod is the control server's defensive expiry ticker (spec.md
// §4.3: "Period 30s... defensive — the agent's own ticker is primary").
const TickerPeriod = 30 * time.Second

// Server holds the policy store, the agent IPC client, and everything
// needed to serve the HTTP API.
type Server struct {
	store   *policy.Store
	agent   *ipc.Client
	logger  *logging.Logger
	metrics *metrics.Metrics
	token   string
	audit   *auditLog

	router *mux.Router

	prevAllowanceCount int
}

// Options configures a new Server.
type Options struct {
	Store      *policy.Store
	AgentSock  string
	Logger     *logging.Logger
	TokenPath  string
	AuditPath  string
	Registry   *prometheus.Registry
}

// New constructs a Server and its HTTP router.
func New(opts Options) (*Server, error) {
	token, err := LoadOrCreateToken(opts.TokenPath)
	if err != nil {
		return nil, err
	}
	audit, err := newAuditLog(opts.AuditPath)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		store:   opts.Store,
		agent:   ipc.NewClient(opts.AgentSock),
		logger:  opts.Logger,
		metrics: metrics.New(reg),
		token:   token,
		audit:   audit,
	}
	s.router = s.buildRouter(reg)
	return s, nil
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Startup verifies the agent is reachable, computes the effective set,
// and drives it into the agent before serving (spec.md §4.3 Startup).
func (s *Server) Startup() error {
	if _, err := s.agent.Status(); err != nil {
		return err
	}
	if err := s.agent.Blocklist(s.store.EffectiveBlockSet()); err != nil {
		return err
	}
	if s.store.Shield() {
		return s.agent.Enable()
	}
	return s.agent.Disable()
}

// RunExpiryTicker runs the defensive 30s ticker until ctx is canceled
// (spec.md §4.3 Expiry ticker).
func (s *Server) RunExpiryTicker(ctx context.Context) {
	ticker := time.NewTicker(TickerPeriod)
	defer ticker.Stop()

	allowances, _ := s.store.ActiveAllowances()
	s.prevAllowanceCount = len(allowances)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce()
		}
	}
}

func (s *Server) tickOnce() {
	s.metrics.ExpirySweeps.Inc()

	allowances, err := s.store.ActiveAllowances()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to prune allowances during expiry tick", "error", err)
		}
		return
	}
	now := len(allowances)
	if now < s.prevAllowanceCount {
		if err := s.agent.Blocklist(s.store.EffectiveBlockSet()); err != nil && s.logger != nil {
			s.logger.Warn("defensive re-drive failed", "error", err)
		}
	}
	s.prevAllowanceCount = now
	s.refreshGauges()
}

func (s *Server) refreshGauges() {
	s.metrics.BlockedDomains.Set(float64(len(s.store.EffectiveBlockSet())))
	allowances, _ := s.store.ActiveAllowances()
	s.metrics.ActiveAllowances.Set(float64(len(allowances)))
	locks, _ := s.store.ActiveLocks()
	s.metrics.HardLockouts.Set(float64(len(locks)))
}

func (s *Server) buildRouter(reg *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/blocked", s.handleListBlocked).Methods(http.MethodGet)
	r.HandleFunc("/api/block", s.handleAddBlock).Methods(http.MethodPost)
	r.HandleFunc("/api/block/{domain}", s.handleRemoveBlock).Methods(http.MethodDelete)
	r.HandleFunc("/api/check/{domain}", s.handleCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/grant", s.handleGrant).Methods(http.MethodPost)
	r.HandleFunc("/api/grant/{domain}", s.handleRevoke).Methods(http.MethodDelete)
	r.HandleFunc("/api/allowances", s.handleAllowances).Methods(http.MethodGet)
	r.HandleFunc("/api/shield/enable", s.handleShieldEnable).Methods(http.MethodPost)
	r.HandleFunc("/api/shield/disable", s.handleShieldDisable).Methods(http.MethodPost)
	r.HandleFunc("/api/delayed", s.handleListDelayed).Methods(http.MethodGet)
	r.HandleFunc("/api/delay", s.handleAddDelay).Methods(http.MethodPost)
	r.HandleFunc("/api/delay/{domain}", s.handleRemoveDelay).Methods(http.MethodDelete)
	r.HandleFunc("/api/locks", s.handleListLocks).Methods(http.MethodGet)
	r.HandleFunc("/api/lock", s.handleAddLock).Methods(http.MethodPost)
	r.HandleFunc("/api/lock/{domain}", s.handleRemoveLock).Methods(http.MethodDelete)
	r.HandleFunc("/api/flush-dns", s.handleFlushDNS).Methods(http.MethodPost)

	r.HandleFunc("/tool", s.requireBearerToken(s.handleTool)).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}
