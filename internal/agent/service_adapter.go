// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package agent

import (
	"context"

	"grimm.is/focusshield/internal/services"
)

// serviceAdapter exposes the Agent through the services.Service lifecycle
// contract the teacher's supervisor uses for every long-running
// component. cmd/focusshield-agentd does not go through it; it calls
// Agent.Start and Agent.Drain directly.
type serviceAdapter struct {
	agent *Agent
}

// AsService adapts a to the services.Service interface.
func (a *Agent) AsService() services.Service { return &serviceAdapter{agent: a} }

func (s *serviceAdapter) Name() string { return "enforcement-agent" }

func (s *serviceAdapter) Start(ctx context.Context) error {
	return s.agent.Start(ctx)
}

func (s *serviceAdapter) Stop(ctx context.Context) error {
	s.agent.Drain()
	return nil
}

func (s *serviceAdapter) Status() services.ServiceStatus {
	st := s.agent.Status()
	return services.ServiceStatus{
		Name:    "enforcement-agent",
		Running: st.Running,
	}
}
