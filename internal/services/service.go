// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package services defines a start/stop/status lifecycle contract. Its
// one implementation is the enforcement agent's adapter
// (agent.Agent.AsService); the individual enforcement surfaces do not
// implement it.
package services

import (
	"context"
)

// ServiceStatus represents the current state of a service.
type ServiceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Service defines the standard lifecycle methods for a long-running
// component.
type Service interface {
	// Name returns the unique name of the service.
	Name() string

	// Start prepares the service (opens the resources it needs).
	Start(ctx context.Context) error

	// Stop releases resources held by the service.
	Stop(ctx context.Context) error

	// Status returns the current status of the service.
	Status() ServiceStatus
}
