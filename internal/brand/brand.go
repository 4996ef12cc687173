// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package brand provides the product identity constants shared by the
// agent, control server, and CLI: names, default directories, and the
// environment-variable prefix used for path overrides.
package brand

const (
	Name            = "Focus Shield"
	LowerName       = "focusshield"
	Vendor          = "grimm.is"
	ConfigEnvPrefix = "FOCUSSHIELD"

	DefaultConfigDir = "/etc/focusshield"
	DefaultStateDir  = "/var/lib/focusshield"
	DefaultLogDir    = "/var/log/focusshield"
	DefaultCacheDir  = "/var/cache/focusshield"
	DefaultRunDir    = "/var/run/focusshield"

	SocketName     = "agent.sock"
	AgentBinary    = "focusshield-agentd"
	ServerBinary   = "focusshieldd"
	CLIBinary      = "focusshieldctl"
	PolicyFileName = "policy.yaml"
	MirrorFileName = "agent-mirror.yaml"
	TokenFileName  = "token"

	Copyright = "Copyright (C) 2026 Ben Grimm"
	License   = "AGPL-3.0"
)
