// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package install resolves the on-disk locations the agent, the control
// server, and the CLI agree on: the policy document, the agent's mirror,
// the bearer-token file, and the loopback IPC socket. Every getter checks
// an environment override before falling back to the brand default.
package install

import (
	"os"
	"path/filepath"

	"grimm.is/focusshield/internal/brand"
)

// GetStateDir returns the state directory, checking env vars first.
// Priority: FOCUSSHIELD_STATE_DIR > FOCUSSHIELD_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "state")
	}
	return brand.DefaultStateDir
}

// GetLogDir returns the log directory, checking env vars first.
func GetLogDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return brand.DefaultLogDir
}

// GetConfigDir returns the config directory, checking env vars first.
func GetConfigDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return brand.DefaultConfigDir
}

// GetRunDir returns the runtime directory for the IPC socket.
func GetRunDir() string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	return brand.DefaultRunDir
}

// GetPolicyFile returns the control server's policy document path.
func GetPolicyFile() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_POLICY_FILE"); path != "" {
		return path
	}
	return filepath.Join(GetStateDir(), brand.PolicyFileName)
}

// GetMirrorFile returns the agent's own persisted mirror path.
func GetMirrorFile() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_MIRROR_FILE"); path != "" {
		return path
	}
	return filepath.Join(GetStateDir(), brand.MirrorFileName)
}

// GetTokenFile returns the bearer-token path (600 permissions, §6).
func GetTokenFile() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_TOKEN_FILE"); path != "" {
		return path
	}
	return filepath.Join(GetStateDir(), brand.TokenFileName)
}

// GetSocketPath returns the full path to the agent's loopback IPC socket.
func GetSocketPath() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_AGENT_SOCKET"); path != "" {
		return path
	}
	return filepath.Join(GetRunDir(), brand.SocketName)
}

// GetAuditLogFile returns the control server's structured audit log path
// (SPEC_FULL.md §12 Supplemented Features).
func GetAuditLogFile() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_AUDIT_LOG_FILE"); path != "" {
		return path
	}
	return filepath.Join(GetLogDir(), "audit.log")
}

// GetHostsPath returns the OS hosts file the agent's sentinel region is
// written to (spec.md §4.2 surface 1).
func GetHostsPath() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_HOSTS_FILE"); path != "" {
		return path
	}
	return "/etc/hosts"
}

// GetPFRulesPath returns the agent's pf anchor rules file (spec.md §6
// Packet-filter anchor).
func GetPFRulesPath() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_PF_RULES_FILE"); path != "" {
		return path
	}
	return filepath.Join(GetStateDir(), "focusshield.rules")
}

// GetPFConfPath returns the main pf.conf the agent ensures a reference
// line in.
func GetPFConfPath() string {
	if path := os.Getenv(brand.ConfigEnvPrefix + "_PF_CONF_FILE"); path != "" {
		return path
	}
	return "/etc/pf.conf"
}

// GetResolverAddr returns the trusted external resolver address (spec.md
// §6 Environment toggles), empty meaning the package default.
func GetResolverAddr() string {
	return os.Getenv(brand.ConfigEnvPrefix + "_RESOLVER_ADDR")
}
