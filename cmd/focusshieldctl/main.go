// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command focusshieldctl is a thin, unprivileged HTTP client against the
// control server's loopback REST API (SPEC_FULL.md §12 Supplemented
// Features). It is not a new surface — every subcommand maps directly
// onto an endpoint spec.md §4.3 already specifies.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mitchellh/go-ps"

	"grimm.is/focusshield/internal/brand"
)

var (
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	allowedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	client := newAPIClient(baseURLFromEnv())

	var err error
	switch os.Args[1] {
	case "status":
		err = runStatus(client)
	case "block":
		err = runBlock(client, os.Args[2:])
	case "unblock":
		err = runUnblock(client, os.Args[2:])
	case "check":
		err = runCheck(client, os.Args[2:])
	case "grant":
		err = runGrant(client, os.Args[2:])
	case "revoke":
		err = runRevoke(client, os.Args[2:])
	case "allowances":
		err = runAllowances(client)
	case "lock":
		err = runLock(client, os.Args[2:])
	case "delay":
		err = runDelay(client, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, blockedStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s — usage: %s <status|block|unblock|check|grant|revoke|allowances|lock|delay> [args]\n",
		brand.Name, brand.CLIBinary)
}

// daemonRunning mirrors the control server's own liveness check
// (SPEC_FULL.md §11 github.com/mitchellh/go-ps row) so `status` can warn
// from the local process table when the agent process is not running.
func daemonRunning(executable string) bool {
	procs, err := ps.Processes()
	if err != nil {
		return false
	}
	for _, p := range procs {
		if p.Executable() == executable {
			return true
		}
	}
	return false
}
