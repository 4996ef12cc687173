// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"flag"
	"fmt"
	"strconv"

	"grimm.is/focusshield/internal/brand"
)

func runStatus(c *apiClient) error {
	st, err := c.do("GET", "/status", nil)
	if err != nil {
		return err
	}

	shield := headerStyle.Render("shield:")
	shieldVal := allowedStyle.Render("off")
	if on, _ := st["shield"].(bool); on {
		shieldVal = blockedStyle.Render("on")
	}
	fmt.Printf("%s %s\n", shield, shieldVal)
	fmt.Printf("%s %.0f\n", headerStyle.Render("blocked domains:"), st["blocked_count"])
	fmt.Printf("%s %.0f\n", headerStyle.Render("active allowances:"), st["active_allowances"])

	if !daemonRunning(brand.AgentBinary) {
		fmt.Println(lockedStyle.Render("warning:"), "enforcement agent process not found")
	}
	return nil
}

func runBlock(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("block", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: block <domain>")
	}
	_, err := c.do("POST", "/api/block", map[string]string{"domain": fs.Arg(0)})
	if err == nil {
		fmt.Println(blockedStyle.Render("blocked:"), fs.Arg(0))
	}
	return err
}

func runUnblock(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("unblock", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: unblock <domain>")
	}
	_, err := c.do("DELETE", "/api/block/"+fs.Arg(0), nil)
	if err == nil {
		fmt.Println(allowedStyle.Render("unblocked:"), fs.Arg(0))
	}
	return err
}

func runCheck(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: check <domain>")
	}
	resp, err := c.do("GET", "/api/check/"+fs.Arg(0), nil)
	if err != nil {
		return err
	}
	if blocked, _ := resp["blocked"].(bool); blocked {
		fmt.Println(blockedStyle.Render("blocked"), fs.Arg(0))
	} else {
		fmt.Println(allowedStyle.Render("allowed"), fs.Arg(0))
	}
	if locked, _ := resp["locked"].(bool); locked {
		fmt.Println(lockedStyle.Render("hard-locked"))
	}
	return nil
}

func runGrant(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("grant", flag.ExitOnError)
	minutes := fs.Int("minutes", 5, "allowance length in minutes (1-30)")
	reason := fs.String("reason", "", "reason for the allowance")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: grant <domain> [-minutes N] [-reason text]")
	}
	resp, err := c.do("POST", "/api/grant", map[string]any{
		"domain": fs.Arg(0), "minutes": *minutes, "reason": *reason,
	})
	if err == nil {
		fmt.Println(allowedStyle.Render("granted:"), fs.Arg(0), "for", strconv.Itoa(*minutes), "minutes")
		_ = resp
	}
	return err
}

func runRevoke(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: revoke <domain>")
	}
	_, err := c.do("DELETE", "/api/grant/"+fs.Arg(0), nil)
	if err == nil {
		fmt.Println(blockedStyle.Render("revoked:"), fs.Arg(0))
	}
	return err
}

func runAllowances(c *apiClient) error {
	resp, err := c.do("GET", "/api/allowances", nil)
	if err != nil {
		return err
	}
	allowances, _ := resp["allowances"].([]any)
	if len(allowances) == 0 {
		fmt.Println("no active allowances")
		return nil
	}
	fmt.Println(headerStyle.Render("active allowances:"))
	for _, raw := range allowances {
		a, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  %s (%v min remaining)\n", a["domain"], a["remaining_minutes"])
	}
	return nil
}

func runLock(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	until := fs.String("until", "", "lockout end date, YYYY-MM-DD")
	fs.Parse(args)
	if fs.NArg() < 1 || *until == "" {
		return fmt.Errorf("usage: lock <domain> -until YYYY-MM-DD")
	}
	_, err := c.do("POST", "/api/lock", map[string]string{"domain": fs.Arg(0), "until": *until})
	if err == nil {
		fmt.Println(lockedStyle.Render("locked:"), fs.Arg(0), "until", *until)
	}
	return err
}

func runDelay(c *apiClient, args []string) error {
	fs := flag.NewFlagSet("delay", flag.ExitOnError)
	remove := fs.Bool("remove", false, "remove from the delay list instead of adding")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: delay <domain> [-remove]")
	}
	if *remove {
		_, err := c.do("DELETE", "/api/delay/"+fs.Arg(0), nil)
		return err
	}
	_, err := c.do("POST", "/api/delay", map[string]string{"domain": fs.Arg(0)})
	return err
}
