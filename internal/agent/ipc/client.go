// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"grimm.is/focusshield/internal/errors"
)

// Client speaks the agent's IPC protocol over a unix socket. It is the
// only way the control server touches enforcement (spec.md §9 "strict
// dependency order: policy store → agent IPC client → control server").
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a Client bound to socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// call sends req and waits for one Response line.
func (c *Client) call(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return Response{}, errors.Wrapf(err, errors.KindAgentUnavailable, "dial agent socket %s", c.socketPath)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, errors.Wrap(err, errors.KindInternal, "marshal IPC request")
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return Response{}, errors.Wrap(err, errors.KindAgentUnavailable, "write IPC request")
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Response{}, errors.Wrap(err, errors.KindAgentUnavailable, "read IPC response")
		}
		return Response{}, errors.New(errors.KindAgentUnavailable, "agent closed connection without a response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return Response{}, errors.Wrap(err, errors.KindAgentUnavailable, "unmarshal IPC response")
	}
	if !resp.OK {
		return resp, errors.New(errors.KindAgentUnavailable, resp.Error)
	}
	return resp, nil
}

// Blocklist sends the `blocklist` op with the control server's effective
// set (never the raw blocklist, spec.md §9 Open Questions).
func (c *Client) Blocklist(domains []string) error {
	_, err := c.call(Request{Op: "blocklist", Domains: domains})
	return err
}

// Grant sends the `grant` op.
func (c *Client) Grant(domain string, minutes int, reason string) error {
	_, err := c.call(Request{Op: "grant", Domain: domain, Minutes: minutes, Reason: reason})
	return err
}

// Revoke sends the `revoke` op.
func (c *Client) Revoke(domain string) error {
	_, err := c.call(Request{Op: "revoke", Domain: domain})
	return err
}

// EnforceBlock sends the `enforce-block` op.
func (c *Client) EnforceBlock(domain string) error {
	_, err := c.call(Request{Op: "enforce-block", Domain: domain})
	return err
}

// Enable sends the `enable` op.
func (c *Client) Enable() error {
	_, err := c.call(Request{Op: "enable"})
	return err
}

// Disable sends the `disable` op.
func (c *Client) Disable() error {
	_, err := c.call(Request{Op: "disable"})
	return err
}

// FlushDNS sends the `flush-dns` op.
func (c *Client) FlushDNS() error {
	_, err := c.call(Request{Op: "flush-dns"})
	return err
}

// ClearOp sends the `clear` op. (Named ClearOp to avoid colliding with
// any future Client.Clear convenience wrapper.)
func (c *Client) ClearOp() error {
	_, err := c.call(Request{Op: "clear"})
	return err
}

// Status sends the `status` op.
func (c *Client) Status() (Response, error) {
	return c.call(Request{Op: "status"})
}
