// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ipc implements the agent's local IPC endpoint: plain JSON
// request/response over a loopback unix socket with world-writable
// permission (spec.md §4.2 Operations, §6). It is intentionally not
// net/rpc or gRPC — the wire contract is the flat JSON object the spec
// names for each op, nothing more.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"time"

	"grimm.is/focusshield/internal/agent"
	"grimm.is/focusshield/internal/errors"
	"grimm.is/focusshield/internal/logging"
)

// Request is one IPC call. Op selects the handler; the remaining fields
// are interpreted per spec.md §4.2's op table and left blank when unused.
type Request struct {
	Op      string   `json:"op"`
	Domain  string   `json:"domain,omitempty"`
	Domains []string `json:"domains,omitempty"`
	Minutes int      `json:"minutes,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Response is the uniform reply envelope.
type Response struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Status *agent.Status `json:"status,omitempty"`
}

// Server accepts connections on a unix socket and dispatches each
// newline-delimited JSON Request to the Agent.
type Server struct {
	socketPath string
	agent      *agent.Agent
	logger     *logging.Logger
	listener   net.Listener
}

// NewServer returns a Server bound to socketPath (removed and recreated
// on Listen).
func NewServer(socketPath string, a *agent.Agent, logger *logging.Logger) *Server {
	return &Server{socketPath: socketPath, agent: a, logger: logger}
}

// Listen creates the socket with world-writable permission, per spec.md
// §4.2 ("loopback socket with world-writable permission") — any local
// process may speak to the agent; authorization for remote callers lives
// one layer up, in the control server's bearer token.
func (s *Server) Listen() error {
	os.Remove(s.socketPath)
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "listen on %s", s.socketPath)
	}
	if err := os.Chmod(s.socketPath, 0666); err != nil {
		l.Close()
		return errors.Wrapf(err, errors.KindInternal, "chmod %s", s.socketPath)
	}
	s.listener = l
	return nil
}

// Serve accepts connections until ctx is canceled or the listener is
// closed. Only StateServing accepts requests; earlier states return
// AgentUnavailable so callers retry (spec.md §4.2 State machine).
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, errors.KindInternal, "accept IPC connection")
			}
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			writeResponse(conn, Response{OK: false, Error: "malformed request: " + err.Error()})
			continue
		}
		writeResponse(conn, s.dispatch(req))
	}
}

func writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}

func (s *Server) dispatch(req Request) Response {
	if s.agent.State() != agent.StateServing {
		return Response{OK: false, Error: "agent not yet serving"}
	}

	var err error
	switch req.Op {
	case "blocklist":
		err = s.agent.SetBlocklist(req.Domains)
	case "grant":
		err = s.agent.Grant(req.Domain, req.Minutes, req.Reason)
	case "revoke":
		err = s.agent.Revoke(req.Domain)
	case "enforce-block":
		err = s.agent.EnforceBlock(req.Domain)
	case "enable":
		err = s.agent.Enable()
	case "disable":
		err = s.agent.Disable()
	case "flush-dns":
		err = s.agent.FlushDNS()
	case "clear":
		err = s.agent.Clear()
	case "status":
		st := s.agent.Status()
		return Response{OK: true, Status: &st}
	default:
		return Response{OK: false, Error: "unknown op: " + req.Op}
	}

	if err != nil {
		if s.logger != nil {
			s.logger.Error("IPC op failed", "op", req.Op, "domain", req.Domain, "error", err)
		}
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true}
}

// Close closes the listener.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
