// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package control

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"grimm.is/focusshield/internal/errors"
)

// auditRecord is one line of the structured audit log (SPEC_FULL.md §12
// Supplemented Features): the observable trail behind spec.md §7's rule
// that errors which *increase* enforcement are logged and the call is
// still reported as success.
type auditRecord struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
	Domain string    `json:"domain,omitempty"`
	Detail string    `json:"detail,omitempty"`
	OK     bool      `json:"ok"`
}

// auditLog appends single-line JSON records to a file under the log
// directory.
type auditLog struct {
	mu   sync.Mutex
	file *os.File
}

func newAuditLog(path string) (*auditLog, error) {
	if path == "" {
		return &auditLog{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "create audit log directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "open audit log %s", path)
	}
	return &auditLog{file: f}, nil
}

func (a *auditLog) record(action, domain, detail string, ok bool) {
	if a == nil || a.file == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := auditRecord{Time: time.Now(), Action: action, Domain: domain, Detail: detail, OK: ok}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')
	a.file.Write(data)
}
