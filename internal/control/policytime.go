// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package control

import (
	"encoding/json"
	"time"
)

// policyTime marshals as a bare YYYY-MM-DD wall-clock date, matching
// spec.md §3's hard-lockout `until` field ("a wall-clock date").
type policyTime struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (t policyTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(dateLayout))
}

func (t *policyTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
