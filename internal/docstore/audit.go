// Keeps a bounded in-memory history of mutations per collection.

package docstore

import (
	"sync"
	"time"
)

// Action identifies the kind of mutation recorded in the audit log.
type Action string

// Mutation kinds.
const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// AuditEntry records one document mutation. Entries live only in process
// memory and are dropped oldest-first beyond the per-collection cap.
type AuditEntry struct {
	Action    Action    `json:"action"`
	Data      Document  `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const auditCap = 100

// auditLog is a bounded per-collection ring of mutation entries.
type auditLog struct {
	mu      sync.Mutex
	entries map[string][]AuditEntry
}

func newAuditLog() *auditLog {
	return &auditLog{entries: make(map[string][]AuditEntry)}
}

func (a *auditLog) record(collection string, action Action, data Document, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	logs := append(a.entries[collection], AuditEntry{
		Action:    action,
		Data:      data.Clone(),
		Timestamp: now,
	})
	if len(logs) > auditCap {
		logs = logs[len(logs)-auditCap:]
	}
	a.entries[collection] = logs
}

func (a *auditLog) get(collection string) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	logs := a.entries[collection]
	out := make([]AuditEntry, len(logs))
	copy(out, logs)
	return out
}
