package domain

import (
	"encoding/json"
	"time"
)

// HistoryAction names the kind of change a ledger entry records.
type HistoryAction string

const (
	ActionCreate     HistoryAction = "create"
	ActionUpdate     HistoryAction = "update"
	ActionDelete     HistoryAction = "delete"
	ActionRollback   HistoryAction = "rollback"
	ActionBulkCreate HistoryAction = "bulk_create"
	ActionToggle     HistoryAction = "toggle"
	ActionPurgeCache HistoryAction = "purge_cache"
)

// Valid reports whether a is a known action.
func (a HistoryAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionRollback, ActionBulkCreate, ActionToggle, ActionPurgeCache:
		return true
	}
	return false
}

// HistoryEntry is an immutable record of one change applied to a settings aggregate.
type HistoryEntry struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenantId"`
	Module        Module            `json:"module"`
	Action        HistoryAction     `json:"action"`
	PreviousValue json.RawMessage   `json:"previousValue"`
	NewValue      json.RawMessage   `json:"newValue"`
	ChangedBy     string            `json:"changedBy"`
	IPAddress     string            `json:"ipAddress,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// HistoryFilter narrows ledger queries. Zero values mean "any".
type HistoryFilter struct {
	Module    Module
	Action    HistoryAction
	ChangedBy string
	From      time.Time
	To        time.Time
}

// HistoryPage is one page of ledger results, newest first.
type HistoryPage struct {
	Items []HistoryEntry `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// HistoryStat counts ledger entries per module and action.
type HistoryStat struct {
	Module             Module        `json:"module"`
	Action             HistoryAction `json:"action"`
	Count              int64         `json:"count"`
	DistinctActorCount int64         `json:"distinctActorCount"`
}

// ChangeEvent is broadcast after every settings mutation.
type ChangeEvent struct {
	TenantID   string        `json:"tenantId"`
	Module     Module        `json:"module"`
	Action     HistoryAction `json:"action"`
	Version    int           `json:"version,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}
