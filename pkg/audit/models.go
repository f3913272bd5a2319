// Package audit provides an append-only event trail for the label engine:
// imports, fix actions, pack builds, rollbacks, and prints.
package audit

import (
	"time"
)

// Event types emitted by the engine.
const (
	EventImportOrders  = "import.orders"
	EventImportLabels  = "import.labels"
	EventAlignFix      = "align.fix"
	EventPackBuild     = "pack.build"
	EventPackRollback  = "pack.rollback"
	EventPrintMerge    = "print.merge"
	EventPrintReport   = "print.report"
	EventClientUpload  = "client.upload"
)

// EventRecord is the GORM model for one audit event. Rows are append-only;
// nothing in the engine updates or deletes them except retention cleanup.
type EventRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	EventType  string    `gorm:"column:event_type;index:idx_audit_type;not null"`
	Actor      string    `gorm:"column:actor;not null"`
	Outcome    string    `gorm:"column:outcome;index:idx_audit_outcome;not null"`
	TrackingNo string    `gorm:"column:tracking_no;index:idx_audit_tracking"`
	Version    string    `gorm:"column:version"`
	Detail     string    `gorm:"column:detail"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_audit_created_at;not null"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }
