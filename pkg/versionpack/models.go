// Package versionpack snapshots the aligned working index into immutable,
// content-addressed version packs and tracks the active version pointer
// that the print pipeline reads from.
package versionpack

import (
	"time"
)

// VersionPack is the GORM model for one immutable snapshot. Once built, a
// pack's rows and zip file never change; rollback only moves the active
// pointer between existing packs.
type VersionPack struct {
	Version     string    `gorm:"primaryKey;column:version;type:varchar(32)"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_pack_created_at"`
	EntryCount  int       `gorm:"column:entry_count"`
	SizeBytes   int64     `gorm:"column:size_bytes"`
	ContentHash string    `gorm:"column:content_hash;type:varchar(64)"`
	FilePath    string    `gorm:"column:file_path;not null"`
}

// TableName returns the GORM table name.
func (VersionPack) TableName() string { return "version_packs" }

// PackEntry is one aligned tracking number frozen into a pack: exactly one
// order and one label.
type PackEntry struct {
	Version       string `gorm:"primaryKey;column:version;type:varchar(32)"`
	TrackingNo    string `gorm:"primaryKey;column:tracking_no;type:varchar(64)"`
	OrderID       string `gorm:"column:order_id;not null"`
	CustomerOrder string `gorm:"column:customer_order"`
	LabelFileName string `gorm:"column:label_file_name;not null"`
	LabelSHA256   string `gorm:"column:label_sha256;type:varchar(64)"`
	SizeBytes     int64  `gorm:"column:size_bytes"`
}

// TableName returns the GORM table name.
func (PackEntry) TableName() string { return "pack_entries" }

// MetaKV is a small key/value table for process-wide state, currently just
// the active version pointer.
type MetaKV struct {
	Key   string `gorm:"primaryKey;column:key;type:varchar(64)"`
	Value string `gorm:"column:value"`
}

// TableName returns the GORM table name.
func (MetaKV) TableName() string { return "meta_kv" }

const activeVersionKey = "active_version"
