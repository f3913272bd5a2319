package labels

import (
	"time"
)

// LabelFile is the GORM model for an ingested shipping-label PDF. The key
// is the normalized tracking number derived from the file name; more than
// one row may exist per tracking number (a duplicate_label discrepancy)
// until the fixer keeps the latest and discards the rest.
type LabelFile struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TrackingNo    string    `gorm:"column:tracking_no;index:idx_label_tracking_no;not null"`
	FileName      string    `gorm:"column:file_name;not null"`
	FilePath      string    `gorm:"column:file_path;uniqueIndex:idx_label_file_path;not null"`
	SizeBytes     int64     `gorm:"column:size_bytes"`
	SHA256        string    `gorm:"column:sha256;type:varchar(64)"`
	SourceArchive string    `gorm:"column:source_archive"`
	BatchID       string    `gorm:"column:batch_id;index:idx_label_batch"`
	IngestedAt    time.Time `gorm:"column:ingested_at;index:idx_label_ingested_at;not null"`
}

// TableName returns the GORM table name.
func (LabelFile) TableName() string { return "label_files" }
