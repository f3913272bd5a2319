// Package clientupdate distributes desktop client builds: admins upload a
// package per release channel, clients poll for anything newer than what
// they run.
package clientupdate

import (
	"time"
)

// ClientPackage is the GORM model for one uploaded client build.
type ClientPackage struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Channel    string    `gorm:"column:channel;index:idx_client_channel;not null"`
	Version    string    `gorm:"column:version;not null"`
	FileName   string    `gorm:"column:file_name;not null"`
	FilePath   string    `gorm:"column:file_path;not null"`
	SizeBytes  int64     `gorm:"column:size_bytes"`
	SHA256     string    `gorm:"column:sha256;type:varchar(64)"`
	Notes      string    `gorm:"column:notes"`
	UploadedAt time.Time `gorm:"column:uploaded_at;index:idx_client_uploaded_at;not null"`
}

// TableName returns the GORM table name.
func (ClientPackage) TableName() string { return "client_packages" }
