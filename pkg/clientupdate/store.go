package clientupdate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultChannel is used when an upload or check names no channel.
const DefaultChannel = "stable"

// Store provides database and file operations for client packages.
type Store struct {
	db  *gorm.DB
	dir string
}

// NewStore creates a Store persisting package bytes under dir.
func NewStore(db *gorm.DB, dir string) *Store {
	return &Store{db: db, dir: dir}
}

// AutoMigrate creates or updates the client_packages table and the storage
// dir.
func (s *Store) AutoMigrate() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create client packages dir: %w", err)
	}
	if err := s.db.AutoMigrate(&ClientPackage{}); err != nil {
		return fmt.Errorf("auto-migrate client_packages: %w", err)
	}
	return nil
}

// Put stores an uploaded client build.
func (s *Store) Put(channel, version, fileName, notes string, data []byte) (*ClientPackage, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	if version == "" {
		return nil, fmt.Errorf("version is required")
	}

	id := uuid.New().String()
	path := filepath.Join(s.dir, id+filepath.Ext(fileName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write client package: %w", err)
	}

	sum := sha256.Sum256(data)
	record := &ClientPackage{
		ID:         id,
		Channel:    channel,
		Version:    version,
		FileName:   fileName,
		FilePath:   path,
		SizeBytes:  int64(len(data)),
		SHA256:     hex.EncodeToString(sum[:]),
		Notes:      notes,
		UploadedAt: time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("create client package row: %w", err)
	}
	return record, nil
}

// Latest returns the newest upload on a channel. Returns nil, nil if the
// channel has no packages.
func (s *Store) Latest(channel string) (*ClientPackage, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	var record ClientPackage
	err := s.db.Where("channel = ?", channel).
		Order("uploaded_at DESC").
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("latest client package: %w", err)
	}
	return &record, nil
}

// Get retrieves one package by id. Returns nil, nil if none exists.
func (s *Store) Get(id string) (*ClientPackage, error) {
	var record ClientPackage
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get client package: %w", err)
	}
	return &record, nil
}

// List returns all packages, newest first.
func (s *Store) List() ([]ClientPackage, error) {
	var records []ClientPackage
	if err := s.db.Order("uploaded_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list client packages: %w", err)
	}
	return records, nil
}

// NewerThan reports whether candidate is a newer version than current.
// Versions are dotted numerics ("1.4.2"); non-numeric segments compare as
// strings. An empty current always updates.
func NewerThan(candidate, current string) bool {
	if current == "" {
		return candidate != ""
	}
	cand := strings.Split(candidate, ".")
	curr := strings.Split(current, ".")
	for i := 0; i < len(cand) || i < len(curr); i++ {
		a, b := segment(cand, i), segment(curr, i)
		an, aerr := strconv.Atoi(a)
		bn, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			if an != bn {
				return an > bn
			}
			continue
		}
		if a != b {
			return a > b
		}
	}
	return false
}

func segment(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}
