package versionpack

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/aidaddydog/huandan.server/pkg/trackno"
)

// Store persists version packs and owns the active version pointer.
// Active reads are a single atomic load so an in-flight merge resolves
// its whole request list against one pointer value; promote and rollback
// are a single atomic store behind the persisted meta row.
type Store struct {
	db *gorm.DB

	mu     sync.Mutex // serializes promote (db write + pointer swap)
	active atomic.Pointer[string]
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the pack tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&VersionPack{}, &PackEntry{}, &MetaKV{}); err != nil {
		return fmt.Errorf("auto-migrate version packs: %w", err)
	}
	return nil
}

// Init loads the active pointer: the persisted value if it still names an
// existing pack, otherwise the most recent pack, otherwise empty.
func (s *Store) Init() error {
	var meta MetaKV
	err := s.db.Where("key = ?", activeVersionKey).First(&meta).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("load active pointer: %w", err)
	}
	if err == nil && meta.Value != "" {
		pack, getErr := s.Get(meta.Value)
		if getErr != nil {
			return getErr
		}
		if pack != nil {
			s.active.Store(&pack.Version)
			return nil
		}
	}

	packs, err := s.List()
	if err != nil {
		return err
	}
	if len(packs) > 0 {
		s.active.Store(&packs[0].Version)
	}
	return nil
}

// Active returns the currently active version id, or "" when no pack has
// been promoted yet.
func (s *Store) Active() string {
	if v := s.active.Load(); v != nil {
		return *v
	}
	return ""
}

// Promote persists version as the active pointer and swaps the in-memory
// value. The caller must have verified the pack exists.
func (s *Store) Promote(version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var meta MetaKV
		err := tx.Where("key = ?", activeVersionKey).First(&meta).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(&MetaKV{Key: activeVersionKey, Value: version}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&MetaKV{}).Where("key = ?", activeVersionKey).
			Update("value", version).Error
	})
	if err != nil {
		return fmt.Errorf("persist active pointer: %w", err)
	}
	s.active.Store(&version)
	return nil
}

// List returns all packs, newest first. The daily sequence is compared
// numerically so a day with a hundred or more builds still orders
// correctly.
func (s *Store) List() ([]VersionPack, error) {
	var packs []VersionPack
	err := s.db.
		Order("substr(version, 1, 8) DESC, CAST(substr(version, 10) AS INTEGER) DESC").
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	return packs, nil
}

// Get retrieves a pack by version. Returns nil, nil if none exists.
func (s *Store) Get(version string) (*VersionPack, error) {
	var pack VersionPack
	err := s.db.Where("version = ?", version).First(&pack).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get pack %s: %w", version, err)
	}
	return &pack, nil
}

// Entries returns a pack's entries ordered by tracking number.
func (s *Store) Entries(version string) ([]PackEntry, error) {
	var entries []PackEntry
	err := s.db.Where("version = ?", version).
		Order("tracking_no ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", version, err)
	}
	return entries, nil
}

// Entry retrieves one entry by version and normalized tracking number.
// Returns nil, nil if the pack does not contain the tracking number.
func (s *Store) Entry(version, trackingNo string) (*PackEntry, error) {
	var entry PackEntry
	err := s.db.Where("version = ? AND tracking_no = ?", version, trackno.Normalize(trackingNo)).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry %s/%s: %w", version, trackingNo, err)
	}
	return &entry, nil
}

// Rollback repoints the active pointer to an existing pack. Rolling back
// to the already-active version is a no-op success. Packs are never
// deleted, so rollback is always repeatable and reversible.
func (s *Store) Rollback(version string) (string, error) {
	pack, err := s.Get(version)
	if err != nil {
		return "", err
	}
	if pack == nil {
		return "", fmt.Errorf("rollback %s: %w", version, ErrPackNotFound)
	}
	if s.Active() == version {
		return version, nil
	}
	if err := s.Promote(version); err != nil {
		return "", err
	}
	return version, nil
}

// NextVersion allocates the next version id for the given day:
// YYYYMMDD-NN, strictly greater than every existing id. The sequence scan
// is numeric, not lexicographic, so the allocation past "-99" is "-100"
// rather than a replay of an already-taken id.
func (s *Store) NextVersion(now time.Time) (string, error) {
	date := now.Format("20060102")

	var versions []string
	err := s.db.Model(&VersionPack{}).
		Where("version LIKE ?", date+"-%").
		Pluck("version", &versions).Error
	if err != nil {
		return "", fmt.Errorf("allocate version: %w", err)
	}

	maxSeq := 0
	for _, version := range versions {
		parts := strings.SplitN(version, "-", 2)
		seq, convErr := strconv.Atoi(parts[len(parts)-1])
		if convErr != nil {
			return "", fmt.Errorf("malformed version %q: %w", version, convErr)
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return fmt.Sprintf("%s-%02d", date, maxSeq+1), nil
}

// CreatePack inserts a pack and its entries in one transaction. A failure
// inserts nothing, so a half-built pack is never visible to List or
// Rollback.
func (s *Store) CreatePack(pack *VersionPack, entries []PackEntry) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pack).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create pack %s: %w", pack.Version, err)
	}
	return nil
}

// LabelBytes reads one label document out of a pack's zip file. Returns
// nil entry when the pack does not contain the tracking number.
func (s *Store) LabelBytes(version, trackingNo string) ([]byte, *PackEntry, error) {
	entry, err := s.Entry(version, trackingNo)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, nil
	}

	pack, err := s.Get(version)
	if err != nil {
		return nil, nil, err
	}
	if pack == nil {
		return nil, nil, fmt.Errorf("pack %s: %w", version, ErrPackNotFound)
	}

	reader, err := zip.OpenReader(pack.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open pack %s: %w", version, err)
	}
	defer reader.Close()

	want := "pdfs/" + entry.LabelFileName
	for _, f := range reader.File {
		if f.Name != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s in pack %s: %w", want, version, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s in pack %s: %w", want, version, err)
		}
		return data, entry, nil
	}
	return nil, nil, fmt.Errorf("pack %s is missing %s", version, want)
}
