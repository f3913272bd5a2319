package labels

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aidaddydog/huandan.server/pkg/trackno"
)

// Store provides database and file operations for label PDFs. It owns the
// label half of the working alignment index: rows in sqlite, raw bytes on
// disk under dir.
type Store struct {
	db  *gorm.DB
	dir string
}

// NewStore creates a new Store persisting label bytes under dir.
func NewStore(db *gorm.DB, dir string) *Store {
	return &Store{db: db, dir: dir}
}

// AutoMigrate creates or updates the label_files table and the storage dir.
func (s *Store) AutoMigrate() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create label dir: %w", err)
	}
	if err := s.db.AutoMigrate(&LabelFile{}); err != nil {
		return fmt.Errorf("auto-migrate label_files: %w", err)
	}
	return nil
}

// WithTx returns a Store bound to the given transaction handle.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, dir: s.dir}
}

// Dir returns the on-disk label storage directory.
func (s *Store) Dir() string { return s.dir }

// Put writes label bytes to disk and records the row. The tracking number
// is normalized before storage. Bytes are stored under a unique name so a
// later duplicate for the same tracking number never overwrites an earlier
// file. The bytes land under a temporary non-pdf name and are renamed into
// place only after the row exists, so the directory watcher never sees a
// finished .pdf whose path is not yet in the index.
func (s *Store) Put(trackingNo, fileName, sourceArchive, batchID string, data []byte) (*LabelFile, error) {
	normalized := trackno.Normalize(trackingNo)
	if !trackno.Valid(normalized) {
		return nil, fmt.Errorf("invalid tracking number %q", trackingNo)
	}

	id := uuid.New().String()
	path := filepath.Join(s.dir, id+".pdf")
	tmp := filepath.Join(s.dir, id+".part")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write label file: %w", err)
	}

	sum := sha256.Sum256(data)
	record := &LabelFile{
		ID:            id,
		TrackingNo:    normalized,
		FileName:      fileName,
		FilePath:      path,
		SizeBytes:     int64(len(data)),
		SHA256:        hex.EncodeToString(sum[:]),
		SourceArchive: sourceArchive,
		BatchID:       batchID,
		IngestedAt:    time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("create label row: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = s.db.Delete(&LabelFile{}, "id = ?", id).Error
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("finalize label file: %w", err)
	}
	return record, nil
}

// Register records an already-present file (for example one dropped
// directly into the storage directory) without copying its bytes.
// Returns nil, nil if the path is already registered.
func (s *Store) Register(trackingNo, path string) (*LabelFile, error) {
	normalized := trackno.Normalize(trackingNo)
	if !trackno.Valid(normalized) {
		return nil, fmt.Errorf("invalid tracking number %q", trackingNo)
	}

	var existing LabelFile
	err := s.db.Where("file_path = ?", path).First(&existing).Error
	if err == nil {
		return nil, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("check registered path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}
	sum := sha256.Sum256(data)

	record := &LabelFile{
		ID:            uuid.New().String(),
		TrackingNo:    normalized,
		FileName:      filepath.Base(path),
		FilePath:      path,
		SizeBytes:     int64(len(data)),
		SHA256:        hex.EncodeToString(sum[:]),
		SourceArchive: "filesystem",
		IngestedAt:    time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("register label row: %w", err)
	}
	return record, nil
}

// All returns every label row. Used by the scanner to compute the
// label-side key set.
func (s *Store) All() ([]LabelFile, error) {
	var rows []LabelFile
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	return rows, nil
}

// ByTrackingNo returns the label rows for a normalized tracking number,
// newest ingested first.
func (s *Store) ByTrackingNo(trackingNo string) ([]LabelFile, error) {
	var rows []LabelFile
	err := s.db.Where("tracking_no = ?", trackno.Normalize(trackingNo)).
		Order("ingested_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find labels by tracking %s: %w", trackingNo, err)
	}
	return rows, nil
}

// Latest returns the most recently ingested label for a tracking number.
// Returns nil, nil if none exists.
func (s *Store) Latest(trackingNo string) (*LabelFile, error) {
	rows, err := s.ByTrackingNo(trackingNo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// SaveTrackingNo rewrites the tracking number of a label row. Used by the
// fixer's normalization pass.
func (s *Store) SaveTrackingNo(id, trackingNo string) error {
	result := s.db.Model(&LabelFile{}).Where("id = ?", id).
		Update("tracking_no", trackno.Normalize(trackingNo))
	if result.Error != nil {
		return fmt.Errorf("save tracking for label %s: %w", id, result.Error)
	}
	return nil
}

// Discard removes a label row and its backing file. The fixer uses this to
// drop superseded duplicates; the file removal is best-effort since the row
// is the source of truth.
func (s *Store) Discard(record *LabelFile) error {
	if err := s.db.Delete(&LabelFile{}, "id = ?", record.ID).Error; err != nil {
		return fmt.Errorf("discard label %s: %w", record.ID, err)
	}
	if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove label file %s: %w", record.FilePath, err)
	}
	return nil
}

// Read returns the raw bytes of a label file.
func (s *Store) Read(record *LabelFile) ([]byte, error) {
	data, err := os.ReadFile(record.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read label %s: %w", record.TrackingNo, err)
	}
	return data, nil
}
