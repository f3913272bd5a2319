package versionpack

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/aidaddydog/huandan.server/pkg/align"
	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
)

// Builder freezes the working index into a new version pack. Build is
// all-or-nothing: it refuses a non-clean index, writes the pack zip to a
// temp file first, and only promotes after both the file and the rows
// exist.
type Builder struct {
	db       *gorm.DB
	orders   *mapping.Store
	labels   *labels.Store
	packs    *Store
	packsDir string
	logger   *slog.Logger

	mu sync.Mutex // one build in flight
}

// NewBuilder creates a Builder writing pack zips under packsDir.
func NewBuilder(db *gorm.DB, orders *mapping.Store, labelStore *labels.Store, packs *Store, packsDir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		db:       db,
		orders:   orders,
		labels:   labelStore,
		packs:    packs,
		packsDir: packsDir,
		logger:   logger,
	}
}

// buildItem is one aligned tracking number captured during the snapshot
// read, with label bytes already loaded so the zip write happens outside
// the transaction.
type buildItem struct {
	entry PackEntry
	data  []byte
}

// manifestEntry is one row of the mapping.json manifest inside a pack.
type manifestEntry struct {
	TrackingNo    string `json:"tracking_no"`
	OrderID       string `json:"order_id"`
	CustomerOrder string `json:"customer_order,omitempty"`
	LabelFile     string `json:"label_file"`
	LabelSHA256   string `json:"label_sha256"`
}

// manifest is the mapping.json document inside a pack zip.
type manifest struct {
	Version     string          `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	EntryCount  int             `json:"entry_count"`
	ContentHash string          `json:"content_hash"`
	Entries     []manifestEntry `json:"entries"`
}

// Build snapshots the working index into a new immutable pack and
// promotes it to active. A non-clean index returns *BuildError and leaves
// everything unchanged, including the previously active pack.
func (b *Builder) Build() (*VersionPack, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		items  []buildItem
		report *align.Report
	)
	err := b.db.Transaction(func(tx *gorm.DB) error {
		orders := b.orders.WithTx(tx)
		labelStore := b.labels.WithTx(tx)

		r, err := align.NewScanner(orders, labelStore).Scan()
		if err != nil {
			return err
		}
		report = r
		if !r.Clean() {
			return &BuildError{
				Reason: fmt.Sprintf("index is not aligned: %d orphan orders, %d orphan labels, %d duplicate labels, %d duplicate orders",
					r.OrphanOrder, r.OrphanLabel, r.DuplicateLabel, r.DuplicateOrder),
				Report: r,
			}
		}

		rows, err := orders.AllWithTracking()
		if err != nil {
			return err
		}
		for _, row := range rows {
			label, err := labelStore.Latest(row.TrackingNo)
			if err != nil {
				return err
			}
			if label == nil {
				return fmt.Errorf("label for %s vanished during build", row.TrackingNo)
			}
			data, err := labelStore.Read(label)
			if err != nil {
				return err
			}
			items = append(items, buildItem{
				entry: PackEntry{
					TrackingNo:    row.TrackingNo,
					OrderID:       row.OrderID,
					CustomerOrder: row.CustomerOrder,
					LabelFileName: row.TrackingNo + ".pdf",
					LabelSHA256:   label.SHA256,
					SizeBytes:     label.SizeBytes,
				},
				data: data,
			})
		}
		return nil
	})
	if err != nil {
		var buildErr *BuildError
		if errors.As(err, &buildErr) {
			return nil, buildErr
		}
		return nil, fmt.Errorf("snapshot working index: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.TrackingNo < items[j].entry.TrackingNo
	})

	now := time.Now()
	version, err := b.packs.NextVersion(now)
	if err != nil {
		return nil, err
	}

	hash := contentHash(items)
	path, size, err := b.writeZip(version, now, hash, items)
	if err != nil {
		return nil, err
	}

	entries := make([]PackEntry, len(items))
	for i, item := range items {
		item.entry.Version = version
		entries[i] = item.entry
	}
	pack := &VersionPack{
		Version:     version,
		CreatedAt:   now,
		EntryCount:  len(entries),
		SizeBytes:   size,
		ContentHash: hash,
		FilePath:    path,
	}
	if err := b.packs.CreatePack(pack, entries); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if err := b.packs.Promote(version); err != nil {
		return nil, err
	}

	b.logger.Info("built version pack",
		"version", version, "entries", len(entries),
		"size_bytes", size, "report_aligned", report.Aligned)
	return pack, nil
}

// writeZip writes the pack to a temp file and renames it into place, so a
// crashed build never leaves a partial zip under the final name.
func (b *Builder) writeZip(version string, createdAt time.Time, hash string, items []buildItem) (string, int64, error) {
	if err := os.MkdirAll(b.packsDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create packs dir: %w", err)
	}

	final := filepath.Join(b.packsDir, version+".zip")
	tmp, err := os.CreateTemp(b.packsDir, "."+version+"-*.zip.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("create temp pack: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	zw := zip.NewWriter(tmp)

	man := manifest{
		Version:     version,
		CreatedAt:   createdAt,
		EntryCount:  len(items),
		ContentHash: hash,
	}
	for _, item := range items {
		man.Entries = append(man.Entries, manifestEntry{
			TrackingNo:    item.entry.TrackingNo,
			OrderID:       item.entry.OrderID,
			CustomerOrder: item.entry.CustomerOrder,
			LabelFile:     "pdfs/" + item.entry.LabelFileName,
			LabelSHA256:   item.entry.LabelSHA256,
		})
	}
	manData, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		cleanup()
		return "", 0, fmt.Errorf("encode manifest: %w", err)
	}
	w, err := zw.Create("mapping.json")
	if err != nil {
		cleanup()
		return "", 0, fmt.Errorf("write manifest: %w", err)
	}
	if _, err := w.Write(manData); err != nil {
		cleanup()
		return "", 0, fmt.Errorf("write manifest: %w", err)
	}

	for _, item := range items {
		w, err := zw.Create("pdfs/" + item.entry.LabelFileName)
		if err != nil {
			cleanup()
			return "", 0, fmt.Errorf("write %s: %w", item.entry.LabelFileName, err)
		}
		if _, err := w.Write(item.data); err != nil {
			cleanup()
			return "", 0, fmt.Errorf("write %s: %w", item.entry.LabelFileName, err)
		}
	}

	if err := zw.Close(); err != nil {
		cleanup()
		return "", 0, fmt.Errorf("finalize pack zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("close pack zip: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("publish pack zip: %w", err)
	}

	info, err := os.Stat(final)
	if err != nil {
		return "", 0, fmt.Errorf("stat pack zip: %w", err)
	}
	return final, info.Size(), nil
}

// contentHash digests the sorted entry lines so two packs with identical
// content carry identical hashes regardless of build time.
func contentHash(items []buildItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(item.entry.TrackingNo)
		sb.WriteByte('|')
		sb.WriteString(item.entry.OrderID)
		sb.WriteByte('|')
		sb.WriteString(item.entry.LabelSHA256)
		sb.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
