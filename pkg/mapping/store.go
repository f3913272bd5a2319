package mapping

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aidaddydog/huandan.server/pkg/trackno"
)

// Store provides database operations for order mappings. It owns the order
// half of the working alignment index.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the order_mappings table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&OrderMapping{}); err != nil {
		return fmt.Errorf("auto-migrate order_mappings: %w", err)
	}
	return nil
}

// WithTx returns a Store bound to the given transaction handle. Used by the
// pack builder to take a consistent snapshot read.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Upsert inserts or updates a single order record keyed by order id.
// Returns true when a new row was created. Empty fields on the incoming
// row do not clobber existing values, matching re-import semantics where
// a sparser later export must not erase earlier data.
func (s *Store) Upsert(row *OrderMapping) (bool, error) {
	row.TrackingNo = trackno.Normalize(row.TrackingNo)
	row.NoTracking = !trackno.Valid(row.TrackingNo)

	var created bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing OrderMapping
		err := tx.Where("order_id = ?", row.OrderID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			created = true
			return tx.Create(row).Error
		}
		if err != nil {
			return err
		}
		merged := existing
		overlay(&merged, row)
		merged.UpdatedAt = time.Now()
		return tx.Save(&merged).Error
	})
	if err != nil {
		return false, fmt.Errorf("upsert order %s: %w", row.OrderID, err)
	}
	return created, nil
}

// overlay copies non-empty fields from src onto dst.
func overlay(dst, src *OrderMapping) {
	if src.CustomerOrder != "" {
		dst.CustomerOrder = src.CustomerOrder
	}
	if src.TrackingNo != "" {
		dst.TrackingNo = src.TrackingNo
		dst.NoTracking = src.NoTracking
	}
	if src.TransferNo != "" {
		dst.TransferNo = src.TransferNo
	}
	if src.ChannelCode != "" {
		dst.ChannelCode = src.ChannelCode
	}
	if src.Platform != "" {
		dst.Platform = src.Platform
	}
	if src.ShopName != "" {
		dst.ShopName = src.ShopName
	}
	if src.BuyerID != "" {
		dst.BuyerID = src.BuyerID
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.PostalCode != "" {
		dst.PostalCode = src.PostalCode
	}
	if src.SkuSummary != "" {
		dst.SkuSummary = src.SkuSummary
	}
}

// List returns a page of order records ordered by updated_at DESC, plus the
// total count. q filters rows by substring match on order id, customer
// order, tracking number, or buyer id.
func (s *Store) List(page, size int, q string) ([]OrderMapping, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	if size > 500 {
		size = 500
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		query := base.Model(&OrderMapping{})
		if q != "" {
			like := "%" + strings.TrimSpace(q) + "%"
			query = query.Where(
				"order_id LIKE ? OR customer_order LIKE ? OR tracking_no LIKE ? OR buyer_id LIKE ?",
				like, like, like, like)
		}
		return query
	}

	var total int64
	if err := buildQuery(s.db).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var rows []OrderMapping
	err := buildQuery(s.db).
		Order("updated_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return rows, total, nil
}

// AllWithTracking returns every order record carrying a non-empty tracking
// number. Used by the scanner to compute the order-side key set.
func (s *Store) AllWithTracking() ([]OrderMapping, error) {
	var rows []OrderMapping
	if err := s.db.Where("tracking_no <> ''").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load orders with tracking: %w", err)
	}
	return rows, nil
}

// FindByTrackingNo returns all order records for a normalized tracking
// number, newest update first.
func (s *Store) FindByTrackingNo(trackingNo string) ([]OrderMapping, error) {
	var rows []OrderMapping
	err := s.db.Where("tracking_no = ?", trackno.Normalize(trackingNo)).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find orders by tracking %s: %w", trackingNo, err)
	}
	return rows, nil
}

// FindByOrderOrCustomer returns the order record matching either the order
// id or the customer order number. Returns nil, nil if none matches.
func (s *Store) FindByOrderOrCustomer(code string) (*OrderMapping, error) {
	var row OrderMapping
	err := s.db.Where("order_id = ? OR customer_order = ?", code, code).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup order %s: %w", code, err)
	}
	return &row, nil
}

// SaveTrackingNo rewrites the stored tracking number of an order record.
// Used by the fixer's normalization pass.
func (s *Store) SaveTrackingNo(orderID, trackingNo string) error {
	normalized := trackno.Normalize(trackingNo)
	result := s.db.Model(&OrderMapping{}).Where("order_id = ?", orderID).
		Updates(map[string]any{
			"tracking_no": normalized,
			"no_tracking": !trackno.Valid(normalized),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("save tracking for order %s: %w", orderID, result.Error)
	}
	return nil
}

// MarkPrinted stamps printed_at on every order record for the tracking
// number. Reported by the desktop client after a successful print.
func (s *Store) MarkPrinted(trackingNo string) (int64, error) {
	result := s.db.Model(&OrderMapping{}).
		Where("tracking_no = ?", trackno.Normalize(trackingNo)).
		Update("printed_at", time.Now())
	if result.Error != nil {
		return 0, fmt.Errorf("mark printed %s: %w", trackingNo, result.Error)
	}
	return result.RowsAffected, nil
}
