package mapping

import (
	"time"
)

// OrderMapping is the GORM model for an imported order record. Identity is
// the order id; re-imports of the same order id are last-write-wins.
type OrderMapping struct {
	OrderID       string `gorm:"primaryKey;column:order_id;type:varchar(64)"`
	CustomerOrder string `gorm:"column:customer_order;index:idx_mapping_customer_order"`
	TrackingNo    string `gorm:"column:tracking_no;index:idx_mapping_tracking_no"`
	TransferNo    string `gorm:"column:transfer_no"`
	ChannelCode   string `gorm:"column:channel_code"`
	Platform      string `gorm:"column:platform"`
	ShopName      string `gorm:"column:shop_name"`
	BuyerID       string `gorm:"column:buyer_id"`
	Country       string `gorm:"column:country"`
	PostalCode    string `gorm:"column:postal_code"`
	SkuSummary    string `gorm:"column:sku_summary"`

	// NoTracking marks rows accepted with an empty or malformed tracking
	// number; alignment happens on a later import or fix.
	NoTracking bool `gorm:"column:no_tracking"`

	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;index:idx_mapping_updated_at"`
	PrintedAt *time.Time `gorm:"column:printed_at"`
	ShippedAt *time.Time `gorm:"column:shipped_at"`
}

// TableName returns the GORM table name.
func (OrderMapping) TableName() string { return "order_mappings" }
