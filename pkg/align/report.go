// Package align reconciles the two halves of the working index: order
// records and label files, keyed by normalized tracking number.
package align

// Status classifies a tracking number by which sides of the index hold it.
// It is always derived from the current contents of the stores, never
// persisted, so it cannot go stale against its inputs.
type Status string

const (
	StatusAligned        Status = "aligned"
	StatusOrphanOrder    Status = "orphan_order"
	StatusOrphanLabel    Status = "orphan_label"
	StatusDuplicateLabel Status = "duplicate_label"
	StatusDuplicateOrder Status = "duplicate_order"
)

// Report is the discrepancy report produced by a scan. Key lists are
// sorted ascending so repeated scans over unchanged data are identical.
type Report struct {
	OrderTotal int `json:"order_total"`
	LabelTotal int `json:"label_total"`

	Aligned        int `json:"aligned"`
	OrphanOrder    int `json:"orphan_order"`
	OrphanLabel    int `json:"orphan_label"`
	DuplicateLabel int `json:"duplicate_label"`
	DuplicateOrder int `json:"duplicate_order"`

	OrphanOrders    []string `json:"orphan_orders"`
	OrphanLabels    []string `json:"orphan_labels"`
	DuplicateLabels []string `json:"duplicate_labels"`
	DuplicateOrders []string `json:"duplicate_orders"`
}

// Clean reports whether every tracking number is aligned.
func (r *Report) Clean() bool {
	return r.OrphanOrder == 0 && r.OrphanLabel == 0 &&
		r.DuplicateLabel == 0 && r.DuplicateOrder == 0
}

// StatusOf returns the status derived from per-key order and label counts.
func StatusOf(orderCount, labelCount int) Status {
	switch {
	case orderCount == 0:
		return StatusOrphanLabel
	case labelCount == 0:
		return StatusOrphanOrder
	case labelCount > 1:
		return StatusDuplicateLabel
	case orderCount > 1:
		return StatusDuplicateOrder
	default:
		return StatusAligned
	}
}
