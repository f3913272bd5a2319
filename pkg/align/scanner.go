package align

import (
	"fmt"
	"sort"

	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
	"github.com/aidaddydog/huandan.server/pkg/trackno"
)

// Scanner computes the discrepancy report between orders and labels. Scan
// is read-only and may be called any number of times without side effects.
type Scanner struct {
	orders *mapping.Store
	labels *labels.Store
}

// NewScanner creates a new Scanner over the working stores.
func NewScanner(orders *mapping.Store, labels *labels.Store) *Scanner {
	return &Scanner{orders: orders, labels: labels}
}

// Scan builds the alignment report from the current working index.
func (s *Scanner) Scan() (*Report, error) {
	orderCounts, orderTotal, err := s.orderCounts()
	if err != nil {
		return nil, err
	}
	labelCounts, labelTotal, err := s.labelCounts()
	if err != nil {
		return nil, err
	}
	return buildReport(orderCounts, labelCounts, orderTotal, labelTotal), nil
}

func (s *Scanner) orderCounts() (map[string]int, int, error) {
	rows, err := s.orders.AllWithTracking()
	if err != nil {
		return nil, 0, fmt.Errorf("scan orders: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for i := range rows {
		key := trackno.Normalize(rows[i].TrackingNo)
		if key == "" {
			continue
		}
		counts[key]++
	}
	return counts, len(rows), nil
}

func (s *Scanner) labelCounts() (map[string]int, int, error) {
	rows, err := s.labels.All()
	if err != nil {
		return nil, 0, fmt.Errorf("scan labels: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for i := range rows {
		counts[trackno.Normalize(rows[i].TrackingNo)]++
	}
	return counts, len(rows), nil
}

// buildReport classifies every key present on either side. Status is a
// pure function of the per-key counts.
func buildReport(orderCounts, labelCounts map[string]int, orderTotal, labelTotal int) *Report {
	report := &Report{
		OrderTotal:      orderTotal,
		LabelTotal:      labelTotal,
		OrphanOrders:    []string{},
		OrphanLabels:    []string{},
		DuplicateLabels: []string{},
		DuplicateOrders: []string{},
	}

	seen := make(map[string]bool, len(orderCounts)+len(labelCounts))
	for key := range orderCounts {
		seen[key] = true
	}
	for key := range labelCounts {
		seen[key] = true
	}

	for key := range seen {
		switch StatusOf(orderCounts[key], labelCounts[key]) {
		case StatusAligned:
			report.Aligned++
		case StatusOrphanOrder:
			report.OrphanOrders = append(report.OrphanOrders, key)
		case StatusOrphanLabel:
			report.OrphanLabels = append(report.OrphanLabels, key)
		case StatusDuplicateLabel:
			report.DuplicateLabels = append(report.DuplicateLabels, key)
		case StatusDuplicateOrder:
			report.DuplicateOrders = append(report.DuplicateOrders, key)
		}
	}

	sort.Strings(report.OrphanOrders)
	sort.Strings(report.OrphanLabels)
	sort.Strings(report.DuplicateLabels)
	sort.Strings(report.DuplicateOrders)

	report.OrphanOrder = len(report.OrphanOrders)
	report.OrphanLabel = len(report.OrphanLabels)
	report.DuplicateLabel = len(report.DuplicateLabels)
	report.DuplicateOrder = len(report.DuplicateOrders)
	return report
}
