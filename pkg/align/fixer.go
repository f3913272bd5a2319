package align

import (
	"fmt"
	"log/slog"

	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
	"github.com/aidaddydog/huandan.server/pkg/trackno"
)

// Action records one mutation applied by the fixer, so the response is
// auditable.
type Action struct {
	TrackingNo string `json:"tracking_no"`
	Kind       string `json:"kind"`
	OldStatus  Status `json:"old_status"`
	NewStatus  Status `json:"new_status"`
	Detail     string `json:"detail,omitempty"`
}

const (
	ActionNormalizeOrder        = "normalize_order"
	ActionNormalizeLabel        = "normalize_label"
	ActionDiscardDuplicateLabel = "discard_duplicate_label"
)

// Result summarizes a fix run.
type Result struct {
	Resolved   int      `json:"resolved"`
	Unresolved int      `json:"unresolved"`
	Actions    []Action `json:"actions"`
}

// Fixer applies deterministic repair rules to the working index. Repairs
// never invent data: orphans without a counterpart stay unresolved, and
// re-running over an already-aligned index is a no-op.
type Fixer struct {
	orders  *mapping.Store
	labels  *labels.Store
	scanner *Scanner
	logger  *slog.Logger
}

// NewFixer creates a new Fixer over the working stores.
func NewFixer(orders *mapping.Store, labelStore *labels.Store, logger *slog.Logger) *Fixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fixer{
		orders:  orders,
		labels:  labelStore,
		scanner: NewScanner(orders, labelStore),
		logger:  logger,
	}
}

// Fix runs the repair rules in order: re-normalize stored tracking numbers,
// then resolve duplicate labels by keeping the most recently ingested file.
func (f *Fixer) Fix() (*Result, error) {
	before, err := f.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("pre-fix scan: %w", err)
	}
	oldStatus := statusIndex(before)

	// Rule 1: normalize stored tracking numbers and re-attempt the match.
	// Rows ingested through this engine are normalized on the way in, so
	// this pass only bites on data written by older tooling or by hand.
	normActions, err := f.normalizePass(oldStatus)
	if err != nil {
		return nil, err
	}

	// The rescan after each rule supplies the post-rule status for the
	// actions that rule recorded.
	mid, err := f.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("mid-fix scan: %w", err)
	}
	midStatus := statusIndex(mid)
	for i := range normActions {
		normActions[i].NewStatus = statusOrAligned(midStatus, normActions[i].TrackingNo)
	}
	actions := normActions

	// Rule 2: keep the most recently ingested label per duplicated key.
	var dupActions []Action
	for _, key := range mid.DuplicateLabels {
		resolved, err := f.resolveDuplicateLabel(key, statusOrAligned(oldStatus, key))
		if err != nil {
			return nil, err
		}
		dupActions = append(dupActions, resolved...)
	}

	// Rule 3 is implicit: orphans with no counterpart after normalization
	// are left untouched.
	after, err := f.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("post-fix scan: %w", err)
	}
	newStatus := statusIndex(after)
	for i := range dupActions {
		dupActions[i].NewStatus = statusOrAligned(newStatus, dupActions[i].TrackingNo)
	}
	actions = append(actions, dupActions...)

	resolved := 0
	for key, old := range oldStatus {
		if old == StatusAligned {
			continue
		}
		if status, ok := newStatus[key]; !ok || status == StatusAligned {
			resolved++
		}
	}

	result := &Result{
		Resolved:   resolved,
		Unresolved: after.OrphanOrder + after.OrphanLabel + after.DuplicateLabel + after.DuplicateOrder,
		Actions:    actions,
	}
	if result.Actions == nil {
		result.Actions = []Action{}
	}
	f.logger.Info("fix completed",
		"resolved", result.Resolved,
		"unresolved", result.Unresolved,
		"actions", len(result.Actions))
	return result, nil
}

// normalizePass rewrites any stored tracking number that differs from its
// normalized form, on both sides of the index. The caller fills each
// action's NewStatus from the rescan that follows the pass.
func (f *Fixer) normalizePass(oldStatus map[string]Status) ([]Action, error) {
	var actions []Action

	orderRows, err := f.orders.AllWithTracking()
	if err != nil {
		return nil, fmt.Errorf("normalize orders: %w", err)
	}
	for i := range orderRows {
		normalized := trackno.Normalize(orderRows[i].TrackingNo)
		if normalized == orderRows[i].TrackingNo {
			continue
		}
		if err := f.orders.SaveTrackingNo(orderRows[i].OrderID, normalized); err != nil {
			return nil, err
		}
		actions = append(actions, Action{
			TrackingNo: normalized,
			Kind:       ActionNormalizeOrder,
			OldStatus:  statusOrAligned(oldStatus, normalized),
			Detail:     fmt.Sprintf("order %s: %q -> %q", orderRows[i].OrderID, orderRows[i].TrackingNo, normalized),
		})
	}

	labelRows, err := f.labels.All()
	if err != nil {
		return nil, fmt.Errorf("normalize labels: %w", err)
	}
	for i := range labelRows {
		normalized := trackno.Normalize(labelRows[i].TrackingNo)
		if normalized == labelRows[i].TrackingNo {
			continue
		}
		if err := f.labels.SaveTrackingNo(labelRows[i].ID, normalized); err != nil {
			return nil, err
		}
		actions = append(actions, Action{
			TrackingNo: normalized,
			Kind:       ActionNormalizeLabel,
			OldStatus:  statusOrAligned(oldStatus, normalized),
			Detail:     fmt.Sprintf("label %s: %q -> %q", labelRows[i].ID, labelRows[i].TrackingNo, normalized),
		})
	}

	return actions, nil
}

// resolveDuplicateLabel keeps the most recently ingested label for key and
// discards the rest, recording one action per discard. The caller fills
// each action's NewStatus from the post-fix scan.
func (f *Fixer) resolveDuplicateLabel(key string, old Status) ([]Action, error) {
	rows, err := f.labels.ByTrackingNo(key)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	var actions []Action
	// Rows are ordered newest first; everything after the head goes.
	for i := 1; i < len(rows); i++ {
		if err := f.labels.Discard(&rows[i]); err != nil {
			return nil, fmt.Errorf("resolve duplicate %s: %w", key, err)
		}
		actions = append(actions, Action{
			TrackingNo: key,
			Kind:       ActionDiscardDuplicateLabel,
			OldStatus:  old,
			Detail:     fmt.Sprintf("discarded %s from %s", rows[i].FileName, rows[i].SourceArchive),
		})
	}
	return actions, nil
}

// statusOrAligned looks up key in a status index; absent keys are aligned
// (or unseen, which reads the same in an action record).
func statusOrAligned(index map[string]Status, key string) Status {
	if status, ok := index[key]; ok {
		return status
	}
	return StatusAligned
}

// statusIndex maps every non-aligned key in a report to its status.
// Aligned keys are omitted; absence means aligned (or unseen).
func statusIndex(report *Report) map[string]Status {
	index := make(map[string]Status)
	for _, key := range report.OrphanOrders {
		index[key] = StatusOrphanOrder
	}
	for _, key := range report.OrphanLabels {
		index[key] = StatusOrphanLabel
	}
	for _, key := range report.DuplicateLabels {
		index[key] = StatusDuplicateLabel
	}
	for _, key := range report.DuplicateOrders {
		index[key] = StatusDuplicateOrder
	}
	return index
}
