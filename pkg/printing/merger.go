// Package printing merges label PDFs out of the active version pack into a
// single print-ready document. It never reads the working index: what gets
// printed is exactly what the active pack froze.
package printing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/aidaddydog/huandan.server/pkg/trackno"
	"github.com/aidaddydog/huandan.server/pkg/versionpack"
)

// ErrNothingToMerge is returned when none of the requested tracking
// numbers resolve against the active pack.
var ErrNothingToMerge = errors.New("no requested label found in active version")

// MissingError is returned in strict mode when any requested tracking
// number is absent from the active pack. No document is produced.
type MissingError struct {
	Missing []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%d tracking numbers missing from active version", len(e.Missing))
}

// Concatenator joins PDF documents into one output stream.
type Concatenator interface {
	Concat(docs []io.ReadSeeker, w io.Writer) error
}

// pdfcpuConcatenator merges with pdfcpu, no divider pages.
type pdfcpuConcatenator struct{}

func (pdfcpuConcatenator) Concat(docs []io.ReadSeeker, w io.Writer) error {
	return api.MergeRaw(docs, w, false, nil)
}

// NewConcatenator returns the production pdfcpu-backed Concatenator.
func NewConcatenator() Concatenator { return pdfcpuConcatenator{} }

// MergeRequest is one print job: tracking numbers in the order the
// warehouse wants them printed.
type MergeRequest struct {
	TrackingNos []string `json:"tracking_nos"`
	Strict      bool     `json:"strict"`
}

// MergeResult carries the merged document plus what resolved and what
// did not.
type MergeResult struct {
	Version  string
	Document []byte
	Merged   []string
	Missing  []string
}

// Merger resolves print jobs against the active version pack.
type Merger struct {
	packs  *versionpack.Store
	concat Concatenator
	logger *slog.Logger
}

// NewMerger creates a Merger. A nil concat selects the pdfcpu backend.
func NewMerger(packs *versionpack.Store, concat Concatenator, logger *slog.Logger) *Merger {
	if concat == nil {
		concat = NewConcatenator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{packs: packs, concat: concat, logger: logger}
}

// Merge resolves the request against the active pack. The output preserves
// request order; repeated tracking numbers are merged once at their first
// position. Missing numbers are reported, not fatal, unless Strict is set.
func (m *Merger) Merge(req MergeRequest) (*MergeResult, error) {
	active := m.packs.Active()
	if active == "" {
		return nil, versionpack.ErrNoActiveVersion
	}

	result := &MergeResult{Version: active}
	var docs []io.ReadSeeker
	seen := make(map[string]bool)
	for _, raw := range req.TrackingNos {
		no := trackno.Normalize(raw)
		if no == "" || seen[no] {
			continue
		}
		seen[no] = true

		data, entry, err := m.packs.LabelBytes(active, no)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", no, err)
		}
		if entry == nil {
			result.Missing = append(result.Missing, no)
			continue
		}
		docs = append(docs, bytes.NewReader(data))
		result.Merged = append(result.Merged, no)
	}

	if req.Strict && len(result.Missing) > 0 {
		return nil, &MissingError{Missing: result.Missing}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("version %s: %w", active, ErrNothingToMerge)
	}

	var out bytes.Buffer
	if err := m.concat.Concat(docs, &out); err != nil {
		return nil, fmt.Errorf("merge %d labels: %w", len(docs), err)
	}
	result.Document = out.Bytes()

	m.logger.Info("merged print document",
		"version", active, "merged", len(result.Merged), "missing", len(result.Missing))
	return result, nil
}
