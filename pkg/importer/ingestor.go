// Package importer parses uploaded order batches (CSV or XLSX) and zipped
// label archives into the working alignment index.
package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
	"github.com/aidaddydog/huandan.server/pkg/trackno"
)

// headerAliases maps canonical order fields to the column names seen in
// real platform exports, both English and Chinese.
var headerAliases = map[string][]string{
	"order_id":       {"order_id", "order id", "order no", "orderno", "订单号", "订单编号"},
	"customer_order": {"customer_order", "customer order", "customer no", "客户单号", "客户订单号"},
	"tracking_no":    {"tracking_no", "tracking no", "tracking number", "waybill", "运单号", "跟踪号", "快递单号"},
	"transfer_no":    {"transfer_no", "transfer no", "转单号"},
	"channel_code":   {"channel_code", "channel", "渠道", "渠道代码"},
	"platform":       {"platform", "平台"},
	"shop_name":      {"shop_name", "shop", "store", "店铺", "店铺名称"},
	"buyer_id":       {"buyer_id", "buyer", "买家id", "买家ID", "买家"},
	"country":        {"country", "国家", "国家/地区"},
	"postal_code":    {"postal_code", "postcode", "zip", "邮编", "邮政编码"},
	"sku_summary":    {"sku_summary", "sku", "items", "商品信息", "SKU信息"},
}

// OrderImportResult is the outcome of one order batch.
type OrderImportResult struct {
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Rejected int        `json:"rejected"`
	Errors   []RowError `json:"errors"`
}

// LabelImportResult is the outcome of one label archive. Duplicates are
// files whose tracking number was already seen; they are retained, not
// overwritten, and surface later as a scan discrepancy.
type LabelImportResult struct {
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Rejected   int        `json:"rejected"`
	Errors     []RowError `json:"errors"`
}

// Ingestor parses uploads into the working index stores.
type Ingestor struct {
	orders *mapping.Store
	labels *labels.Store
	logger *slog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(orders *mapping.Store, labelStore *labels.Store, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{orders: orders, labels: labelStore, logger: logger}
}

// IngestOrders parses a CSV or XLSX export and upserts each row by order
// id. A malformed row is rejected and the batch continues; an unparseable
// file returns *FormatError and writes nothing.
func (ing *Ingestor) IngestOrders(ctx context.Context, fileName string, r io.Reader) (*OrderImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(path.Ext(fileName)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, &FormatError{FileName: fileName, Reason: "expected .csv or .xlsx"}
	}
	if err != nil {
		return nil, &FormatError{FileName: fileName, Reason: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &FormatError{FileName: fileName, Reason: "file has no header row"}
	}

	columns, ok := mapHeader(rows[0])
	if !ok {
		return nil, &FormatError{FileName: fileName, Reason: "no order id column found"}
	}

	result := &OrderImportResult{}
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rowNum := i + 2 // 1-based, after header

		record := rowToRecord(row, columns)
		if record.OrderID == "" {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: "missing order id"})
			continue
		}

		created, err := ing.orders.Upsert(record)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	ing.logger.Info("ingested order batch",
		"file", fileName, "inserted", result.Inserted,
		"updated", result.Updated, "rejected", result.Rejected)
	return result, nil
}

// IngestLabelArchive extracts every PDF from a zip archive, keyed by
// filename stem. Repeated stems within the batch are all retained and
// counted as duplicates; the fixer sorts them out later.
func (ing *Ingestor) IngestLabelArchive(ctx context.Context, archiveName, batchID string, data []byte) (*LabelImportResult, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{FileName: archiveName, Reason: err.Error()}
	}

	result := &LabelImportResult{}
	seen := make(map[string]bool)
	for _, f := range reader.File {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if strings.HasPrefix(base, ".") {
			continue
		}
		if !strings.EqualFold(path.Ext(base), ".pdf") {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Message: fmt.Sprintf("%s: not a PDF", f.Name)})
			continue
		}

		stem := trackno.Normalize(strings.TrimSuffix(base, path.Ext(base)))
		if !trackno.Valid(stem) {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Message: fmt.Sprintf("%s: invalid tracking number", f.Name)})
			continue
		}

		rc, err := f.Open()
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Message: fmt.Sprintf("%s: %v", f.Name, err)})
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Message: fmt.Sprintf("%s: %v", f.Name, err)})
			continue
		}

		if _, err := ing.labels.Put(stem, base, archiveName, batchID, content); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, RowError{Message: fmt.Sprintf("%s: %v", f.Name, err)})
			continue
		}
		if seen[stem] {
			result.Duplicates++
		} else {
			seen[stem] = true
			result.Inserted++
		}
	}

	ing.logger.Info("ingested label archive",
		"archive", archiveName, "batch", batchID,
		"inserted", result.Inserted, "duplicates", result.Duplicates,
		"rejected", result.Rejected)
	return result, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // exports pad rows unevenly
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer book.Close()
	sheet := book.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return book.GetRows(sheet)
}

// mapHeader resolves the header row to canonical field positions. Returns
// false if no order id column can be found.
func mapHeader(header []string) (map[string]int, bool) {
	columns := make(map[string]int)
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for field, aliases := range headerAliases {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == strings.ToLower(alias) {
					columns[field] = i
					break
				}
			}
		}
	}
	_, ok := columns["order_id"]
	return columns, ok
}

func rowToRecord(row []string, columns map[string]int) *mapping.OrderMapping {
	cell := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return &mapping.OrderMapping{
		OrderID:       cell("order_id"),
		CustomerOrder: cell("customer_order"),
		TrackingNo:    cell("tracking_no"),
		TransferNo:    cell("transfer_no"),
		ChannelCode:   cell("channel_code"),
		Platform:      cell("platform"),
		ShopName:      cell("shop_name"),
		BuyerID:       cell("buyer_id"),
		Country:       cell("country"),
		PostalCode:    cell("postal_code"),
		SkuSummary:    cell("sku_summary"),
	}
}
