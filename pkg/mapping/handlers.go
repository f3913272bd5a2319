package mapping

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// OrderRow is the API representation of an order record.
type OrderRow struct {
	OrderID       string `json:"order_id"`
	CustomerOrder string `json:"customer_order,omitempty"`
	TrackingNo    string `json:"tracking_no"`
	TransferNo    string `json:"transfer_no,omitempty"`
	ChannelCode   string `json:"channel_code,omitempty"`
	Platform      string `json:"platform,omitempty"`
	ShopName      string `json:"shop_name,omitempty"`
	BuyerID       string `json:"buyer_id,omitempty"`
	Country       string `json:"country,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	SkuSummary    string `json:"sku_summary,omitempty"`
	UpdatedAt     string `json:"updated_at"`
	PrintedAt     string `json:"printed_at,omitempty"`
	ShippedAt     string `json:"shipped_at,omitempty"`
}

// ListOrdersHandler handles GET /api/v1/orders?page&size&q
func ListOrdersHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
			page = v
		}
		size := 50
		if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 {
			size = v
		}
		q := r.URL.Query().Get("q")

		records, total, err := store.List(page, size, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list orders: %v", err))
			return
		}

		rows := make([]OrderRow, len(records))
		for i := range records {
			rows[i] = recordToRow(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"code":    0,
			"message": "ok",
			"data": map[string]any{
				"rows":  rows,
				"total": total,
			},
		})
	}
}

// LookupHandler handles GET /api/v1/orders/lookup?code=
// The desktop client resolves a scanned order or customer number to its
// tracking number.
func LookupHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}
		record, err := store.FindByOrderOrCustomer(code)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("lookup failed: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("order %q not found", code))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"order_id":    record.OrderID,
			"tracking_no": record.TrackingNo,
		})
	}
}

func recordToRow(rec *OrderMapping) OrderRow {
	row := OrderRow{
		OrderID:       rec.OrderID,
		CustomerOrder: rec.CustomerOrder,
		TrackingNo:    rec.TrackingNo,
		TransferNo:    rec.TransferNo,
		ChannelCode:   rec.ChannelCode,
		Platform:      rec.Platform,
		ShopName:      rec.ShopName,
		BuyerID:       rec.BuyerID,
		Country:       rec.Country,
		PostalCode:    rec.PostalCode,
		SkuSummary:    rec.SkuSummary,
		UpdatedAt:     rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.PrintedAt != nil {
		row.PrintedAt = rec.PrintedAt.Format(time.RFC3339)
	}
	if rec.ShippedAt != nil {
		row.ShippedAt = rec.ShippedAt.Format(time.RFC3339)
	}
	return row
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
