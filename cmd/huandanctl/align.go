package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// scanReport mirrors the server's alignment report JSON.
type scanReport struct {
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

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the working index for discrepancies",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/align/scan", nil)
			if err != nil {
				return err
			}
			if outputFlag == "json" {
				return printJSON(body)
			}

			var report scanReport
			if err := json.Unmarshal(body, &report); err != nil {
				return fmt.Errorf("parsing report: %w", err)
			}

			fmt.Printf("orders: %d  labels: %d  aligned: %d\n",
				report.OrderTotal, report.LabelTotal, report.Aligned)
			printKeys("orphan orders", report.OrphanOrders)
			printKeys("orphan labels", report.OrphanLabels)
			printKeys("duplicate labels", report.DuplicateLabels)
			printKeys("duplicate orders", report.DuplicateOrders)
			if report.OrphanOrder+report.OrphanLabel+report.DuplicateLabel+report.DuplicateOrder == 0 {
				fmt.Println("index is clean; ready to build")
			}
			return nil
		},
	}
}

func newFixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Apply safe automatic fixes to the working index",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("POST", "/api/v1/align/fix", strings.NewReader("{}"))
			if err != nil {
				return err
			}
			if outputFlag == "json" {
				return printJSON(body)
			}

			var result struct {
				Resolved   int `json:"resolved"`
				Unresolved int `json:"unresolved"`
				Actions    []struct {
					TrackingNo string `json:"tracking_no"`
					Kind       string `json:"kind"`
					Detail     string `json:"detail,omitempty"`
				} `json:"actions"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing result: %w", err)
			}

			fmt.Printf("resolved: %d  unresolved: %d\n", result.Resolved, result.Unresolved)
			for _, action := range result.Actions {
				fmt.Printf("  %-24s %s %s\n", action.TrackingNo, action.Kind, action.Detail)
			}
			return nil
		},
	}
}

func printKeys(label string, keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Printf("%s (%d): %s\n", label, len(keys), strings.Join(keys, ", "))
}
