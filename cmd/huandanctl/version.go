package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// packInfo mirrors the server's version pack JSON.
type packInfo struct {
	Version     string `json:"version"`
	CreatedAt   string `json:"created_at"`
	EntryCount  int    `json:"entry_count"`
	SizeBytes   int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	Active      bool   `json:"active"`
	DownloadURL string `json:"url"`
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Freeze the working index into a new version pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("POST", "/api/v1/version/build", strings.NewReader("{}"))
			if err != nil {
				return err
			}
			if outputFlag == "json" {
				return printJSON(body)
			}

			var pack packInfo
			if err := json.Unmarshal(body, &pack); err != nil {
				return fmt.Errorf("parsing pack: %w", err)
			}
			fmt.Printf("built %s (%d entries, %d bytes)\n",
				pack.Version, pack.EntryCount, pack.SizeBytes)
			fmt.Printf("content hash: %s\n", pack.ContentHash)
			return nil
		},
	}
}

func newPacksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packs",
		Short: "List version packs",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/version/list", nil)
			if err != nil {
				return err
			}
			if outputFlag == "json" {
				return printJSON(body)
			}

			var resp struct {
				Active string     `json:"active"`
				Packs  []packInfo `json:"packs"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing packs: %w", err)
			}
			if len(resp.Packs) == 0 {
				fmt.Println("no version packs built yet")
				return nil
			}

			fmt.Printf("%-14s %-8s %-9s %-22s %s\n", "VERSION", "ACTIVE", "ENTRIES", "CREATED", "SIZE")
			for _, pack := range resp.Packs {
				active := ""
				if pack.Active {
					active = "*"
				}
				fmt.Printf("%-14s %-8s %-9d %-22s %d\n",
					pack.Version, active, pack.EntryCount, pack.CreatedAt, pack.SizeBytes)
			}
			return nil
		},
	}
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version>",
		Short: "Repoint the active version to an earlier pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{"version": args[0]})
			if err != nil {
				return err
			}
			body, err := globalClient.doRequest("POST", "/api/v1/version/rollback", strings.NewReader(string(payload)))
			if err != nil {
				return err
			}
			if outputFlag == "json" {
				return printJSON(body)
			}

			var resp struct {
				Active string `json:"active"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("active version is now %s\n", resp.Active)
			return nil
		},
	}
}
