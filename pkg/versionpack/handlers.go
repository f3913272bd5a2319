package versionpack

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aidaddydog/huandan.server/pkg/audit"
)

// PackInfo is the API representation of a version pack.
type PackInfo struct {
	Version     string `json:"version"`
	CreatedAt   string `json:"created_at"`
	EntryCount  int    `json:"entry_count"`
	SizeBytes   int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	Active      bool   `json:"active"`
	DownloadURL string `json:"url"`
}

// BuildHandler handles POST /api/v1/version/build. A non-aligned index is
// refused with 409 and the alignment report, so the client can show what
// to fix.
func BuildHandler(builder *Builder, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pack, err := builder.Build()
		if err != nil {
			var buildErr *BuildError
			if errors.As(err, &buildErr) {
				writeJSON(w, http.StatusConflict, map[string]any{
					"error":  buildErr.Reason,
					"report": buildErr.Report,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("build failed: %v", err))
			return
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventPackBuild,
			Actor:     audit.Actor(r),
			Version:   pack.Version,
			Detail:    fmt.Sprintf("%d entries, %d bytes", pack.EntryCount, pack.SizeBytes),
		})
		writeJSON(w, http.StatusCreated, packToInfo(pack, true))
	}
}

// ListPacksHandler handles GET /api/v1/version/list
func ListPacksHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packs, err := store.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list packs: %v", err))
			return
		}
		active := store.Active()
		infos := make([]PackInfo, len(packs))
		for i := range packs {
			infos[i] = packToInfo(&packs[i], packs[i].Version == active)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"active": active,
			"packs":  infos,
		})
	}
}

// GetPackHandler handles GET /api/v1/version/{version}
func GetPackHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := chi.URLParam(r, "version")
		pack, err := store.Get(version)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get pack: %v", err))
			return
		}
		if pack == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("version %q not found", version))
			return
		}
		entries, err := store.Entries(version)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list entries: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pack":    packToInfo(pack, pack.Version == store.Active()),
			"entries": entries,
		})
	}
}

// RollbackHandler handles POST /api/v1/version/rollback?version=. The
// desktop client passes the target as a query parameter with an empty
// body; a JSON body {"version": ...} is accepted as a fallback.
func RollbackHandler(store *Store, auditStore *audit.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("version")
		if target == "" {
			var body struct {
				Version string `json:"version"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				target = body.Version
			}
		}
		if target == "" {
			writeError(w, http.StatusBadRequest, "version is required")
			return
		}

		version, err := store.Rollback(target)
		if err != nil {
			if errors.Is(err, ErrPackNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("version %q not found", target))
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("rollback failed: %v", err))
			return
		}

		audit.Try(auditStore, logger, &audit.EventRecord{
			EventType: audit.EventPackRollback,
			Actor:     audit.Actor(r),
			Version:   version,
		})
		writeJSON(w, http.StatusOK, map[string]string{"active": version})
	}
}

// ActiveMappingHandler handles GET /api/v1/client/mapping. The desktop
// client pulls the active pack's manifest to keep a local copy of the
// tracking-to-label mapping.
func ActiveMappingHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := store.Active()
		if active == "" {
			writeError(w, http.StatusNotFound, "no active version")
			return
		}
		entries, err := store.Entries(active)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load mapping: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version": active,
			"entries": entries,
		})
	}
}

// ActiveLabelHandler handles GET /api/v1/client/file/{trackingNo}. Serves
// one label PDF straight out of the active pack zip.
func ActiveLabelHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := store.Active()
		if active == "" {
			writeError(w, http.StatusNotFound, "no active version")
			return
		}
		trackingNo := chi.URLParam(r, "trackingNo")
		data, entry, err := store.LabelBytes(active, trackingNo)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read label: %v", err))
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("tracking number %q not in active version", trackingNo))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.LabelFileName))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func packToInfo(pack *VersionPack, active bool) PackInfo {
	return PackInfo{
		Version:     pack.Version,
		CreatedAt:   pack.CreatedAt.Format(time.RFC3339),
		EntryCount:  pack.EntryCount,
		SizeBytes:   pack.SizeBytes,
		ContentHash: pack.ContentHash,
		Active:      active,
		DownloadURL: "/updates/packs/" + pack.Version + ".zip",
	}
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
