package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aidaddydog/huandan.server/pkg/align"
	"github.com/aidaddydog/huandan.server/pkg/audit"
	"github.com/aidaddydog/huandan.server/pkg/clientupdate"
	"github.com/aidaddydog/huandan.server/pkg/importer"
	"github.com/aidaddydog/huandan.server/pkg/jobs"
	"github.com/aidaddydog/huandan.server/pkg/labels"
	"github.com/aidaddydog/huandan.server/pkg/mapping"
	"github.com/aidaddydog/huandan.server/pkg/printing"
	"github.com/aidaddydog/huandan.server/pkg/versionpack"
)

// Server owns the database, stores, and background workers of the label
// engine.
type Server struct {
	cfg    *Config
	logger *slog.Logger
	db     *gorm.DB

	orders     *mapping.Store
	labels     *labels.Store
	packs      *versionpack.Store
	auditStore *audit.Store
	jobStore   *jobs.JobStore
	clients    *clientupdate.Store

	scanner  *align.Scanner
	fixer    *align.Fixer
	builder  *versionpack.Builder
	merger   *printing.Merger
	ingestor *importer.Ingestor

	jobCfg   *jobs.JobConfig
	auditCfg *audit.Config

	wg sync.WaitGroup
}

// New opens the database, migrates every store, and wires the engine
// components together.
func New(cfg *Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		orders:     mapping.NewStore(db),
		labels:     labels.NewStore(db, cfg.LabelsDir),
		packs:      versionpack.NewStore(db),
		auditStore: audit.NewStore(db),
		jobStore:   jobs.NewJobStore(db),
		clients:    clientupdate.NewStore(db, cfg.ClientDir),
		jobCfg:     jobs.JobConfigFromEnv(),
		auditCfg:   audit.ConfigFromEnv(),
	}

	for name, migrate := range map[string]func() error{
		"orders":          s.orders.AutoMigrate,
		"labels":          s.labels.AutoMigrate,
		"version packs":   s.packs.AutoMigrate,
		"audit events":    s.auditStore.AutoMigrate,
		"ingest jobs":     s.jobStore.AutoMigrate,
		"client packages": s.clients.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	if err := s.packs.Init(); err != nil {
		return nil, fmt.Errorf("restore active version pointer: %w", err)
	}

	s.scanner = align.NewScanner(s.orders, s.labels)
	s.fixer = align.NewFixer(s.orders, s.labels, logger)
	s.builder = versionpack.NewBuilder(db, s.orders, s.labels, s.packs, cfg.PacksDir, logger)
	s.merger = printing.NewMerger(s.packs, nil, logger)
	s.ingestor = importer.NewIngestor(s.orders, s.labels, logger)

	if active := s.packs.Active(); active != "" {
		logger.Info("active version restored", "version", active)
	}
	return s, nil
}

// Start launches background workers: the ingest worker pool, the audit
// retention loop, and optionally the label directory watcher.
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pool := jobs.NewWorkerPool(s.jobStore, s.ingestor, s.jobCfg, s.logger)
		pool.Run(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		audit.RunRetention(ctx, s.auditStore, s.auditCfg, s.logger)
	}()

	if s.cfg.WatchLabels {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			watcher := labels.NewWatcher(s.labels, s.logger)
			if err := watcher.Run(ctx); err != nil {
				s.logger.Error("label watcher stopped", "error", err)
			}
		}()
	}
}

// Wait blocks until all background workers have stopped.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Routes mounts every API router and returns the root handler.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Principal"},
		ExposedHeaders:   []string{"X-Merge-Version", "X-Missing-Tracking-Nos"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/orders", mapping.Router(s.orders))
		r.Mount("/import", importer.Router(s.ingestor, s.jobStore, s.cfg.UploadsDir, s.auditStore, s.logger))
		r.Mount("/align", align.Router(s.scanner, s.fixer, s.auditStore, s.logger))
		r.Mount("/version", versionpack.Router(s.packs, s.builder, s.auditStore, s.logger))
		r.Mount("/print", printing.Router(s.merger, s.orders, s.auditStore, s.logger))
		r.Mount("/jobs", jobs.Router(s.jobStore))
		r.Mount("/audit", audit.Router(s.auditStore))
		r.Route("/client", func(r chi.Router) {
			r.Get("/mapping", versionpack.ActiveMappingHandler(s.packs))
			r.Get("/file/{trackingNo}", versionpack.ActiveLabelHandler(s.packs))
			r.Mount("/update", clientupdate.Router(s.clients, s.auditStore, s.logger))
		})
	})

	// Built pack zips are served straight off disk so the desktop client
	// can mirror a whole version in one download.
	packsFS := http.StripPrefix("/updates/packs/", http.FileServer(http.Dir(s.cfg.PacksDir)))
	r.Get("/updates/packs/*", func(w http.ResponseWriter, req *http.Request) {
		packsFS.ServeHTTP(w, req)
	})

	r.Get("/healthcheck", s.healthHandler)
	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"ok","active_version":%q}`, s.packs.Active())
}
