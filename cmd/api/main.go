package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/njprem/regdocs/internal/config"
	"github.com/njprem/regdocs/internal/logging"
	"github.com/njprem/regdocs/internal/ragflow"
	miniorepo "github.com/njprem/regdocs/internal/repository/minio"
	"github.com/njprem/regdocs/internal/repository/postgres"
	"github.com/njprem/regdocs/internal/service"
	transport "github.com/njprem/regdocs/internal/transport/http"
	"github.com/njprem/regdocs/internal/util"
)

func main() {
	cfg := config.Load()

	if cfg.LogstashTCPAddr != "" {
		writer, err := logging.NewLogstashWriter(logging.LogstashConfig{Addr: cfg.LogstashTCPAddr, Service: "regdocs-api"})
		if err != nil {
			log.Fatalf("logstash: %v", err)
		}
		defer writer.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, writer))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	minioClient, err := miniorepo.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
	if err != nil {
		log.Fatalf("minio: %v", err)
	}
	storage := miniorepo.NewStorage(minioClient)
	if err := storage.EnsureBucket(ctx, cfg.MinIOBucket); err != nil {
		log.Fatalf("minio bucket %s: %v", cfg.MinIOBucket, err)
	}

	var backend service.RagBackend
	if cfg.RagflowEnabled() {
		backend = ragflow.NewClient(ragflow.Config{
			BaseURL: cfg.RagflowBaseURL,
			APIKey:  cfg.RagflowAPIKey,
			Timeout: cfg.RagflowTimeout,
		})
		log.Printf("[ragflow] enabled at %s, default dataset %s", cfg.RagflowBaseURL, cfg.RagflowDataset)
	} else {
		log.Printf("[ragflow] disabled: RAGFLOW_BASE_URL or RAGFLOW_API_KEY not set")
	}
	ragService := service.NewRagService(backend, service.RagServiceConfig{
		DefaultDataset: cfg.RagflowDataset,
		UIBase:         cfg.RagflowUIBase,
	})

	documentService := service.NewDocumentService(
		postgres.NewDocumentRepo(db),
		postgres.NewDocumentVersionRepo(db),
		postgres.NewUploadLogRepo(db),
		storage,
		ragService,
		service.DocumentServiceConfig{
			Bucket:       cfg.MinIOBucket,
			Departments:  cfg.Departments,
			MaxFileBytes: cfg.UploadMaxBytes,
		},
	)
	bulkImportService := service.NewBulkImportService(documentService, service.BulkImportServiceConfig{
		Departments: cfg.Departments,
	})

	var jwtManager *util.JWTManager
	if cfg.AdminJWTSecret != "" {
		jwtManager = util.NewJWTManager(cfg.AdminJWTSecret, 0)
	} else {
		log.Printf("Warning: ADMIN_JWT_SECRET not set, admin routes are open")
	}
	admin := transport.RequireAdmin(jwtManager)

	e := transport.NewRouter(transport.RouterConfig{
		AllowOrigins: cfg.AllowOrigins,
		BodyLimit:    fmt.Sprintf("%dB", cfg.BulkImportMaxBytes),
		Checks: map[string]transport.HealthCheck{
			"database": func(ctx context.Context) (string, error) {
				return "ok", db.PingContext(ctx)
			},
			"storage": func(ctx context.Context) (string, error) {
				exists, err := minioClient.BucketExists(ctx, cfg.MinIOBucket)
				if err != nil {
					return "", err
				}
				if !exists {
					return "", fmt.Errorf("bucket %s missing", cfg.MinIOBucket)
				}
				return cfg.MinIOBucket, nil
			},
			"ragflow": ragService.Health,
		},
	})
	transport.RegisterDocuments(e, admin, documentService)
	transport.RegisterRagflow(e, admin, ragService)
	transport.RegisterBulkImports(e, admin, bulkImportService, cfg.BulkImportMaxBytes)
	transport.RegisterSwagger(e, cfg.SwaggerSpecPath)
	transport.RegisterPages(e, cfg.HomeURL)

	log.Printf("departments: %s; upload limit %s, bulk import limit %s",
		cfg.Departments, humanize.IBytes(uint64(cfg.UploadMaxBytes)), humanize.IBytes(uint64(cfg.BulkImportMaxBytes)))
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
