package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/regdocs")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")
	t.Setenv("MINIO_BUCKET_DOCUMENTS", "regdocs")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.RagflowDataset != "Regulation" {
		t.Fatalf("expected default dataset, got %s", cfg.RagflowDataset)
	}
	if cfg.RagflowTimeout != 60*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.RagflowTimeout)
	}
	if cfg.UploadMaxBytes != 50<<20 {
		t.Fatalf("unexpected upload limit %d", cfg.UploadMaxBytes)
	}
	if cfg.Departments.Len() != 7 || !cfg.Departments.Contains("教務處") {
		t.Fatalf("expected default departments, got %s", cfg.Departments)
	}
	if cfg.RagflowEnabled() {
		t.Fatalf("RAGFlow should be disabled without base URL and key")
	}
	if !reflect.DeepEqual(cfg.AllowOrigins, []string{"*"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RAGFLOW_BASE_URL", "http://ragflow:9380/")
	t.Setenv("RAGFLOW_API_KEY", "secret")
	t.Setenv("RAGFLOW_TIMEOUT", "5s")
	t.Setenv("DEPARTMENTS", " Ops , Finance,,Ops ")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("ALLOW_ORIGINS", "http://a.test, http://b.test")

	cfg := Load()

	if cfg.RagflowBaseURL != "http://ragflow:9380" {
		t.Fatalf("trailing slash should be trimmed, got %s", cfg.RagflowBaseURL)
	}
	if !cfg.RagflowEnabled() {
		t.Fatalf("RAGFlow should be enabled")
	}
	if cfg.RagflowTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.RagflowTimeout)
	}
	if !reflect.DeepEqual(cfg.Departments.Names(), []string{"Ops", "Finance"}) {
		t.Fatalf("unexpected departments %v", cfg.Departments.Names())
	}
	if cfg.UploadMaxBytes != 1024 || cfg.BulkImportMaxBytes != 20*1024 {
		t.Fatalf("unexpected limits %d/%d", cfg.UploadMaxBytes, cfg.BulkImportMaxBytes)
	}
	if len(cfg.AllowOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.AllowOrigins)
	}
}

func TestLoadMissingRequiredPanics(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing DATABASE_URL")
		}
	}()
	Load()
}

func TestDepartmentsFile(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "list.yaml")
	if err := os.WriteFile(list, []byte("- 教務處\n- 圖書館\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	set, err := loadDepartments("ignored", list)
	if err != nil {
		t.Fatalf("loadDepartments returned error: %v", err)
	}
	if !reflect.DeepEqual(set.Names(), []string{"教務處", "圖書館"}) {
		t.Fatalf("unexpected departments %v", set.Names())
	}

	mapped := filepath.Join(dir, "mapped.yaml")
	if err := os.WriteFile(mapped, []byte("departments:\n  - 人事室\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	set, err = loadDepartments("", mapped)
	if err != nil {
		t.Fatalf("loadDepartments returned error: %v", err)
	}
	if !set.Contains("人事室") || set.Len() != 1 {
		t.Fatalf("unexpected departments %v", set.Names())
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("departments: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadDepartments("", empty); err == nil {
		t.Fatalf("expected error for empty departments file")
	}
}
