package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/joho/godotenv"

	"github.com/njprem/regdocs/internal/domain"
)

type Config struct {
	Port            string
	DatabaseURL     string
	AllowOrigins    []string
	LogstashTCPAddr string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	MinIOBucket    string
	MinIOPublicURL string

	RagflowBaseURL string
	RagflowAPIKey  string
	RagflowDataset string
	RagflowUIBase  string
	RagflowTimeout time.Duration

	Departments        domain.DepartmentSet
	UploadMaxBytes     int64
	BulkImportMaxBytes int64
	AdminJWTSecret     string
	SwaggerSpecPath    string
	HomeURL            string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	departments, err := loadDepartments(getenv("DEPARTMENTS", ""), getenv("DEPARTMENTS_FILE", ""))
	if err != nil {
		panic(err)
	}

	uploadMax := parseBytes("UPLOAD_MAX_BYTES", 50<<20)

	return Config{
		Port:               getenv("PORT", "8080"),
		DatabaseURL:        must("DATABASE_URL"),
		AllowOrigins:       splitAndTrim(getenv("ALLOW_ORIGINS", "*")),
		LogstashTCPAddr:    getenv("LOGSTASH_TCP_ADDR", ""),
		MinIOEndpoint:      must("MINIO_ENDPOINT"),
		MinIOAccessKey:     must("MINIO_ACCESS_KEY"),
		MinIOSecretKey:     must("MINIO_SECRET_KEY"),
		MinIOUseSSL:        getenv("MINIO_USE_SSL", "false") == "true",
		MinIOBucket:        must("MINIO_BUCKET_DOCUMENTS"),
		MinIOPublicURL:     getenv("MINIO_PUBLIC_URL", ""),
		RagflowBaseURL:     strings.TrimRight(getenv("RAGFLOW_BASE_URL", ""), "/"),
		RagflowAPIKey:      getenv("RAGFLOW_API_KEY", ""),
		RagflowDataset:     getenv("RAGFLOW_DATASET", "Regulation"),
		RagflowUIBase:      strings.TrimRight(getenv("RAGFLOW_UI_BASE", ""), "/"),
		RagflowTimeout:     parseDuration("RAGFLOW_TIMEOUT", 60*time.Second),
		Departments:        departments,
		UploadMaxBytes:     uploadMax,
		BulkImportMaxBytes: parseBytes("BULK_IMPORT_MAX_BYTES", 20*uploadMax),
		AdminJWTSecret:     getenv("ADMIN_JWT_SECRET", ""),
		SwaggerSpecPath:    getenv("SWAGGER_SPEC_PATH", "docs/swagger.yaml"),
		HomeURL:            getenv("HOME_URL", ""),
	}
}

// RagflowEnabled reports whether enough RAGFlow settings are present to talk to it.
func (c Config) RagflowEnabled() bool {
	return c.RagflowBaseURL != "" && c.RagflowAPIKey != ""
}

// loadDepartments reads the department list from a YAML file when given,
// otherwise from a comma separated list, otherwise the built-in defaults.
func loadDepartments(list, file string) (domain.DepartmentSet, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return domain.DepartmentSet{}, fmt.Errorf("read departments file: %w", err)
		}
		return parseDepartmentsYAML(data)
	}
	if strings.TrimSpace(list) != "" {
		return domain.NewDepartmentSet(strings.Split(list, ",")), nil
	}
	return domain.NewDepartmentSet(domain.DefaultDepartments), nil
}

// parseDepartmentsYAML accepts either a bare list or {departments: [...]}.
func parseDepartmentsYAML(data []byte) (domain.DepartmentSet, error) {
	var names []string
	if err := yaml.Unmarshal(data, &names); err != nil {
		var doc struct {
			Departments []string `json:"departments"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return domain.DepartmentSet{}, fmt.Errorf("parse departments file: %w", err)
		}
		names = doc.Departments
	}
	set := domain.NewDepartmentSet(names)
	if set.Len() == 0 {
		return domain.DepartmentSet{}, fmt.Errorf("departments file lists no departments")
	}
	return set, nil
}

func parseBytes(key string, def int64) int64 {
	if v, err := strconv.ParseInt(getenv(key, ""), 10, 64); err == nil && v > 0 {
		return v
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getenv(key, "")); err == nil && v > 0 {
		return v
	}
	return def
}

func splitAndTrim(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
