package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
	BackendS3    = "s3"

	MetadataSidecar   = "sidecar"
	MetadataFirestore = "firestore"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Metadata  Metadata  `yaml:"metadata"`
	Log       Log       `yaml:"log"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type Server struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type Storage struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix"`
	GCS       GCS    `yaml:"gcs"`
	S3        S3     `yaml:"s3"`
}

type GCS struct {
	Bucket string `yaml:"bucket"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

type Metadata struct {
	Backend   string    `yaml:"backend"`
	Sidecar   string    `yaml:"sidecar"`
	Firestore Firestore `yaml:"firestore"`
}

type Firestore struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
	Document   string `yaml:"document"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Telemetry struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":8000",
			MaxUploadBytes: 32 << 20,
		},
		Storage: Storage{
			Backend:   BackendLocal,
			Dir:       "./uploads",
			URLPrefix: "/uploads/",
		},
		Metadata: Metadata{
			Backend: MetadataSidecar,
			Sidecar: "meta.json",
			Firestore: Firestore{
				Collection: "docstore",
				Document:   "metadata",
			},
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Telemetry: Telemetry{
			ServiceName: "docstore",
		},
	}
}

// LoadDotEnv copies variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at
// path and DOCSTORE_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DOCSTORE_ADDR":                 &c.Server.Addr,
		"DOCSTORE_STORAGE_BACKEND":      &c.Storage.Backend,
		"DOCSTORE_STORAGE_DIR":          &c.Storage.Dir,
		"DOCSTORE_URL_PREFIX":           &c.Storage.URLPrefix,
		"DOCSTORE_GCS_BUCKET":           &c.Storage.GCS.Bucket,
		"DOCSTORE_S3_ENDPOINT":          &c.Storage.S3.Endpoint,
		"DOCSTORE_S3_ACCESS_KEY":        &c.Storage.S3.AccessKey,
		"DOCSTORE_S3_SECRET_KEY":        &c.Storage.S3.SecretKey,
		"DOCSTORE_S3_BUCKET":            &c.Storage.S3.Bucket,
		"DOCSTORE_METADATA_BACKEND":     &c.Metadata.Backend,
		"DOCSTORE_METADATA_SIDECAR":     &c.Metadata.Sidecar,
		"DOCSTORE_FIRESTORE_PROJECT":    &c.Metadata.Firestore.ProjectID,
		"DOCSTORE_FIRESTORE_COLLECTION": &c.Metadata.Firestore.Collection,
		"DOCSTORE_FIRESTORE_DOCUMENT":   &c.Metadata.Firestore.Document,
		"DOCSTORE_LOG_LEVEL":            &c.Log.Level,
		"DOCSTORE_LOG_FORMAT":           &c.Log.Format,
		"DOCSTORE_SERVICE_NAME":         &c.Telemetry.ServiceName,
		"DOCSTORE_OTLP_ENDPOINT":        &c.Telemetry.OTLPEndpoint,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("DOCSTORE_MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DOCSTORE_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Server.MaxUploadBytes = n
	}
	return nil
}

// Validate reports every problem found, joined into one error.
func (c Config) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, fmt.Errorf("%s: %s", field, msg))
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		add("server.max_upload_bytes", "must be positive")
	}

	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Dir == "" {
			add("storage.dir", "required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			add("storage.gcs.bucket", "required for the gcs backend")
		}
	case BackendS3:
		s3 := c.Storage.S3
		if s3.Endpoint == "" || s3.AccessKey == "" || s3.SecretKey == "" || s3.Bucket == "" {
			add("storage.s3", "endpoint, access_key, secret_key and bucket are required for the s3 backend")
		}
	default:
		add("storage.backend", fmt.Sprintf("unsupported backend %q", c.Storage.Backend))
	}
	if !strings.HasPrefix(c.Storage.URLPrefix, "/") || !strings.HasSuffix(c.Storage.URLPrefix, "/") {
		add("storage.url_prefix", "must start and end with /")
	}

	switch c.Metadata.Backend {
	case MetadataSidecar:
		name := c.Metadata.Sidecar
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			add("metadata.sidecar", "must be a single file name")
		}
	case MetadataFirestore:
		fs := c.Metadata.Firestore
		if fs.ProjectID == "" || fs.Collection == "" || fs.Document == "" {
			add("metadata.firestore", "project_id, collection and document are required for the firestore backend")
		}
	default:
		add("metadata.backend", fmt.Sprintf("unsupported backend %q", c.Metadata.Backend))
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		add("log.level", err.Error())
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		add("log.format", fmt.Sprintf("unsupported format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
