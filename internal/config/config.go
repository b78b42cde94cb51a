// Package config binds a YAML file to the filecrate subsystem configs and
// constructs the selected storage engine.
//
// Every subsystem still has its own plain Config struct with a DefaultConfig
// constructor; this package only materializes those structs from one file so
// the server binary and the examples can switch providers without code
// changes.
package config

import (
	"context"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/filecrate/filecrate/internal/errs"
	"github.com/filecrate/filecrate/internal/logger"
	"github.com/filecrate/filecrate/internal/store"
	"github.com/filecrate/filecrate/internal/store/azure"
	"github.com/filecrate/filecrate/internal/store/index"
	"github.com/filecrate/filecrate/internal/store/local"
	"github.com/filecrate/filecrate/internal/store/s3"
)

// Config is the root of the YAML file.
type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

// LoggerConfig selects log level and format.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds the HTTP adapter settings.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`
}

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("30s", "1m"), which the YAML decoder does not handle natively.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StorageConfig selects and configures the storage provider.
type StorageConfig struct {
	// Provider is one of "local", "s3", "azure".
	Provider string `yaml:"provider"`

	// Shared behavior settings, applied to whichever provider is selected.
	RootPrefix          string   `yaml:"rootPrefix"`
	MaxFileSizeBytes    int64    `yaml:"maxFileSizeBytes"`
	AllowedExtensions   []string `yaml:"allowedExtensions"`
	AllowedContentTypes []string `yaml:"allowedContentTypes"`
	ComputeHash         bool     `yaml:"computeHash"`

	Local LocalConfig `yaml:"local"`
	S3    S3Config    `yaml:"s3"`
	Azure AzureConfig `yaml:"azure"`
	Index IndexConfig `yaml:"index"`
}

// LocalConfig holds filesystem provider settings.
type LocalConfig struct {
	BasePath      string `yaml:"basePath"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
	SignedURLKey  string `yaml:"signedUrlKey"`
	SignedURLBase string `yaml:"signedUrlBase"`
}

// S3Config holds object store provider settings.
type S3Config struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	UseSSL     bool   `yaml:"useSsl"`
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket"`
	PublicRead bool   `yaml:"publicRead"`
}

// AzureConfig holds blob store provider settings.
type AzureConfig struct {
	AccountName string `yaml:"accountName"`
	AccountKey  string `yaml:"accountKey"`
	ServiceURL  string `yaml:"serviceUrl"`
	Container   string `yaml:"container"`
	PublicRead  bool   `yaml:"publicRead"`
}

// IndexConfig optionally attaches an external id→key index to the s3 and
// azure providers. An empty driver disables it.
type IndexConfig struct {
	// Driver is "postgres" or "mysql".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Default returns the config used when no file is given: console logging and
// local storage under ./data.
func Default() *Config {
	return &Config{
		Logger: LoggerConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			Provider: "local",
			Local:    LocalConfig{BasePath: "data"},
		},
	}
}

// Load reads and parses a YAML config file. Fields absent from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindIO, "failed to read config file", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes over the defaults.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindValidationFailed, "invalid config file", err)
	}
	return cfg, nil
}

// NewLogger constructs the configured logger.
func (c *Config) NewLogger() *logger.Logger {
	return logger.New(&logger.Config{
		Level:  c.Logger.Level,
		Format: c.Logger.Format,
		Output: os.Stdout,
	})
}

// NewStore constructs the selected storage engine. The caller owns Close on
// both the returned store and, through it, any attached index.
func (c *Config) NewStore(ctx context.Context, log *logger.Logger) (store.Store, error) {
	opts := store.Options{
		RootPrefix:          c.Storage.RootPrefix,
		MaxFileSizeBytes:    c.Storage.MaxFileSizeBytes,
		AllowedExtensions:   c.Storage.AllowedExtensions,
		AllowedContentTypes: c.Storage.AllowedContentTypes,
		ComputeHash:         c.Storage.ComputeHash,
		Logger:              log,
	}

	switch c.Storage.Provider {
	case "", "local":
		return local.New(ctx, &local.Config{
			Options:       opts,
			BasePath:      c.Storage.Local.BasePath,
			PublicBaseURL: c.Storage.Local.PublicBaseURL,
			SignedURLKey:  signingKey(c.Storage.Local.SignedURLKey),
			SignedURLBase: c.Storage.Local.SignedURLBase,
		})

	case "s3":
		idx, err := c.newIndex(ctx)
		if err != nil {
			return nil, err
		}
		return s3.New(ctx, &s3.Config{
			Options:    opts,
			Endpoint:   c.Storage.S3.Endpoint,
			AccessKey:  c.Storage.S3.AccessKey,
			SecretKey:  c.Storage.S3.SecretKey,
			UseSSL:     c.Storage.S3.UseSSL,
			Region:     c.Storage.S3.Region,
			Bucket:     c.Storage.S3.Bucket,
			PublicRead: c.Storage.S3.PublicRead,
			Index:      idx,
		})

	case "azure":
		idx, err := c.newIndex(ctx)
		if err != nil {
			return nil, err
		}
		return azure.New(ctx, &azure.Config{
			Options:     opts,
			AccountName: c.Storage.Azure.AccountName,
			AccountKey:  c.Storage.Azure.AccountKey,
			ServiceURL:  c.Storage.Azure.ServiceURL,
			Container:   c.Storage.Azure.Container,
			PublicRead:  c.Storage.Azure.PublicRead,
			Index:       idx,
		})

	default:
		return nil, errs.New(errs.ErrKindValidationFailed, "unknown storage provider: "+c.Storage.Provider)
	}
}

// newIndex builds the optional external index, or nil when not configured.
func (c *Config) newIndex(ctx context.Context) (index.Index, error) {
	switch c.Storage.Index.Driver {
	case "":
		return nil, nil
	case "postgres":
		return index.NewPostgres(ctx, &index.PostgresConfig{DSN: c.Storage.Index.DSN})
	case "mysql":
		return index.NewMySQL(ctx, &index.MySQLConfig{DSN: c.Storage.Index.DSN})
	default:
		return nil, errs.New(errs.ErrKindValidationFailed, "unknown index driver: "+c.Storage.Index.Driver)
	}
}

func signingKey(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
