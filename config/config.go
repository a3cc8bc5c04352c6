package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // Asia/Taipei on hosts without zoneinfo

	"github.com/caarlos0/env/v11"
)

// StorageBackend selects the durable storage adapter.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
	StorageDrive StorageBackend = "drive"
)

// RecordBackend selects the tabular store holding submission rows.
type RecordBackend string

const (
	RecordsMemory   RecordBackend = "memory"
	RecordsSheets   RecordBackend = "sheets"
	RecordsPostgres RecordBackend = "postgres"
)

// IDMode selects how admin callers address rows.
type IDMode string

const (
	// IDPositional addresses rows by their offset in the last list snapshot.
	IDPositional IDMode = "positional"
	// IDStable additionally accepts the recordId column written at intake.
	IDStable IDMode = "stable"
)

// Config is the top-level configuration struct.  Start from Default() and
// override what you need; FromEnv overlays environment variables.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR"`
	APISecret string `env:"API_SECRET_KEY"`
	LogLevel  string `env:"LOG_LEVEL"` // "debug", "info", "warn", "error"
	Timezone  string `env:"TIMEZONE"`

	// Intake limits.
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES"`
	TempDir        string `env:"TEMP_DIR"`
	ChunkSize      int    `env:"CHUNK_SIZE"` // streaming chunk size in bytes; default 32 KiB

	Transform TransformConfig
	Watermark WatermarkConfig

	// Storage.
	Storage StorageBackend `env:"STORAGE_BACKEND"`
	Local   LocalConfig
	S3      S3Config
	Drive   DriveConfig

	// Records.
	Records  RecordBackend `env:"RECORD_BACKEND"`
	IDMode   IDMode        `env:"ID_MODE"`
	Sheets   SheetsConfig
	Postgres PostgresConfig

	Google GoogleConfig
	LINE   LINEConfig

	// Per external call timeouts.
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT"`
	RecordTimeout time.Duration `env:"RECORD_TIMEOUT"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT"`

	// Notification worker pool.
	NotifyWorkers   int `env:"NOTIFY_WORKERS"`
	NotifyQueueSize int `env:"NOTIFY_QUEUE_SIZE"`
}

// TransformConfig controls resizing and encoding.
type TransformConfig struct {
	Backend      string `env:"CODEC_BACKEND"` // "go" or "vips"
	TargetWidth  int    `env:"TARGET_WIDTH"`
	AllowUpscale bool   `env:"ALLOW_UPSCALE"`
	Quality      int    `env:"JPEG_QUALITY"` // 1-100
	// MaxPixels caps width×height before decode; the upload limit only
	// bounds the compressed size.
	MaxPixels int64 `env:"MAX_PIXELS"`
}

// WatermarkConfig controls the caption overlay.
type WatermarkConfig struct {
	Caption      string  `env:"WATERMARK_CAPTION"`
	FontPath     string  `env:"WATERMARK_FONT_PATH"` // empty = embedded Go Bold
	Angle        float64 `env:"WATERMARK_ANGLE"`     // degrees, negative = counter-clockwise
	MinFontSize  float64 `env:"WATERMARK_MIN_FONT_SIZE"`
	FontScale    float64 `env:"WATERMARK_FONT_SCALE"` // fraction of image width
	ShadowOffset int     `env:"WATERMARK_SHADOW_OFFSET"`
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir     string `env:"LOCAL_STORAGE_DIR"`
	BaseURL     string `env:"LOCAL_STORAGE_BASE_URL"`
	Permissions uint32 // default 0644
}

// S3Config configures the AWS S3 storage adapter.
type S3Config struct {
	Bucket          string `env:"AWS_S3_BUCKET"`
	Region          string `env:"AWS_REGION"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"` // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"AWS_S3_PATH_STYLE"`
	Prefix          string `env:"AWS_S3_PREFIX"`
	PublicBaseURL   string `env:"AWS_S3_PUBLIC_BASE_URL"`
}

// DriveConfig configures the Google Drive storage adapter.
type DriveConfig struct {
	FolderID string `env:"GOOGLE_FOLDER_ID"`
}

// SheetsConfig configures the Google Sheets record table.
type SheetsConfig struct {
	SpreadsheetID string `env:"GOOGLE_SHEET_ID"`
	SheetName     string `env:"SHEET_NAME"`
}

// PostgresConfig configures the Postgres record table.
type PostgresConfig struct {
	DSN   string `env:"DATABASE_URL"`
	Table string `env:"RECORD_TABLE"`
}

// GoogleConfig holds the OAuth2 refresh-token credentials shared by Drive and
// Sheets.
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RefreshToken string `env:"GOOGLE_REFRESH_TOKEN"`
}

// LINEConfig holds the messaging and login channel credentials.
type LINEConfig struct {
	ChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	ChannelID          string `env:"LINE_CHANNEL_ID"`
	ChannelSecret      string `env:"LINE_CHANNEL_SECRET"`
	RedirectURL        string `env:"LINE_REDIRECT_URL"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		Timezone:       "Asia/Taipei",
		MaxUploadBytes: 10 << 20,
		ChunkSize:      32 * 1024,
		Transform: TransformConfig{
			Backend:     "go",
			TargetWidth: 1280,
			Quality:     80,
			MaxPixels:   50_000_000,
		},
		Watermark: WatermarkConfig{
			Caption:      "FOR VISA APPLICATION USE ONLY",
			Angle:        -30,
			MinFontSize:  24,
			FontScale:    0.05,
			ShadowOffset: 2,
		},
		Storage:  StorageLocal,
		Local:    LocalConfig{RootDir: "./data/uploads"},
		Records:  RecordsMemory,
		IDMode:   IDPositional,
		Sheets:   SheetsConfig{SheetName: "Sheet1"},
		Postgres: PostgresConfig{Table: "submissions"},

		UploadTimeout:   30 * time.Second,
		RecordTimeout:   15 * time.Second,
		NotifyTimeout:   10 * time.Second,
		NotifyWorkers:   2,
		NotifyQueueSize: 64,
	}
}

// FromEnv returns Default() overlaid with any environment variables that are
// set.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, Validate(cfg)
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.APISecret == "" {
		return errors.New("config: API_SECRET_KEY must be set")
	}
	if c.Transform.Quality < 1 || c.Transform.Quality > 100 {
		return errors.New("config: JPEG_QUALITY must be between 1 and 100")
	}
	if c.Transform.TargetWidth <= 0 {
		return errors.New("config: TARGET_WIDTH must be positive")
	}
	if c.Transform.MaxPixels <= 0 {
		return errors.New("config: MAX_PIXELS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	switch c.Storage {
	case StorageLocal:
		if c.Local.RootDir == "" {
			return errors.New("config: LOCAL_STORAGE_DIR must be set")
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("config: AWS_S3_BUCKET must be set")
		}
	case StorageDrive:
		if c.Drive.FolderID == "" {
			return errors.New("config: GOOGLE_FOLDER_ID must be set")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.Storage)
	}
	switch c.Records {
	case RecordsMemory:
	case RecordsSheets:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("config: GOOGLE_SHEET_ID must be set")
		}
	case RecordsPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("config: DATABASE_URL must be set")
		}
	default:
		return fmt.Errorf("config: unknown RECORD_BACKEND %q", c.Records)
	}
	if c.IDMode != IDPositional && c.IDMode != IDStable {
		return fmt.Errorf("config: unknown ID_MODE %q", c.IDMode)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.NotifyWorkers <= 0 || c.NotifyQueueSize <= 0 {
		return errors.New("config: notification workers and queue size must be positive")
	}
	return nil
}

// Location returns the zone submission times are shown in.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE: %w", err)
	}
	return loc, nil
}
