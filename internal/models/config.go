package models

import (
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr  string `yaml:"server_addr"`
	DatabaseURL string `yaml:"database_url"`
	KafkaBroker string `yaml:"kafka_broker"`
	KafkaTopic  string `yaml:"kafka_topic"`

	StoragePath    string `yaml:"storage_path"`
	MediaURL       string `yaml:"media_url"`        // URL prefix the stored files are served under
	MaxUploadBytes int64  `yaml:"max_upload_bytes"` // 0 means the 10 MB default

	AuthSecret string `yaml:"auth_secret"` // HS256 key for bearer tokens

	ThumbnailSize int    `yaml:"thumbnail_size"` // square edge in px, 0 disables thumbnails
	WatermarkText string `yaml:"watermark_text"` // empty disables the watermark
	FontPath      string `yaml:"font_path"`      // TTF used to render watermark_text

	// ContentTables is the closed registration list of content-bearing
	// tables whose text columns are scanned for image markers.
	ContentTables []string `yaml:"content_tables"`
}

const DefaultMaxUploadBytes = 10 << 20

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = "/files"
	}
	return &cfg, nil
}
