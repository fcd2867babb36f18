// Package cloudinary stores lesson plan attachments in Cloudinary.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultUploadTimeout = 30 * time.Second

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	Timeout   time.Duration
}

// Enabled reports whether credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Uploader stores files as raw Cloudinary assets and returns their secure URL.
type Uploader struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
	logger  zerolog.Logger
}

// New constructs an uploader.
func New(cfg Config, logger zerolog.Logger) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}

	return &Uploader{
		client:  cld,
		folder:  strings.Trim(cfg.Folder, "/"),
		timeout: timeout,
		logger:  logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the attachment to Cloudinary. Documents are stored as raw assets so the
// original bytes and extension are served back unchanged.
func (u *Uploader) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	overwrite := false
	params := uploader.UploadParams{
		Folder:       u.folder,
		PublicID:     PublicID(name),
		ResourceType: "raw",
		Overwrite:    &overwrite,
	}

	result, err := u.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected attachment: %s", result.Error.Message)
	}

	u.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("attachment uploaded")

	return result.SecureURL, nil
}

// PublicID derives a collision-free asset id that keeps a readable stem and the extension.
func PublicID(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if len(base) > 64 {
		base = base[:64]
	}
	if base == "" {
		base = "attachment"
	}

	return fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext)
}
