package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/hashicorp/go-multierror"

	"github.com/proofofsteak/steakboard/internal/metrics"
)

// Eager variants, in order: leaderboard card then preview thumbnail.
const eagerTransforms = "c_fill,g_auto,h_600,w_800|c_fill,g_auto,h_300,w_400"

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Configured reports whether any credential has been supplied.
func (c Config) Configured() bool {
	return c.CloudName != "" || c.APIKey != "" || c.APISecret != ""
}

func (c Config) Validate() error {
	var result *multierror.Error
	if c.CloudName == "" {
		result = multierror.Append(result, fmt.Errorf("CLOUDINARY_CLOUD_NAME is required"))
	}
	if c.APIKey == "" {
		result = multierror.Append(result, fmt.Errorf("CLOUDINARY_API_KEY is required"))
	}
	if c.APISecret == "" {
		result = multierror.Append(result, fmt.Errorf("CLOUDINARY_API_SECRET is required"))
	}
	return result.ErrorOrNil()
}

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Cloudinary stores images in a Cloudinary folder and asks for the resized
// variants eagerly so their URLs exist as soon as the upload returns.
type Cloudinary struct {
	api    uploadAPI
	folder string
}

func NewCloudinary(cfg Config) (*Cloudinary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	folder := cfg.Folder
	if folder == "" {
		folder = Folder
	}
	return &Cloudinary{api: &cld.Upload, folder: folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, meta Metadata) (*Result, error) {
	params := uploader.UploadParams{
		Folder:         c.folder,
		Eager:          eagerTransforms,
		UseFilename:    api.Bool(true),
		UniqueFilename: api.Bool(true),
		ResourceType:   "image",
	}
	if values := meta.values(); len(values) > 0 {
		params.Context = api.CldAPIMap(values)
	}

	resp, err := c.api.Upload(ctx, r, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("failed to upload image: %s", resp.Error.Message)
	}

	result := &Result{
		PublicID:       resp.PublicID,
		OriginalURL:    resp.SecureURL,
		LeaderboardURL: resp.SecureURL,
		PreviewURL:     resp.SecureURL,
		Width:          resp.Width,
		Height:         resp.Height,
		Format:         resp.Format,
		Bytes:          resp.Bytes,
		Metadata:       meta.values(),
	}
	if len(resp.Eager) > 0 && resp.Eager[0].SecureURL != "" {
		result.LeaderboardURL = resp.Eager[0].SecureURL
	}
	if len(resp.Eager) > 1 && resp.Eager[1].SecureURL != "" {
		result.PreviewURL = resp.Eager[1].SecureURL
	}

	metrics.UploadBytes(int64(resp.Bytes))
	slog.Info("Uploaded image", "public_id", result.PublicID, "bytes", result.Bytes, "format", result.Format)
	return result, nil
}
