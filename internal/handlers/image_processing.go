package handlers

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/proofofsteak/steakboard/internal/upload"
)

// inspectedImage is what the bytes say, regardless of the declared type.
type inspectedImage struct {
	ContentType string
	Width       int
	Height      int
}

// inspectImage sniffs the content type from data and validates it against
// the upload rules. Dimensions are read when the format has a decoder;
// WebP is accepted without them.
func inspectImage(data []byte, declared string) (*inspectedImage, error) {
	contentType := http.DetectContentType(data)
	if contentType == "application/octet-stream" && declared != "" {
		contentType = declared
	}
	if err := upload.Validate(contentType, int64(len(data))); err != nil {
		return nil, err
	}

	info := &inspectedImage{ContentType: strings.ToLower(contentType)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	}
	return info, nil
}
