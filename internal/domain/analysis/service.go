package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"partscatalog/internal/core/apperror"
	"partscatalog/pkg/logger"
)

// Service validates requests and delegates to the configured Analyzer.
type Service struct {
	analyzer Analyzer
	images   ImageSource
	maxBytes int
}

// NewService creates an analysis service. analyzer may be nil, in which case
// every call reports the feature as unavailable. images may be nil, which
// disables FileID requests.
func NewService(analyzer Analyzer, images ImageSource, maxBytes int) *Service {
	return &Service{analyzer: analyzer, images: images, maxBytes: maxBytes}
}

// Available reports whether a provider is configured.
func (s *Service) Available() bool {
	return s.analyzer != nil && s.analyzer.Available()
}

// AnalyzePartsCatalog extracts the part list of one catalog page.
func (s *Service) AnalyzePartsCatalog(ctx context.Context, req Request) (*Result, error) {
	if !s.Available() {
		return nil, apperror.NewUnavailable("AI analysis")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	img, err := s.resolveImage(ctx, req)
	if err != nil {
		return nil, err
	}

	maxParts := req.MaxPartCount
	if maxParts <= 0 {
		maxParts = DefaultMaxParts
	}

	start := time.Now()
	result, err := s.analyzer.AnalyzePartsCatalog(ctx, Input{
		Image:    *img,
		Brand:    strings.TrimSpace(req.Brand),
		Model:    strings.TrimSpace(req.Model),
		Year:     req.Year,
		MaxParts: maxParts,
	})
	if err != nil {
		logger.Error(ctx, "parts catalog analysis failed", "provider", s.analyzer.Provider(), "error", err)
		return nil, apperror.NewInternal(fmt.Errorf("analyze parts catalog: %w", err))
	}

	if len(result.Parts) > maxParts {
		result.Parts = result.Parts[:maxParts]
	}
	result.TotalParts = len(result.Parts)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	logger.Info(ctx, "parts catalog analyzed",
		"provider", s.analyzer.Provider(),
		"parts", result.TotalParts,
		"duration_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

func validateRequest(req Request) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Brand, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.Model, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.Year, validation.NilOrNotEmpty, validation.Min(1900), validation.Max(2100)),
		validation.Field(&req.MaxPartCount, validation.Min(0), validation.Max(MaxParts)),
	)
	if err != nil {
		return apperror.FromValidation(err)
	}
	if req.ImageBase64 == "" && req.FileID == "" {
		return apperror.NewValidation("Either imageBase64 or fileId must be provided").WithDetail("field", "imageBase64")
	}
	if req.ImageBase64 != "" && req.FileID != "" {
		return apperror.NewValidation("Provide imageBase64 or fileId, not both").WithDetail("field", "fileId")
	}
	return nil
}

func (s *Service) resolveImage(ctx context.Context, req Request) (*Image, error) {
	var img *Image
	if req.FileID != "" {
		if s.images == nil {
			return nil, apperror.NewUnavailable("file storage")
		}
		loaded, err := s.images.Image(ctx, req.FileID)
		if err != nil {
			return nil, err
		}
		img = loaded
	} else {
		decoded, err := decodeImage(req.ImageBase64, req.MimeType)
		if err != nil {
			return nil, err
		}
		img = decoded
	}

	if s.maxBytes > 0 && len(img.Data) > s.maxBytes {
		return nil, apperror.NewValidation(fmt.Sprintf("Image exceeds the %d byte limit", s.maxBytes)).WithDetail("field", "imageBase64")
	}
	if !SupportedImageTypes[img.MimeType] {
		return nil, apperror.NewValidation("Unsupported image type").
			WithDetail("field", "mimeType").
			WithDetail("mimeType", img.MimeType)
	}
	return img, nil
}

// decodeImage accepts raw base64 or a data URL. A missing media type is
// sniffed from the bytes.
func decodeImage(encoded, mimeType string) (*Image, error) {
	encoded = strings.TrimSpace(encoded)
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, apperror.NewValidation("Malformed data URL").WithDetail("field", "imageBase64")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(meta, ";base64")
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperror.NewValidation("imageBase64 is not valid base64").
			WithDetail("field", "imageBase64").
			WithCause(err)
	}
	if len(data) == 0 {
		return nil, apperror.NewValidation("Image is empty").WithDetail("field", "imageBase64")
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}
