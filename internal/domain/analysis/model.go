// Package analysis extracts structured part lists from parts-catalog page
// images with a vision model.
package analysis

import (
	"context"

	"partscatalog/internal/core/types"
)

const (
	DefaultMaxParts = 50
	MaxParts        = 200
)

// SupportedImageTypes are the media types the vision model accepts.
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Request asks for one catalog page to be analyzed. The image is either
// inline (ImageBase64) or a previously uploaded file (FileID).
type Request struct {
	ImageBase64  string `json:"imageBase64"`
	MimeType     string `json:"mimeType"`
	FileID       string `json:"fileId"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         *int   `json:"year"`
	MaxPartCount int    `json:"maxPartCount"`
}

// Image is a decoded page image.
type Image struct {
	Data     []byte
	MimeType string
}

// Input is what an Analyzer receives after validation.
type Input struct {
	Image    Image
	Brand    string
	Model    string
	Year     *int
	MaxParts int
}

// Part is one catalog line. A line listing several part numbers yields
// one Part per number, sharing the LineID.
type Part struct {
	LineID       string       `json:"lineId,omitempty"`
	PartName     string       `json:"partName"`
	PartNumber   string       `json:"partNumber"`
	Category     string       `json:"category"`
	Price        *types.Money `json:"price,omitempty"`
	Availability *bool        `json:"availability,omitempty"`
	Description  *string      `json:"description,omitempty"`
}

// Result is the analysis outcome.
type Result struct {
	Success          bool    `json:"success"`
	DiagramReference string  `json:"diagramReference,omitempty"`
	Parts            []Part  `json:"parts"`
	TotalParts       int     `json:"totalParts"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs int64   `json:"processingTime"`
	Error            string  `json:"error,omitempty"`
}

// Analyzer is a vision model provider.
type Analyzer interface {
	Provider() string
	// Available reports whether the provider is configured
	Available() bool
	AnalyzePartsCatalog(ctx context.Context, in Input) (*Result, error)
}

// ImageSource loads uploaded files by public id.
type ImageSource interface {
	Image(ctx context.Context, fileID string) (*Image, error)
}
