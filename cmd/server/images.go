package main

import (
	"context"

	"partscatalog/internal/domain/analysis"
	"partscatalog/internal/domain/files"
)

// fileContent is the part of files.Service the analysis image source reads.
type fileContent interface {
	Content(ctx context.Context, publicID string) ([]byte, *files.File, error)
}

// fileImages lets the analysis service load uploaded catalog pages.
type fileImages struct {
	files fileContent
}

var _ analysis.ImageSource = fileImages{}

func (s fileImages) Image(ctx context.Context, fileID string) (*analysis.Image, error) {
	data, f, err := s.files.Content(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &analysis.Image{Data: data, MimeType: f.MimeType}, nil
}
