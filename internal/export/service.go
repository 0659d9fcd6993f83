package export

import (
	"context"
	"fmt"
	"time"

	"experiences/api/internal/experience"
)

// PDFRenderer turns a rendered HTML page into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Service provides experience report export
type Service struct {
	renderer PDFRenderer
	now      func() time.Time
}

func NewService(renderer PDFRenderer) *Service {
	return &Service{renderer: renderer, now: time.Now}
}

// ExperiencePDF renders the full report for an experience loaded with
// catalogue names.
func (s *Service) ExperiencePDF(ctx context.Context, e *experience.Experience, createdBy string) (*Result, error) {
	if e == nil {
		return nil, ErrNothingToExport
	}
	html, err := RenderExperienceHTML(BuildTemplateData(e, createdBy, s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	data, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(e.Name) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}
