package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/ai"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/classifier"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/imagerender"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/metrics"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/mupdf"
)

// materialize produces the actual page content for the assigned method:
// cleaned text for text/structured pages, a rendered JPEG (plus optional
// multimodal description) for image pages, both for hybrid pages. It also
// settles the per-page cost.
func (a *Analyzer) materialize(ctx context.Context, src mupdf.PageSource, pr *PageResult) error {
	start := time.Now()
	defer func() { metrics.ObserveStage("materialize", time.Since(start)) }()

	cls := pr.Classification

	needText := cls.Method == classifier.TextOnly ||
		cls.Method == classifier.Structured ||
		cls.Method == classifier.Hybrid
	needImage := cls.Method == classifier.ImageWithAnalysis ||
		cls.Method == classifier.Hybrid

	if needText {
		raw, err := src.PageText(pr.Page)
		if err != nil {
			return err
		}
		pr.Text = mupdf.CleanPageText(raw, pr.Page)
	}

	analyzed := false
	if needImage {
		dpi := int(imagerender.BaseDPI * a.opts.DPIMultiplier)
		jpegBytes, w, h, err := imagerender.RenderPageToJPEG(src, pr.Page, dpi, a.opts.JPEGQuality, string(imagerender.ColorRGB))
		if err != nil {
			return err
		}

		if a.opts.OutputDir != "" {
			name := fmt.Sprintf("page_%03d_%s.jpg", pr.Page, cls.Type)
			imgPath := filepath.Join(a.opts.OutputDir, name)
			if err := os.WriteFile(imgPath, jpegBytes, 0o644); err != nil {
				return fmt.Errorf("write page image: %w", err)
			}
			pr.ImagePath = imgPath
			log.Debug().
				Int("page", pr.Page).
				Str("path", imgPath).
				Int("width", w).
				Int("height", h).
				Msg("saved page render")
		}

		if a.opts.Describer != nil {
			pageText := pr.Text
			if pageText == "" {
				if raw, err := src.PageText(pr.Page); err == nil {
					pageText = mupdf.CleanPageText(raw, pr.Page)
				}
			}
			resp, provider, err := a.opts.Describer.Describe(ctx, ai.Request{
				Page:        pr.Page,
				ImageBase64: imagerender.EncodeToBase64(jpegBytes),
				ImageMIME:   "image/jpeg",
				PageType:    string(cls.Type),
				PageText:    pageText,
			})
			if err != nil {
				// the render still stands; description is best effort
				log.Warn().Int("page", pr.Page).Err(err).Msg("multimodal description failed")
			} else {
				pr.Description = resp.Text
				pr.DescribedBy = provider
				analyzed = true
			}
		}
	}

	pr.Cost = a.opts.Classifier.EstimateCost(cls, analyzed)
	return nil
}
