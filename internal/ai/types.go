package ai

import (
	"context"
	"errors"
	"time"
)

// Request carries one page-description call to a vision provider.
type Request struct {
	DocID   string
	Page    int
	Model   string
	Timeout time.Duration
	// Vision fields
	ImageBase64  string // Base64 encoded page render
	ImageMIME    string // Image MIME type (image/jpeg)
	SystemPrompt string
	PageType     string // classified structural type, hints the prompt
	PageText     string // MuPDF-extracted text of the page
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client interface for providers like OpenAI, Anthropic.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited    = errors.New("rate_limited")
	ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool    { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }
