package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	mpkg "github.com/uchi736/rag-preprocessing-optimizer/internal/metrics"
)

// DescriberConfig selects the providers and models used for page
// description, in failover order.
type DescriberConfig struct {
	PrimaryProvider   string
	SecondaryProvider string
	OpenAIModel       string
	AnthropicModel    string
	RequestTimeout    time.Duration
	BreakerCooldown   time.Duration
	SystemPrompt      string
}

// Describer produces natural-language descriptions of rendered pages. It
// fails over between two providers and keeps a per-provider cooldown so a
// struggling endpoint is skipped instead of hammered.
type Describer struct {
	conf    DescriberConfig
	clients map[string]Client

	mu    sync.Mutex
	until map[string]time.Time // provider -> cooldown expiry
}

// NewDescriber wires the real HTTP clients. Tests substitute fakes via
// NewDescriberWithClients.
func NewDescriber(conf DescriberConfig) *Describer {
	return NewDescriberWithClients(conf, map[string]Client{
		"openai":    NewOpenAIClient(),
		"anthropic": NewAnthropicClient(),
	})
}

func NewDescriberWithClients(conf DescriberConfig, clients map[string]Client) *Describer {
	if conf.RequestTimeout <= 0 {
		conf.RequestTimeout = 120 * time.Second
	}
	if conf.BreakerCooldown <= 0 {
		conf.BreakerCooldown = 60 * time.Second
	}
	if conf.PrimaryProvider == "" {
		conf.PrimaryProvider = "openai"
	}
	if conf.SecondaryProvider == "" {
		if conf.PrimaryProvider == "openai" {
			conf.SecondaryProvider = "anthropic"
		} else {
			conf.SecondaryProvider = "openai"
		}
	}
	return &Describer{conf: conf, clients: clients, until: make(map[string]time.Time)}
}

func (d *Describer) modelFor(provider string) string {
	switch provider {
	case "openai":
		return d.conf.OpenAIModel
	case "anthropic":
		return d.conf.AnthropicModel
	}
	return ""
}

func (d *Describer) cooling(provider string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Now().Before(d.until[provider])
}

func (d *Describer) trip(provider string) {
	d.mu.Lock()
	d.until[provider] = time.Now().Add(d.conf.BreakerCooldown)
	d.mu.Unlock()
}

func (d *Describer) reset(provider string) {
	d.mu.Lock()
	delete(d.until, provider)
	d.mu.Unlock()
}

// Describe runs one page-description request through the failover chain.
// It returns the provider that answered along with the response.
func (d *Describer) Describe(ctx context.Context, req Request) (Response, string, error) {
	req.SystemPrompt = d.conf.SystemPrompt
	req.Timeout = d.conf.RequestTimeout

	var lastErr error
	for i, provider := range []string{d.conf.PrimaryProvider, d.conf.SecondaryProvider} {
		model := d.modelFor(provider)
		client := d.clients[provider]
		if model == "" || client == nil {
			continue
		}
		if d.cooling(provider) {
			log.Debug().
				Str("provider", provider).
				Msg("provider cooling down - skipping attempt")
			continue
		}

		log.Info().
			Str("doc_id", req.DocID).
			Int("page", req.Page).
			Str("provider", provider).
			Str("model", model).
			Msgf("attempting page description [%d/2]", i+1)

		req.Model = model
		cctx, cancel := context.WithTimeout(ctx, d.conf.RequestTimeout)
		start := time.Now()
		resp, err := client.Do(cctx, req)
		dur := time.Since(start)
		cancel()

		if err == nil {
			d.reset(provider)
			mpkg.BreakerClosed(provider, model)
			mpkg.ObserveProvider(provider, model, "success", dur)
			log.Debug().
				Str("doc_id", req.DocID).
				Int("page", req.Page).
				Str("provider", provider).
				Dur("duration", dur).
				Int("tokens_in", resp.TokensIn).
				Int("tokens_out", resp.TokensOut).
				Msg("page description succeeded")
			return resp, provider, nil
		}

		lastErr = err
		switch {
		case isTransient(err):
			mpkg.ObserveProvider(provider, model, "transient", dur)
			d.trip(provider)
			mpkg.BreakerOpened(provider, model)
			log.Warn().
				Err(err).
				Str("doc_id", req.DocID).
				Int("page", req.Page).
				Str("provider", provider).
				Msg("transient provider error - trying fallback")
		case isFatal(err):
			mpkg.ObserveProvider(provider, model, "fatal", dur)
			log.Error().
				Err(err).
				Str("doc_id", req.DocID).
				Int("page", req.Page).
				Str("provider", provider).
				Msg("fatal provider error - no retry")
			return Response{}, "", err
		default:
			mpkg.ObserveProvider(provider, model, "unknown", dur)
		}
	}

	mpkg.ObserveProvider("all", "all", "exhausted", 0)
	if lastErr == nil {
		lastErr = fmt.Errorf("no provider available for doc %s page %d", req.DocID, req.Page)
	}
	return Response{}, "", lastErr
}

// isTransient reports whether the call should fail over to the next
// provider.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) || IsContentRefused(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "network") ||
		strings.Contains(s, "eof") ||
		strings.Contains(s, "status 5") ||
		strings.Contains(s, "missing openai_api_key") ||
		strings.Contains(s, "missing anthropic_api_key")
}

// isFatal reports whether retrying elsewhere is pointless, typically a
// request the API rejected outright.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "status 429") {
		return false
	}
	return strings.Contains(s, "status 4") ||
		strings.Contains(s, "invalid request") ||
		strings.Contains(s, "bad request") ||
		strings.Contains(s, "malformed")
}
