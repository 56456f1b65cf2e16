// Package response composes the assistant's free-text replies, from the LLM
// when one is configured and from deterministic templates otherwise.
package response

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/llm"
)

// Defaults for completion requests.
const (
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 300
	DefaultHistoryTurns = 6
)

// Knowledge looks up FAQ answers.
type Knowledge interface {
	AnswerFor(ctx context.Context, message string) (*domain.KnowledgeEntry, error)
}

// Request is everything the pipeline needs for one reply.
type Request struct {
	SessionID    string
	Product      *domain.Product
	Message      string
	History      []domain.Message
	Profile      *domain.UserProfile
	Intent       domain.Intent
	Confidence   float64
	ForceAI      bool
	Testimonials []*domain.Testimonial
}

// Options configures a Pipeline.
type Options struct {
	Primary          llm.Completer
	Secondary        llm.Completer
	Knowledge        Knowledge
	Temperature      float64
	MaxTokens        int
	HistoryTurns     int
	Structured       bool
	WhatsAppNumber   string
	FreeDeliveryCity string
	Logger           *slog.Logger
}

// Pipeline produces replies. Respond never returns an error.
type Pipeline struct {
	providers        []llm.Completer
	knowledge        Knowledge
	temperature      float64
	maxTokens        int
	historyTurns     int
	structured       bool
	whatsAppNumber   string
	freeDeliveryCity string
	logger           *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var providers []llm.Completer
	for _, c := range []llm.Completer{opts.Primary, opts.Secondary} {
		if c != nil {
			providers = append(providers, c)
		}
	}
	return &Pipeline{
		providers:        providers,
		knowledge:        opts.Knowledge,
		temperature:      opts.Temperature,
		maxTokens:        opts.MaxTokens,
		historyTurns:     opts.HistoryTurns,
		structured:       opts.Structured,
		whatsAppNumber:   opts.WhatsAppNumber,
		freeDeliveryCity: opts.FreeDeliveryCity,
		logger:           opts.Logger,
	}
}

// WhatsAppNumber returns the configured support number.
func (p *Pipeline) WhatsAppNumber() string {
	return p.whatsAppNumber
}

// Respond answers a free-text message. A matching FAQ entry is served from
// rules unless ForceAI is set; otherwise each configured provider is tried
// in order before falling back to rules.
func (p *Pipeline) Respond(ctx context.Context, req Request) (resp domain.ChatResponse) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("response pipeline panic",
				"session_id", req.SessionID,
				"panic", r)
			resp = p.fallback(req, nil)
		}
		resp.Normalize()
	}()

	if req.Intent == domain.IntentSupport {
		resp = p.Support(req)
		resp.WithSource(domain.SourceRules)
		return resp
	}

	faq := p.lookupFAQ(ctx, req)
	if faq != nil && !req.ForceAI {
		resp = p.Rules(req, faq)
		resp.WithSource(domain.SourceRules)
		return resp
	}

	if len(p.providers) == 0 {
		resp = p.Rules(req, faq)
		resp.WithSource(domain.SourceRules)
		return resp
	}

	for _, provider := range p.providers {
		r, err := p.complete(ctx, provider, req, faq)
		if err == nil {
			r.WithSource(domain.SourceLLM)
			p.decorate(&r, req)
			return r
		}
		p.logger.Warn("llm response failed",
			"session_id", req.SessionID,
			"provider", provider.Name(),
			"error", err)
		if errors.Is(err, ErrMalformedCompletion) {
			break
		}
	}
	return p.fallback(req, faq)
}

func (p *Pipeline) fallback(req Request, faq *domain.KnowledgeEntry) domain.ChatResponse {
	resp := p.Rules(req, faq)
	resp.WithSource(domain.SourceFallback)
	return resp
}

func (p *Pipeline) lookupFAQ(ctx context.Context, req Request) *domain.KnowledgeEntry {
	if p.knowledge == nil {
		return nil
	}
	faq, err := p.knowledge.AnswerFor(ctx, req.Message)
	if err != nil {
		p.logger.Warn("knowledge lookup failed",
			"session_id", req.SessionID,
			"error", err)
		return nil
	}
	return faq
}

func (p *Pipeline) complete(ctx context.Context, provider llm.Completer, req Request, faq *domain.KnowledgeEntry) (domain.ChatResponse, error) {
	history := req.History
	if n := len(history); n > p.historyTurns {
		history = history[n-p.historyTurns:]
	}
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Text})
	}
	messages = append(messages, llm.Message{Role: string(domain.RoleUser), Content: req.Message})

	text, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: SystemPrompt(req, faq, p.structured),
		Messages:     messages,
		Temperature:  p.temperature,
		MaxTokens:    p.maxTokens,
		JSON:         p.structured,
	})
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("%s: %w", provider.Name(), err)
	}
	if !p.structured {
		return wrapPlain(text), nil
	}
	return ParseStructured(text)
}

// decorate adds the side effects the chosen strategy implies to an LLM reply.
func (p *Pipeline) decorate(resp *domain.ChatResponse, req Request) {
	if req.Intent == domain.IntentHesitation {
		p.attachTestimonials(resp, req, false)
	}
}
