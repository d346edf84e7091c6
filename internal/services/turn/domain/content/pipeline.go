package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
)

// Kind names one call kind and its contract.
type Kind string

const (
	KindExternalMoves   Kind = "external_moves"
	KindDomesticEvents  Kind = "domestic_events"
	KindCountryActions  Kind = "country_actions"
	KindRoundResolution Kind = "round_resolution"
	KindRoundSummary    Kind = "round_summary"
)

// Payload is a validated response of one call kind.
type Payload interface {
	Kind() Kind
}

// Contract validates the raw JSON of one call kind into its payload.
type Contract[T Payload] struct {
	Kind Kind
	// Schema is the shape description sent with a repair call.
	Schema string
	// RepairMaxTokens bounds the repair completion.
	RepairMaxTokens int
	Validate        func(raw json.RawMessage) (T, error)
}

func (c Contract[T]) decode(text string) (T, apperrors.Code, error) {
	var zero T
	raw, err := ExtractJSON(text)
	if err != nil {
		return zero, apperrors.CodeContentParse, err
	}
	value, err := c.Validate(raw)
	if err != nil {
		return zero, apperrors.CodeContentSchema, err
	}
	return value, "", nil
}

const (
	repairSystemPrompt = "Du gibst ausschließlich gültiges JSON zurück. Kein Markdown."
	repairTemperature  = 0.2
	repairTopP         = 1.0
)

// Pipeline issues content requests against one provider and model.
type Pipeline struct {
	provider Provider
	model    string
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the pipeline tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// NewPipeline returns a pipeline calling provider with model.
func NewPipeline(provider Provider, model string, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider: provider,
		model:    model,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/louisbranch/euroturn/content"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Model returns the model requests are issued against.
func (p *Pipeline) Model() string { return p.model }

// Run issues prompt, validates the response with contract and repairs it at
// most once.
func Run[T Payload](ctx context.Context, p *Pipeline, prompt Prompt, contract Contract[T]) (T, error) {
	var zero T
	if p == nil || p.provider == nil {
		return zero, apperrors.New(apperrors.CodeProvider, "content provider is not configured")
	}

	ctx, span := p.tracer.Start(ctx, "content.request", trace.WithAttributes(
		attribute.String("content.kind", string(contract.Kind)),
		attribute.String("content.model", p.model),
	))
	defer span.End()
	log := p.logger.With(zap.String("kind", string(contract.Kind)))

	text, err := p.complete(ctx, contract.Kind, prompt.request(p.model))
	if err != nil {
		span.SetStatus(codes.Error, "provider")
		return zero, err
	}
	value, code, problem := contract.decode(text)
	if problem == nil {
		log.Debug("content accepted", zap.Bool("repair", false), zap.Int("bytes", len(text)))
		return value, nil
	}

	log.Warn("content rejected, requesting repair",
		zap.String("code", string(code)),
		zap.Error(problem),
		zap.Int("bytes", len(text)),
	)
	span.AddEvent("repair", trace.WithAttributes(attribute.String("content.problem", string(code))))

	repaired, err := p.complete(ctx, contract.Kind, repairRequest(p.model, contract.Schema, contract.RepairMaxTokens, text, problem))
	if err != nil {
		span.SetStatus(codes.Error, "provider")
		return zero, err
	}
	value, code, problem = contract.decode(repaired)
	if problem == nil {
		log.Info("content accepted", zap.Bool("repair", true), zap.Int("bytes", len(repaired)))
		return value, nil
	}

	log.Warn("content rejected after repair", zap.String("code", string(code)), zap.Error(problem))
	span.SetStatus(codes.Error, string(code))
	return zero, apperrors.WrapWithMetadata(code,
		fmt.Sprintf("%s response rejected after repair", contract.Kind),
		map[string]string{"kind": string(contract.Kind)},
		problem)
}

func (p *Pipeline) complete(ctx context.Context, kind Kind, req Request) (string, error) {
	text, err := p.provider.Complete(ctx, req)
	if err != nil {
		return "", apperrors.WrapWithMetadata(apperrors.CodeProvider,
			fmt.Sprintf("%s completion failed", kind),
			map[string]string{"kind": string(kind)},
			err)
	}
	return text, nil
}

func repairRequest(model, schema string, maxTokens int, rejected string, problem error) Request {
	if maxTokens <= 0 {
		maxTokens = 900
	}
	var b strings.Builder
	b.WriteString("Du bist ein Validator/Formatter. Wandle die folgende Ausgabe in **gültiges JSON** um.\n\n")
	b.WriteString("Wichtig:\n")
	b.WriteString("- Gib **NUR** JSON zurück (keine Erklärungen, kein Markdown).\n")
	b.WriteString("- Nutze **nur** doppelte Anführungszeichen.\n")
	b.WriteString("- Keine trailing commas.\n")
	b.WriteString("- Schema MUSS exakt passen.\n\n")
	b.WriteString("Problem:\n")
	b.WriteString(problem.Error())
	b.WriteString("\n\nSchema:\n")
	b.WriteString(strings.TrimSpace(schema))
	b.WriteString("\n\nHier ist die zu reparierende Ausgabe:\n")
	b.WriteString(rejected)

	return Request{
		Model: model,
		Messages: []Message{
			{Role: RoleSystem, Content: repairSystemPrompt},
			{Role: RoleUser, Content: b.String()},
		},
		Temperature: repairTemperature,
		TopP:        repairTopP,
		MaxTokens:   maxTokens,
	}
}
