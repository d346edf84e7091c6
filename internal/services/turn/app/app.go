// Package app wires the turn engine from process configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/platform/otel"
	"github.com/louisbranch/euroturn/internal/random"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/content"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/country"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/engine"
	"github.com/louisbranch/euroturn/internal/services/turn/prompt"
	"github.com/louisbranch/euroturn/internal/services/turn/provider/gemini"
	"github.com/louisbranch/euroturn/internal/services/turn/provider/mistral"
	"github.com/louisbranch/euroturn/internal/services/turn/rules"
	"github.com/louisbranch/euroturn/internal/services/turn/storage/sqlite"
)

// Provider names accepted by Config.ProviderName.
const (
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
)

const tracerName = "github.com/louisbranch/euroturn/turn"

// Config selects the store, catalog and content provider.
type Config struct {
	DBPath       string
	CatalogPath  string
	ProviderName string
	Model        string
	APIKey       string
	ProviderURL  string

	// Provider overrides ProviderName when set.
	Provider content.Provider
	// Random overrides the crypto-seeded craziness source when set.
	Random random.Source
}

// App owns an engine and the store behind it.
type App struct {
	Engine *engine.Engine
	store  *sqlite.Store
}

// Open builds an App. Close must be called to release the store.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog, err := country.Load(cfg.CatalogPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "load catalog", err)
	}
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Store("create database directory", err)
		}
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, apperrors.Store("open store", err)
	}

	tracer := otel.Tracer(tracerName)
	pipeline := content.NewPipeline(provider, cfg.Model,
		content.WithLogger(logger.Named("content")),
		content.WithTracer(tracer),
	)
	eng, err := engine.New(engine.Config{
		Store:             store,
		Catalog:           catalog,
		Pipeline:          pipeline,
		Prompts:           prompt.NewGerman(),
		Evaluator:         rules.LuaEvaluator{},
		Progress:          rules.ProgressFromConditions,
		Decay:             rules.DecayPressures,
		ExternalModifiers: rules.ApplyExternalModifiers,
		Random:            cfg.Random,
		Logger:            logger.Named("engine"),
		Tracer:            tracer,
	})
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return &App{Engine: eng, store: store}, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.store.Close()
}

// newProvider resolves the content provider. A missing key is reported when
// a content command runs, so read-only commands work without one.
func newProvider(ctx context.Context, cfg Config) (content.Provider, error) {
	if cfg.Provider != nil {
		return cfg.Provider, nil
	}
	name := strings.ToLower(strings.TrimSpace(cfg.ProviderName))
	if name != ProviderMistral && name != ProviderGemini && name != "" {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "provider %q is not supported", cfg.ProviderName)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return missingKey{}, nil
	}
	switch name {
	case ProviderGemini:
		p, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, BaseURL: cfg.ProviderURL})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeProvider, "create provider", err)
		}
		return p, nil
	default:
		return mistral.New(mistral.Config{URL: cfg.ProviderURL, APIKey: cfg.APIKey}), nil
	}
}

type missingKey struct{}

func (missingKey) Complete(context.Context, content.Request) (string, error) {
	return "", fmt.Errorf("EUROTURN_API_KEY is required for content commands")
}
