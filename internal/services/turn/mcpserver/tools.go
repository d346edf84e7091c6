package mcpserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/euroturn/internal/platform/errors"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/engine"
	"github.com/louisbranch/euroturn/internal/services/turn/domain/state"
)

// Commands is the engine surface the tools call.
type Commands interface {
	Status(ctx context.Context) (engine.Status, error)
	Readiness(ctx context.Context, round int) (engine.Readiness, error)
	AdvanceExternal(ctx context.Context) (engine.ExternalResult, error)
	GenerateActions(ctx context.Context) (map[string]state.ActionSet, error)
	Publish(ctx context.Context) error
	CommitLock(ctx context.Context, country, variant string) (state.Lock, error)
	Resolve(ctx context.Context) (engine.ResolveResult, error)
}

// toolError prefixes err with its domain code.
func toolError(op string, err error) error {
	return fmt.Errorf("%s failed [%s]: %w", op, apperrors.CodeOf(err), err)
}

// NoInput is the input of tools without arguments.
type NoInput struct{}

// StatusResult is the output of turn_status.
type StatusResult struct {
	Round     int            `json:"round"`
	Phase     string         `json:"phase"`
	GameOver  bool           `json:"game_over"`
	Winner    string         `json:"winner,omitempty"`
	EU        EUView         `json:"eu"`
	Countries []CountryView  `json:"countries"`
	Locked    []string       `json:"locked" jsonschema:"countries with a committed lock this round"`
	Commands  []string       `json:"commands" jsonschema:"commands legal right now"`
	Summaries []SummaryView  `json:"summaries"`
	Standings []StandingView `json:"standings"`
}

// StatusTool defines turn_status.
func StatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_status",
		Description: "Returns the current round, phase, EU state, country metrics, recent summaries and latest standings.",
	}
}

// StatusHandler reads the game status.
func StatusHandler(c Commands) mcp.ToolHandlerFor[NoInput, StatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, StatusResult, error) {
		status, err := c.Status(ctx)
		if err != nil {
			return nil, StatusResult{}, toolError("status", err)
		}
		result := StatusResult{
			Round:     status.Meta.Round,
			Phase:     string(status.Meta.Phase),
			GameOver:  status.Meta.GameOver,
			Winner:    status.Meta.WinnerCountry,
			EU:        euView(status.EU),
			Countries: []CountryView{},
			Locked:    []string{},
			Commands:  status.Commands.Strings(),
			Summaries: []SummaryView{},
			Standings: []StandingView{},
		}
		for _, country := range status.Countries {
			result.Countries = append(result.Countries, CountryView{Country: country.Country, Metrics: country.Metrics.Named(), Ambition: country.Ambition})
		}
		for key := range status.Locks {
			result.Locked = append(result.Locked, key)
		}
		sort.Strings(result.Locked)
		for _, s := range status.Summaries {
			result.Summaries = append(result.Summaries, SummaryView{Round: s.Round, Text: s.Text})
		}
		for _, s := range status.Snapshots {
			result.Standings = append(result.Standings, StandingView{Round: s.Round, Country: s.Country, Progress: s.VictoryProgress, IsWinner: s.IsWinner})
		}
		return nil, result, nil
	}
}

// ReadinessInput selects the round to evaluate.
type ReadinessInput struct {
	Round int `json:"round,omitempty" jsonschema:"round to evaluate; omitted means the current round"`
}

// ReadinessResult is the output of turn_readiness.
type ReadinessResult struct {
	Round      int               `json:"round"`
	Phase      string            `json:"phase"`
	Commands   []string          `json:"commands"`
	Rejections map[string]string `json:"rejections" jsonschema:"why each other command is not legal"`
}

// ReadinessTool defines turn_readiness.
func ReadinessTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_readiness",
		Description: "Lists the commands legal for a round and the reason every other command is rejected.",
	}
}

// ReadinessHandler evaluates readiness.
func ReadinessHandler(c Commands) mcp.ToolHandlerFor[ReadinessInput, ReadinessResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReadinessInput) (*mcp.CallToolResult, ReadinessResult, error) {
		r, err := c.Readiness(ctx, input.Round)
		if err != nil {
			return nil, ReadinessResult{}, toolError("readiness", err)
		}
		return nil, ReadinessResult{
			Round:      r.Round,
			Phase:      string(r.Phase),
			Commands:   r.Commands.Strings(),
			Rejections: rejectionViews(r),
		}, nil
	}
}

// AdvanceExternalResult is the output of turn_advance_external.
type AdvanceExternalResult struct {
	Round    int            `json:"round"`
	EU       EUView         `json:"eu"`
	External []ExternalView `json:"external"`
	Domestic []DomesticView `json:"domestic"`
}

// AdvanceExternalTool defines turn_advance_external.
func AdvanceExternalTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_advance_external",
		Description: "Generates external power moves and domestic headlines for the round in setup.",
	}
}

// AdvanceExternalHandler runs AdvanceExternal.
func AdvanceExternalHandler(c Commands) mcp.ToolHandlerFor[NoInput, AdvanceExternalResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, AdvanceExternalResult, error) {
		r, err := c.AdvanceExternal(ctx)
		if err != nil {
			return nil, AdvanceExternalResult{}, toolError("advance external", err)
		}
		return nil, AdvanceExternalResult{
			Round:    r.Round,
			EU:       euView(r.EU),
			External: externalViews(r.External),
			Domestic: domesticViews(r.Domestic),
		}, nil
	}
}

// GenerateActionsResult is the output of turn_generate_actions.
type GenerateActionsResult struct {
	Countries []ActionsView `json:"countries"`
}

// GenerateActionsTool defines turn_generate_actions.
func GenerateActionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_generate_actions",
		Description: "Generates the aggressiv, moderate and passiv action variants for every country.",
	}
}

// GenerateActionsHandler runs GenerateActions.
func GenerateActionsHandler(c Commands) mcp.ToolHandlerFor[NoInput, GenerateActionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, GenerateActionsResult, error) {
		sets, err := c.GenerateActions(ctx)
		if err != nil {
			return nil, GenerateActionsResult{}, toolError("generate actions", err)
		}
		return nil, GenerateActionsResult{Countries: actionsViews(sets)}, nil
	}
}

// PublishResult is the output of turn_publish.
type PublishResult struct {
	Round int    `json:"round"`
	Phase string `json:"phase"`
}

// PublishTool defines turn_publish.
func PublishTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_publish",
		Description: "Publishes the generated action variants so countries can lock a choice.",
	}
}

// PublishHandler runs Publish and reports the new phase.
func PublishHandler(c Commands) mcp.ToolHandlerFor[NoInput, PublishResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, PublishResult, error) {
		if err := c.Publish(ctx); err != nil {
			return nil, PublishResult{}, toolError("publish", err)
		}
		status, err := c.Status(ctx)
		if err != nil {
			return nil, PublishResult{}, toolError("status", err)
		}
		return nil, PublishResult{Round: status.Meta.Round, Phase: string(status.Meta.Phase)}, nil
	}
}

// CommitLockInput is the input of turn_commit_lock.
type CommitLockInput struct {
	Country string `json:"country" jsonschema:"internal country key, e.g. Germany"`
	Variant string `json:"variant" jsonschema:"aggressiv, moderate or passiv"`
}

// CommitLockResult is the output of turn_commit_lock.
type CommitLockResult struct {
	Round   int    `json:"round"`
	Country string `json:"country"`
	Variant string `json:"variant"`
}

// CommitLockTool defines turn_commit_lock.
func CommitLockTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_commit_lock",
		Description: "Commits a country's chosen variant for the published round. A lock cannot be changed.",
	}
}

// CommitLockHandler runs CommitLock.
func CommitLockHandler(c Commands) mcp.ToolHandlerFor[CommitLockInput, CommitLockResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CommitLockInput) (*mcp.CallToolResult, CommitLockResult, error) {
		l, err := c.CommitLock(ctx, input.Country, input.Variant)
		if err != nil {
			return nil, CommitLockResult{}, toolError("commit lock", err)
		}
		return nil, CommitLockResult{Round: l.Round, Country: l.Country, Variant: string(l.Variant)}, nil
	}
}

// ResolveResult is the output of turn_resolve.
type ResolveResult struct {
	Round     int            `json:"round"`
	EU        EUView         `json:"eu"`
	Turns     []TurnView     `json:"turns"`
	Summary   string         `json:"summary"`
	Standings []StandingView `json:"standings"`
	GameOver  bool           `json:"game_over"`
	Winner    string         `json:"winner,omitempty"`
	NextRound int            `json:"next_round,omitempty"`
}

// ResolveTool defines turn_resolve.
func ResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_resolve",
		Description: "Resolves the round once every country is locked: applies deltas, records history, snapshots standings and advances or ends the game.",
	}
}

// ResolveHandler runs Resolve.
func ResolveHandler(c Commands) mcp.ToolHandlerFor[NoInput, ResolveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, ResolveResult, error) {
		r, err := c.Resolve(ctx)
		if err != nil {
			return nil, ResolveResult{}, toolError("resolve", err)
		}
		result := ResolveResult{
			Round:     r.Round,
			EU:        euView(r.EUAfter),
			Summary:   r.Summary,
			GameOver:  r.GameOver,
			Winner:    r.Winner,
			NextRound: r.NextRound,
			Turns:     []TurnView{},
			Standings: []StandingView{},
		}
		for _, t := range r.Turns {
			result.Turns = append(result.Turns, TurnView{Country: t.Country, Variant: string(t.Variant), Action: t.ActionText, Deltas: t.Deltas.Named()})
		}
		for _, s := range r.Standings.Snapshots() {
			result.Standings = append(result.Standings, StandingView{Round: s.Round, Country: s.Country, Progress: s.VictoryProgress, IsWinner: s.IsWinner})
		}
		return nil, result, nil
	}
}
