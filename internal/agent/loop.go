package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cometlabs/comet/api/schemas"
)

// ErrCancelled is returned by Run when the loop was asked to stop between
// iterations.
var ErrCancelled = errors.New("agent loop cancelled")

// BudgetExhaustedAnswer is reported when the loop runs out of iterations
// without a trustworthy answer from the model.
const BudgetExhaustedAnswer = "Maximum iterations reached. Task may not be complete."

// LoopConfig bounds a single loop execution.
type LoopConfig struct {
	MaxIterations int
	ReadPageLimit int
	SystemPrompt  string
}

// Loop runs the perceive, reason, act cycle for one goal against one
// browser session. A Loop is single use.
type Loop struct {
	client schemas.ChatClient
	router *ToolRouter
	tools  []schemas.ToolSchema
	logger *zap.Logger
	cfg    LoopConfig

	cancelled atomic.Bool
}

// NewLoop assembles a loop over a gateway client and a browser session.
func NewLoop(client schemas.ChatClient, session schemas.BrowserSession, cfg LoopConfig, logger *zap.Logger) *Loop {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Loop{
		client: client,
		router: NewToolRouter(session, cfg.ReadPageLimit, logger),
		tools:  schemas.DefaultToolSchemas(),
		logger: logger.Named("agent_loop"),
		cfg:    cfg,
	}
}

// Cancel requests a cooperative stop. An in-flight tool call finishes; the
// loop exits before the next perception.
func (l *Loop) Cancel() {
	l.cancelled.Store(true)
}

// Run drives the loop until the model calls complete, the iteration budget
// runs out, or a fatal error occurs. Gateway failures and cancellation
// return an error; everything else produces a result.
func (l *Loop) Run(ctx context.Context, goal string) (*schemas.BrowseResult, error) {
	l.logger.Info("Starting browsing loop.", zap.String("goal", goal), zap.Int("max_iterations", l.cfg.MaxIterations))

	conv := NewConversation(l.cfg.SystemPrompt, goal)
	iterations := 0

	for iterations < l.cfg.MaxIterations {
		if l.cancelled.Load() {
			return nil, ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		turnContext := l.perceive(ctx, iterations)

		completion, err := l.client.Complete(ctx, conv.WithTurnContext(turnContext), l.tools)
		if err != nil {
			return nil, fmt.Errorf("reasoning failed: %w", err)
		}

		// Plain text without a tool call is the model's final answer.
		if completion.ToolCall == nil {
			l.logger.Info("Model answered without a tool call, treating as final answer.")
			conv.AppendAssistant(completion.Content, nil)
			return &schemas.BrowseResult{
				Success:      true,
				Answer:       completion.Content,
				Iterations:   iterations,
				FinishReason: schemas.FinishImplicit,
				Screenshots:  l.router.Screenshots(),
			}, nil
		}

		call := completion.ToolCall
		if call.Name == schemas.ToolComplete {
			answer := call.StringArg("answer")
			if answer == "" {
				answer = completion.Content
			}
			l.logger.Info("Goal marked complete.", zap.Int("iterations", iterations+1))
			return &schemas.BrowseResult{
				Success:      true,
				Answer:       answer,
				Iterations:   iterations + 1,
				FinishReason: schemas.FinishComplete,
				Screenshots:  l.router.Screenshots(),
			}, nil
		}

		conv.AppendAssistant(completion.Content, call)

		result := l.router.Dispatch(ctx, call)
		l.logger.Info("Tool executed.",
			zap.String("tool", string(result.Tool)),
			zap.Bool("success", result.Success),
		)

		if err := conv.AppendObservation(result); err != nil {
			return nil, fmt.Errorf("conversation invariant violated: %w", err)
		}
		iterations++
	}

	l.logger.Warn("Iteration budget exhausted before completion.")
	answer := conv.LastAssistantText()
	if answer == "" {
		answer = BudgetExhaustedAnswer
	}
	return &schemas.BrowseResult{
		Success:      false,
		Answer:       answer,
		Iterations:   iterations,
		FinishReason: schemas.FinishBudget,
		Screenshots:  l.router.Screenshots(),
	}, nil
}

// perceive summarizes the browser state for the next model turn. Failures
// here degrade to a warning in the context instead of stopping the loop.
func (l *Loop) perceive(ctx context.Context, iteration int) string {
	if !l.router.HasPage() {
		return fmt.Sprintf("\nCurrent state: No page loaded yet. You should navigate to a URL first. (iteration %d of %d)",
			iteration+1, l.cfg.MaxIterations)
	}

	state, err := l.router.session.PageState(ctx)
	if err != nil {
		l.logger.Warn("Could not read page state during perception.", zap.Error(err))
		return fmt.Sprintf("\nCurrent state: On page at %s\nWarning: %v\n(iteration %d of %d)",
			l.router.CurrentURL(), err, iteration+1, l.cfg.MaxIterations)
	}

	return fmt.Sprintf("\nCurrent state: On page '%s' at %s (ready state: %s)\n(iteration %d of %d)",
		state.Title, state.URL, state.ReadyState, iteration+1, l.cfg.MaxIterations)
}
