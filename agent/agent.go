package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/async"
	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/events"
	"github.com/danaruntime/dana/llms"
	"github.com/danaruntime/dana/logger"
	"github.com/danaruntime/dana/memory"
	"github.com/danaruntime/dana/metrics"
	"github.com/danaruntime/dana/plan"
	"github.com/danaruntime/dana/reasoning"
	"github.com/danaruntime/dana/resources"
	"github.com/danaruntime/dana/workflow"
)

// ============================================================================
// AGENT CORE
// ============================================================================

// Lifecycle step markers recorded in live metrics and emitted as status
// events.
const (
	StepInitialized = "initialized"
	StepCleanedUp   = "cleaned_up"
)

// LiveMetrics is the agent's current execution snapshot.
type LiveMetrics struct {
	IsRunning    bool    `json:"is_running"`
	CurrentStep  string  `json:"current_step"`
	ElapsedTime  float64 `json:"elapsed_time"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

// Agent owns its memory, event history, metrics, and resource handles. It
// is created explicitly; Acquire and Release bracket its lifecycle.
type Agent struct {
	name      string
	cfg       config.AgentConfig
	bus       *events.Bus
	kv        *memory.KeyValue
	conv      *memory.ConversationMemory
	resources *resources.Registry
	selector  *reasoning.Selector
	factory   *workflow.Factory
	history   *History
	peers     *Registry
	pool      *async.Pool
	collect   *metrics.Collectors
	log       *slog.Logger

	mu          sync.Mutex
	acquired    bool
	currentStep string
	isRunning   bool
	elapsed     float64
	tokensPS    float64
	tokensUsed  int
	solveStart  time.Time
}

// Option customizes agent construction.
type Option func(*Agent)

// WithPeers wires the agent registry used to resolve Delegate plans.
func WithPeers(peers *Registry) Option {
	return func(a *Agent) { a.peers = peers }
}

// WithCollectors attaches prometheus collectors.
func WithCollectors(c *metrics.Collectors) Option {
	return func(a *Agent) { a.collect = c }
}

// WithFactory overrides the workflow factory.
func WithFactory(f *workflow.Factory) Option {
	return func(a *Agent) { a.factory = f }
}

// WithStrategies replaces the default strategy set. Registration order is
// the selector's tie-break order.
func WithStrategies(strategies ...reasoning.Strategy) Option {
	return func(a *Agent) {
		a.selector = reasoning.NewSelector()
		for _, s := range strategies {
			_ = a.selector.Register(s)
		}
	}
}

// New creates an agent. A nil config selects defaults; a nil resource
// registry leaves the agent without external capabilities (LLM-backed
// operations then fail with ResourceUnavailable).
func New(name string, cfg *config.AgentConfig, res *resources.Registry, opts ...Option) (*Agent, error) {
	if name == "" {
		return nil, agenterr.New(agenterr.KindInvalidArgument, "Agent", "New", "agent name cannot be empty")
	}
	if cfg == nil {
		cfg = &config.AgentConfig{Name: name}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, agenterr.Wrap(agenterr.KindInvalidArgument, "Agent", "New", "invalid agent config", err)
	}
	if res == nil {
		res = resources.NewRegistry()
	}

	a := &Agent{
		name:        name,
		cfg:         *cfg,
		bus:         events.NewBus(name),
		kv:          memory.NewKeyValue(),
		resources:   res,
		factory:     workflow.NewFactory(),
		history:     NewHistory(),
		pool:        async.NewPool(context.Background(), async.DefaultWorkers),
		log:         logger.ForComponent("agent." + name),
		currentStep: "created",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.selector == nil {
		a.selector = reasoning.NewSelector()
		_ = a.selector.Register(reasoning.NewPlanner(a, a.factory, a.cfg.PlanAttempts))
		_ = a.selector.Register(reasoning.NewRecursive(a, a.factory, a.cfg.MaxRecursionDepth))
		_ = a.selector.Register(reasoning.NewIterative(a, a.cfg.MaxIterations))
	}
	return a, nil
}

// Name returns the agent's stable name.
func (a *Agent) Name() string { return a.name }

// Bus returns the agent's event bus.
func (a *Agent) Bus() *events.Bus { return a.bus }

// History returns the agent's action history.
func (a *Agent) History() *History { return a.history }

// Resources returns the agent's resource registry.
func (a *Agent) Resources() *resources.Registry { return a.resources }

// Metrics returns a snapshot of the agent's live metrics.
func (a *Agent) Metrics() LiveMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return LiveMetrics{
		IsRunning:    a.isRunning,
		CurrentStep:  a.currentStep,
		ElapsedTime:  a.elapsed,
		TokensPerSec: a.tokensPS,
	}
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Acquire initializes conversation memory and the LLM resource. Idempotent.
func (a *Agent) Acquire(ctx context.Context) error {
	a.mu.Lock()
	if a.acquired {
		a.mu.Unlock()
		return nil
	}
	if a.conv == nil {
		a.conv = memory.NewConversationMemory()
	}
	a.mu.Unlock()

	if llm, ok := a.resources.GetByKind(resources.KindLLM); ok {
		if err := llm.Initialize(ctx); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.acquired = true
	a.currentStep = StepInitialized
	a.mu.Unlock()

	a.emit(events.NewStatus(StepInitialized, ""))
	return nil
}

// Release stops and cleans up the LLM resource, clears conversation and
// key-value memory, and marks the agent cleaned up. Idempotent: a second
// release is observationally equivalent to one.
func (a *Agent) Release() error {
	a.mu.Lock()
	if a.currentStep == StepCleanedUp {
		a.mu.Unlock()
		return nil
	}
	conv := a.conv
	a.acquired = false
	a.currentStep = StepCleanedUp
	a.mu.Unlock()

	var firstErr error
	if llm, ok := a.resources.GetByKind(resources.KindLLM); ok {
		if err := llm.Stop(); err != nil {
			firstErr = err
		}
		if err := llm.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if conv != nil {
		conv.Clear()
	}
	a.kv.Clear()

	a.emit(events.NewStatus(StepCleanedUp, ""))
	return firstErr
}

// WithLifecycle runs fn between Acquire and Release; Release runs on every
// exit path and errors from fn propagate after it.
func (a *Agent) WithLifecycle(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := a.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = a.Release() }()
	return fn(ctx)
}

// ============================================================================
// PUBLIC OPERATIONS
// ============================================================================

// Solve plans and executes a solution for the input, which is either a
// problem string or a pre-built workflow instance. It returns a successful
// payload or, unless strict is configured, an error-shaped mapping.
func (a *Agent) Solve(ctx context.Context, input any) (any, error) {
	problem, pctx, err := a.rootContext(input)
	if err != nil {
		return a.errorPayload(err, ""), a.strictErr(err)
	}

	a.startSolve()
	defer a.finishSolve()

	a.history.BeginTurn(problem)
	a.emit(events.NewStatus("solve", problem))
	result, err := a.solveWithContext(ctx, input, pctx)
	if err != nil {
		a.emit(events.NewError(err.Error()))
		a.emit(events.NewDone())
		a.countSolve("failed")
		return a.errorPayload(err, problem), a.strictErr(err)
	}

	a.emit(events.NewFinalResult(result))
	a.emit(events.NewDone())
	a.countSolve("completed")
	return result, nil
}

// Plan dispatches to the selected strategy and always materializes a
// workflow instance: workflow plans directly, anything else wrapped in a
// single-step instance that executes the plan.
func (a *Agent) Plan(ctx context.Context, input any) (*workflow.Instance, error) {
	switch v := input.(type) {
	case *workflow.Instance:
		return v, nil
	case string:
		return a.planInstance(ctx, v, reasoning.NewProblemContext(v, ""))
	default:
		return nil, agenterr.New(agenterr.KindInvalidArgument, "Agent", "Plan",
			fmt.Sprintf("input must be a string or workflow instance, got %T", input))
	}
}

// Reason makes a single-shot LLM call with an optional system message.
func (a *Agent) Reason(ctx context.Context, premise, system string) (string, error) {
	started := time.Now()

	var messages []llms.Message
	if system != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: system})
	}
	messages = append(messages, llms.Message{Role: llms.RoleUser, Content: premise})

	text, err := a.queryMessages(ctx, messages)
	a.history.Append(Action{
		Type:          ActionReasoning,
		Description:   premise,
		Success:       err == nil,
		ExecutionTime: time.Since(started),
		Result:        text,
		ErrorMessage:  errMessage(err),
	})
	return text, err
}

// Chat answers a message in the context of the last N conversation turns
// and appends the new turn to conversation memory on delivery. The reply
// streams onto the event bus token by token as it is generated.
func (a *Agent) Chat(ctx context.Context, message string) (string, error) {
	started := time.Now()

	var messages []llms.Message
	if conv := a.conversation(); conv != nil {
		for _, turn := range conv.GetRecent(a.cfg.ChatContextTurns) {
			messages = append(messages,
				llms.Message{Role: llms.RoleUser, Content: turn.User},
				llms.Message{Role: llms.RoleAssistant, Content: turn.Assistant})
		}
	}
	messages = append(messages, llms.Message{Role: llms.RoleUser, Content: message})

	reply, err := a.query(ctx, messages, true)
	if err == nil {
		if conv := a.conversation(); conv != nil {
			_ = conv.AddTurn(message, reply)
		}
	}
	a.history.Append(Action{
		Type:          ActionChat,
		Description:   message,
		Success:       err == nil,
		ExecutionTime: time.Since(started),
		Result:        reply,
		ErrorMessage:  errMessage(err),
	})
	return reply, err
}

// Remember stores a value under key; last write wins.
func (a *Agent) Remember(key string, value any) {
	a.kv.Remember(key, value)
}

// Recall returns the value under key, or the missing sentinel.
func (a *Agent) Recall(key string) any {
	return a.kv.Recall(key)
}

// Input prompts the user through the input resource and blocks until a
// value arrives or the context ends.
func (a *Agent) Input(ctx context.Context, prompt string) (string, error) {
	res, ok := a.resources.GetByKind(resources.KindInput)
	if !ok {
		return "", agenterr.New(agenterr.KindResourceUnavailable, "Agent", "Input",
			"no input resource registered")
	}
	resp, err := res.Query(ctx, resources.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	a.history.Append(Action{
		Type:        ActionUserInput,
		Description: prompt,
		Success:     true,
		Result:      resp.Content,
	})
	return resp.Content, nil
}

// Log routes a message through the process logger and the event bus.
// Level is one of DEBUG, INFO, WARNING, ERROR; anything else logs as INFO.
func (a *Agent) Log(message, level string) {
	switch level {
	case events.LevelDebug:
		a.log.Debug(message)
	case events.LevelWarning:
		a.log.Warn(message)
	case events.LevelError:
		a.log.Error(message)
	default:
		level = events.LevelInfo
		a.log.Info(message)
	}
	a.emit(events.NewLog(level, message))
}

// QueryLLM implements reasoning.LLMService over the agent's LLM resource.
func (a *Agent) QueryLLM(ctx context.Context, prompt string) (string, error) {
	return a.queryMessages(ctx, []llms.Message{{Role: llms.RoleUser, Content: prompt}})
}

// ============================================================================
// SOLVE INTERNALS
// ============================================================================

func (a *Agent) rootContext(input any) (string, *reasoning.ProblemContext, error) {
	switch v := input.(type) {
	case string:
		if v == "" {
			return "", nil, agenterr.New(agenterr.KindInvalidArgument, "Agent", "Solve",
				"problem cannot be empty")
		}
		return v, reasoning.NewProblemContext(v, ""), nil
	case *workflow.Instance:
		if v == nil {
			return "", nil, agenterr.New(agenterr.KindInvalidArgument, "Agent", "Solve",
				"workflow instance cannot be nil")
		}
		return v.Name(), reasoning.NewProblemContext(v.Name(), ""), nil
	default:
		return "", nil, agenterr.New(agenterr.KindInvalidArgument, "Agent", "Solve",
			fmt.Sprintf("input must be a string or workflow instance, got %T", input))
	}
}

// solveWithContext is one frame of the recursive solve. The depth cap
// substitutes the base case; identity loops are the recursive strategy's
// concern so synthetic strategies can still be driven to the cap.
func (a *Agent) solveWithContext(ctx context.Context, input any, pctx *reasoning.ProblemContext) (any, error) {
	started := time.Now()
	problem := pctx.ProblemStatement

	if pctx.Depth >= a.cfg.MaxRecursionDepth {
		capErr := agenterr.New(agenterr.KindDepthExceeded, "Agent", "Solve",
			fmt.Sprintf("recursion depth %d reached the configured maximum %d",
				pctx.Depth, a.cfg.MaxRecursionDepth))
		a.Log(capErr.Error(), events.LevelInfo)
		result := reasoning.BaseCaseResult(problem, a.cfg.MaxRecursionDepth)
		a.history.Append(Action{
			Type:             ActionSolveCall,
			Description:      problem,
			Depth:            pctx.Depth,
			ProblemStatement: problem,
			Success:          true,
			Result:           result,
			ExecutionTime:    time.Since(started),
		})
		return result, nil
	}
	a.observeDepth(pctx.Depth)

	instance, err := a.planInstance(ctx, input, pctx)
	if err != nil {
		a.appendSolveAction(problem, pctx.Depth, started, nil, err, "")
		return nil, err
	}

	executor := &stateActionExecutor{agent: a, pctx: pctx}
	result, err := instance.Execute(ctx, executor, map[string]any{"problem": problem})
	if err != nil {
		a.appendSolveAction(problem, pctx.Depth, started, nil, err, instance.Name())
		return nil, err
	}

	payload := unwrapResult(instance, result)
	a.appendSolveAction(problem, pctx.Depth, started, payload, nil, instance.Name())
	return payload, nil
}

// planInstance asks the selected strategy for a plan and materializes it as
// a workflow instance.
func (a *Agent) planInstance(ctx context.Context, input any, pctx *reasoning.ProblemContext) (*workflow.Instance, error) {
	if instance, ok := input.(*workflow.Instance); ok {
		instance.SetStrict(a.cfg.Strict)
		return instance, nil
	}

	problem := input.(string)
	strategy := a.selector.Select(problem, pctx)
	if strategy == nil {
		return nil, agenterr.New(agenterr.KindInternal, "Agent", "Plan", "no strategies registered")
	}
	a.emit(events.NewStatus("planning", strategy.Name()))

	p, err := strategy.CreatePlan(ctx, problem, pctx)
	if err != nil {
		return nil, err
	}

	if p.Kind == plan.KindWorkflow {
		instance := p.Instance
		if instance == nil && p.WorkflowYAML != "" {
			instance, err = a.factory.FromYAML(p.WorkflowYAML)
			if err != nil {
				return nil, err
			}
		}
		if instance == nil {
			return nil, agenterr.New(agenterr.KindInvalidFormat, "Agent", "Plan",
				"workflow plan carries no instance or definition")
		}
		instance.SetStrict(a.cfg.Strict)
		return instance, nil
	}
	return a.wrapPlan(p)
}

// errorPayload is the error-shaped mapping solve returns in non-strict mode.
func (a *Agent) errorPayload(err error, workflowType string) map[string]any {
	payload := map[string]any{
		"error":  err.Error(),
		"status": "failed",
	}
	if workflowType != "" {
		payload["workflow_type"] = workflowType
	}
	return payload
}

func (a *Agent) strictErr(err error) error {
	if a.cfg.Strict {
		return err
	}
	return nil
}

func (a *Agent) appendSolveAction(problem string, depth int, started time.Time, result any, err error, workflowID string) {
	a.history.Append(Action{
		Type:             ActionSolveCall,
		Description:      problem,
		Depth:            depth,
		ProblemStatement: problem,
		WorkflowID:       workflowID,
		Success:          err == nil,
		Result:           result,
		ExecutionTime:    time.Since(started),
		ErrorMessage:     errMessage(err),
	})
}

func (a *Agent) conversation() *memory.ConversationMemory {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conv == nil {
		a.conv = memory.NewConversationMemory()
	}
	return a.conv
}

// queryMessages funnels every LLM call through one place so token metrics
// stay consistent.
func (a *Agent) queryMessages(ctx context.Context, messages []llms.Message) (string, error) {
	return a.query(ctx, messages, false)
}

// query makes the LLM call, optionally streaming each token onto the
// event bus as it arrives.
func (a *Agent) query(ctx context.Context, messages []llms.Message, stream bool) (string, error) {
	res, ok := a.resources.GetByKind(resources.KindLLM)
	if !ok {
		return "", agenterr.New(agenterr.KindResourceUnavailable, "Agent", "QueryLLM",
			"no llm resource registered")
	}
	req := resources.Request{Messages: messages}
	if stream {
		req.OnToken = func(token string) { a.emit(events.NewToken(token)) }
	}
	resp, err := res.Query(ctx, req)
	if err != nil {
		return "", err
	}

	tokens := resp.TokensUsed
	if tokens == 0 {
		tokens = metrics.CountTokens(resp.Content)
	}
	a.addTokens(tokens)
	return resp.Content, nil
}

// ============================================================================
// LIVE METRICS & EVENTS
// ============================================================================

func (a *Agent) startSolve() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isRunning = true
	a.currentStep = "solving"
	a.solveStart = time.Now()
	a.tokensUsed = 0
}

func (a *Agent) finishSolve() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isRunning = false
	a.currentStep = "idle"
	a.elapsed = time.Since(a.solveStart).Seconds()
	a.tokensPS = metrics.TokensPerSecond(a.tokensUsed, time.Since(a.solveStart))
	if a.collect != nil {
		a.collect.SolveDuration.WithLabelValues(a.name).Observe(a.elapsed)
		a.collect.TokensPerSecond.WithLabelValues(a.name).Set(a.tokensPS)
	}
}

func (a *Agent) addTokens(tokens int) {
	a.mu.Lock()
	a.tokensUsed += tokens
	a.mu.Unlock()
	if a.collect != nil {
		a.collect.LLMTokensTotal.WithLabelValues(a.name).Add(float64(tokens))
	}
}

func (a *Agent) countSolve(status string) {
	if a.collect != nil {
		a.collect.SolvesTotal.WithLabelValues(a.name, status).Inc()
	}
}

func (a *Agent) observeDepth(depth int) {
	if a.collect != nil {
		a.collect.RecursionDepth.WithLabelValues(a.name).Set(float64(depth))
	}
}

func (a *Agent) emit(event events.Event) {
	emitted := a.bus.Emit(event)
	if a.collect != nil {
		a.collect.EventsEmitted.WithLabelValues(a.name, string(emitted.Type)).Inc()
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
