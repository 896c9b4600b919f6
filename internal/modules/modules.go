package modules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"issuebridge/internal/middleware"
	"issuebridge/internal/observability"
)

// DefaultToolTimeout is the maximum duration for a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// ErrDuplicateTool is returned when two modules declare the same tool name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// =============================================================================
// Registry
// =============================================================================

type entry struct {
	module Module
	tool   Tool
}

// Registry holds the registered modules and indexes their tools by name.
// It is built once at startup and read-only afterwards.
type Registry struct {
	modules map[string]Module
	tools   map[string]entry
	order   []string
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout overrides DefaultToolTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for tool call events.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l.With().Str("component", "registry").Logger() }
}

// NewRegistry indexes the tools of the given modules. Tool names must be
// unique across modules; a registry that cannot be constructed is a startup
// failure, not a per-request one.
func NewRegistry(mods []Module, opts ...Option) (*Registry, error) {
	r := &Registry{
		modules: make(map[string]Module, len(mods)),
		tools:   make(map[string]entry),
		timeout: DefaultToolTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, m := range mods {
		if _, exists := r.modules[m.Name()]; exists {
			return nil, errors.Errorf("module %q registered twice", m.Name())
		}
		r.modules[m.Name()] = m
		for _, t := range m.Tools() {
			if prev, exists := r.tools[t.Name]; exists {
				return nil, errors.Wrap(ErrDuplicateTool, fmt.Sprintf("%s (modules %s, %s)", t.Name, prev.module.Name(), m.Name()))
			}
			r.tools[t.Name] = entry{module: m, tool: t}
			r.order = append(r.order, t.Name)
		}
	}
	return r, nil
}

// Tools returns every registered tool descriptor in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// Lookup returns the descriptor of a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	e, ok := r.tools[name]
	return e.tool, ok
}

// ModuleNames returns all registered module names, sorted.
func (r *Registry) ModuleNames() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Tool Execution
// =============================================================================

// Run validates params against the tool's schema and executes it.
// Every failure (unknown tool, invalid params, executor error, timeout) is
// returned as an IsError result so callers can hand it to an agent as text.
func (r *Registry) Run(ctx context.Context, toolName string, params map[string]any) *ToolCallResult {
	start := time.Now()

	e, ok := r.tools[toolName]
	if !ok {
		return errorResult(fmt.Sprintf("Unknown tool: %s", toolName))
	}
	moduleName := e.module.Name()

	validated, err := ValidateParams(e.tool.InputSchema, params)
	if err != nil {
		r.record(ctx, moduleName, toolName, start, "invalid", err.Error())
		return errorResult(fmt.Sprintf("Invalid arguments for %s: %v", toolName, err))
	}

	ctx, span := observability.StartToolSpan(ctx, moduleName, toolName)
	defer span.End()

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := e.module.ExecuteTool(ctx, toolName, validated)
	if err != nil {
		errMsg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("Request to %s timed out after %s. The external service did not respond in time.", moduleName, r.timeout)
		}
		span.SetStatus(codes.Error, errMsg)
		r.record(ctx, moduleName, toolName, start, "error", errMsg)
		return errorResult(errMsg)
	}

	r.record(ctx, moduleName, toolName, start, "success", "")
	return textResult(result)
}

func (r *Registry) record(ctx context.Context, moduleName, toolName string, start time.Time, status, errMsg string) {
	duration := time.Since(start)
	requestID := middleware.GetRequestID(ctx)

	ev := r.logger.Info()
	if status != "success" {
		ev = r.logger.Warn().Str("error", errMsg)
	}
	ev.Str("request_id", requestID).
		Str("module", moduleName).
		Str("tool", toolName).
		Str("status", status).
		Dur("duration", duration).
		Msg("tool call")

	observability.RecordToolCall(ctx, moduleName, toolName, status, duration)
	observability.LogToolCall(requestID, moduleName, toolName, duration.Milliseconds(), status, errMsg)
}
