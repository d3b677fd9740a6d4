// Package agent implements the tool-calling loop: repeatedly invoke a chat
// capability, execute any tool calls it returns, append the results, and
// invoke it again until the model stops calling tools or a bound is hit.
//
// The state machine mirrors the turn-loop shape of
// runtime/agent/runtime/workflow_turn.go (receive tool calls, filter/execute,
// append results, advance) but runs as a single in-process cooperative loop
// instead of a durable Temporal workflow, since conversation persistence and
// workflow orchestration are out of scope here.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexflow/llmkit/cancel"
	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/prompt"
	"github.com/cortexflow/llmkit/telemetry"
)

// State names a step of the tool-loop state machine, exposed for
// observability (Hooks.OnStateChange).
type State string

const (
	StateIdle          State = "idle"
	StateCallModel     State = "call_model"
	StateInspect       State = "inspect"
	StateExecuteTools  State = "execute_tools"
	StateAppendResults State = "append_results"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// DefaultMaxIterations bounds the number of model round-trips before the
// loop gives up and returns with a TOOL_LOOP_MAX_ITERATIONS warning instead
// of an error.
const DefaultMaxIterations = 10

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// Hooks lets a caller observe loop progress without changing behavior.
type Hooks struct {
	OnStateChange func(state State)
	OnToolCall    func(call prompt.ToolCallPart)
	OnToolResult  func(result prompt.ToolResultPart)
}

// Options configures a Run invocation.
type Options struct {
	ChatOptions capability.ChatOptions

	// Tools maps a tool name to its executor. A model-issued call for a
	// name absent from this map is not fatal: it is turned into an error
	// ToolResultPart and fed back to the model (spec.md tool-loop edge
	// cases).
	Tools map[string]capability.ToolExecutor

	// MaxIterations overrides DefaultMaxIterations; <= 0 uses the default.
	MaxIterations int

	// Parallel executes independent tool calls from a single turn
	// concurrently instead of sequentially.
	Parallel bool

	// ContinueOnToolError controls what happens when a tool executor itself
	// returns an error (as opposed to a model call for an unknown tool name,
	// which is always fed back as an error result). In sequential mode, a
	// false value (the default) aborts the loop with that error instead of
	// feeding an error ToolResultPart back to the model; parallel mode
	// always finishes the in-flight batch and feeds results back regardless
	// of this setting, since aborting mid-flight goroutines has no clean
	// semantics.
	ContinueOnToolError bool

	// ToolTimeout bounds each individual tool execution; <= 0 uses
	// DefaultToolTimeout.
	ToolTimeout time.Duration

	// CancelToken, when set, is checked together with ctx before each model
	// call and before each batch of tool executions.
	CancelToken *cancel.Token

	Logger telemetry.Logger
	Hooks  Hooks
}

// Result is the terminal outcome of a Run.
type Result struct {
	// RunID identifies this invocation for log/hook correlation. It is a
	// fresh random id, not a durable handle: the loop keeps no state after
	// Run returns.
	RunID      string
	Response   prompt.ChatResponse
	Iterations int
	State      State
}

// Run drives the tool-calling loop to completion for an initial message
// transcript. On success (StateDone) Result.Response carries the final
// assistant turn. On failure, the error further describes what failed; a
// loop that exhausts its iteration bound is not an error — it returns
// StateDone with a WarningToolLoopMaxIterations warning attached to the
// response per spec.md.
func Run(ctx context.Context, chat capability.ChatCapability, messages []prompt.Message, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	runID := uuid.NewString()
	logger.Debug(ctx, "tool loop starting", "run_id", runID, "max_iterations", maxIterations)

	transcript := append([]prompt.Message(nil), messages...)
	state := StateIdle
	setState := func(s State) {
		state = s
		if opts.Hooks.OnStateChange != nil {
			opts.Hooks.OnStateChange(s)
		}
	}

	for iteration := 1; ; iteration++ {
		if err := checkCancelled(ctx, opts.CancelToken); err != nil {
			setState(StateFailed)
			return Result{RunID: runID, State: state, Iterations: iteration - 1}, err
		}

		setState(StateCallModel)
		resp, err := chat.Chat(ctx, transcript, opts.ChatOptions)
		if err != nil {
			setState(StateFailed)
			return Result{RunID: runID, State: state, Iterations: iteration}, err
		}

		setState(StateInspect)
		if !resp.HasToolCalls() {
			setState(StateDone)
			return Result{RunID: runID, Response: resp, Iterations: iteration, State: state}, nil
		}

		if iteration >= maxIterations {
			logger.Warn(ctx, "tool loop reached its iteration bound with pending tool calls", "iterations", iteration)
			resp.Warnings = append(resp.Warnings, prompt.Warning{
				Code:    prompt.WarningToolLoopMaxIterations,
				Message: "tool loop stopped after reaching its iteration bound while the model still requested tool calls",
			})
			setState(StateDone)
			return Result{RunID: runID, Response: resp, Iterations: iteration, State: state}, nil
		}

		if err := checkCancelled(ctx, opts.CancelToken); err != nil {
			setState(StateFailed)
			return Result{RunID: runID, State: state, Iterations: iteration}, err
		}

		setState(StateExecuteTools)
		results, err := executeToolCalls(ctx, resp.ToolCalls, opts)
		if err != nil {
			setState(StateFailed)
			return Result{RunID: runID, State: state, Iterations: iteration}, err
		}

		setState(StateAppendResults)
		var assistantParts []prompt.Part
		if resp.Text != "" {
			assistantParts = append(assistantParts, prompt.TextPart{Text: resp.Text})
		}
		assistantParts = append(assistantParts, toolCallParts(resp.ToolCalls)...)
		transcript = append(transcript, prompt.Message{Role: prompt.RoleAssistant, Parts: assistantParts})

		var resultParts []prompt.Part
		for _, r := range results {
			if opts.Hooks.OnToolResult != nil {
				opts.Hooks.OnToolResult(r)
			}
			resultParts = append(resultParts, r)
		}
		transcript = append(transcript, prompt.Message{Role: prompt.RoleUser, Parts: resultParts})
	}
}

func toolCallParts(calls []prompt.ToolCallPart) []prompt.Part {
	parts := make([]prompt.Part, len(calls))
	for i, c := range calls {
		parts[i] = c
	}
	return parts
}

// executeToolCalls runs calls against opts.Tools and returns their results.
// In sequential mode, it returns early with the first executor error once
// opts.ContinueOnToolError is false; an unknown tool name is never an abort
// condition, only an executor's own error is.
func executeToolCalls(ctx context.Context, calls []prompt.ToolCallPart, opts Options) ([]prompt.ToolResultPart, error) {
	timeout := opts.ToolTimeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	results := make([]prompt.ToolResultPart, len(calls))
	run := func(i int) error {
		call := calls[i]
		if opts.Hooks.OnToolCall != nil {
			opts.Hooks.OnToolCall(call)
		}
		executor, ok := opts.Tools[call.Name]
		if !ok {
			results[i] = prompt.ToolResultErr(call.ID, call.Name, "unknown tool: "+call.Name)
			return nil
		}
		toolCtx, cancelFn := context.WithTimeout(ctx, timeout)
		defer cancelFn()
		payload, err := executor.Execute(toolCtx, call.ArgumentsJSON)
		if err != nil {
			results[i] = prompt.ToolResultErr(call.ID, call.Name, err.Error())
			return err
		}
		results[i] = prompt.ToolResultOK(call.ID, call.Name, payload)
		return nil
	}

	if !opts.Parallel || len(calls) <= 1 {
		for i := range calls {
			if err := run(i); err != nil && !opts.ContinueOnToolError && !opts.Parallel {
				return results[:i+1], err
			}
		}
		return results, nil
	}

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i := range calls {
		go func(i int) {
			defer wg.Done()
			run(i)
		}(i)
	}
	wg.Wait()
	return results, nil
}

func checkCancelled(ctx context.Context, token *cancel.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token != nil && token.IsCancelled() {
		return context.Canceled
	}
	return nil
}
