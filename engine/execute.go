package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"toolgate/callbuf"
	"toolgate/llm"
)

// Status classifies the outcome of one tool invocation.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusParseError     Status = "parse_error"
	StatusExecutionError Status = "execution_error"
	StatusTimeout        Status = "timeout"
)

// ToolResult is the outcome of one tool call. Content is fed back to the
// model as a tool turn; on failure it describes what went wrong so the model
// can self-correct instead of the whole request failing.
type ToolResult struct {
	CallID  string
	Status  Status
	Content string
}

// runRound executes every executable call in the buffer and synthesizes
// correctable error results for the calls that never parsed. Results come
// back in the buffer's arrival order regardless of completion order, and all
// executions finish (or fail) before the next provider round starts.
func (e *Engine) runRound(ctx context.Context, buf *callbuf.Buffer, reason llm.FinishReason) []ToolResult {
	ready, excluded := buf.FinishedAndReady()

	byID := make(map[string]ToolResult, len(ready)+len(excluded))
	for _, inc := range excluded {
		if reason == llm.FinishLength {
			// Distinct warning: invalid JSON after a length-limited round is
			// almost certainly truncation, not a model parse bug.
			e.log.Warn().Str("tool", inc.Name).Str("call_id", inc.ID).
				Msg("tool call arguments truncated by length limit")
		} else {
			e.log.Warn().Str("tool", inc.Name).Str("call_id", inc.ID).Err(inc.Err).
				Msg("tool call arguments never became valid JSON")
		}
		byID[inc.ID] = ToolResult{
			CallID: inc.ID,
			Status: StatusParseError,
			Content: fmt.Sprintf(
				"ERROR: the arguments for tool %q were not valid JSON, so the call was not executed: %v. Resend the call with well-formed JSON arguments.",
				inc.Name, inc.Err),
		}
	}

	results := make([]ToolResult, len(ready))
	sem := make(chan struct{}, e.cfg.ToolConcurrency)
	var wg sync.WaitGroup
	for i, call := range ready {
		wg.Add(1)
		go func(i int, call callbuf.Call) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()
	for _, result := range results {
		byID[result.CallID] = result
	}

	ordered := make([]ToolResult, 0, len(byID))
	for _, raw := range buf.Raw() {
		if result, ok := byID[raw.ID]; ok {
			ordered = append(ordered, result)
		}
	}
	return ordered
}

// executeOne runs a single call with a per-call timeout, retrying the
// unmodified arguments up to the configured budget.
func (e *Engine) executeOne(ctx context.Context, call callbuf.Call) ToolResult {
	attempts := e.cfg.ToolRetries + 1
	var lastErr error
	timedOut := false
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			// The request itself is gone; don't burn the retry budget.
			lastErr = err
			break
		}
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
		content, err := e.tools.Execute(callCtx, call.Name, call.Arguments)
		timedOut = err != nil &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded))
		cancel()
		if err == nil {
			return ToolResult{CallID: call.ID, Status: StatusSuccess, Content: content}
		}
		lastErr = err
		e.log.Debug().Str("tool", call.Name).Str("call_id", call.ID).
			Int("attempt", attempt).Int("attempts", attempts).Err(err).
			Msg("tool execution failed")
	}

	if timedOut {
		return ToolResult{
			CallID: call.ID,
			Status: StatusTimeout,
			Content: fmt.Sprintf(
				"ERROR: tool %q did not finish within %s (%d attempts). The call was abandoned; try again with a simpler request or different arguments.",
				call.Name, e.cfg.ToolTimeout, attempts),
		}
	}
	return ToolResult{
		CallID: call.ID,
		Status: StatusExecutionError,
		Content: fmt.Sprintf(
			"ERROR: tool %q failed after %d attempts: %v. Adjust the arguments and try again.",
			call.Name, attempts, lastErr),
	}
}
