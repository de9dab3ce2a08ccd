package engine

import (
	"context"
	"fmt"

	"toolgate/callbuf"
	"toolgate/llm"
)

// Complete drives a buffered request to completion: it keeps calling the
// provider and executing the requested tools until the model answers without
// tool calls or the round cap is hit. The returned response reports the
// summed usage of every internal round.
func (e *Engine) Complete(ctx context.Context, conv *Conversation) (*llm.FinalResponse, error) {
	var usage llm.Usage
	for {
		resp, err := e.provider.Complete(ctx, e.request(conv))
		if err != nil {
			return nil, fmt.Errorf("provider round %d: %w", conv.round, err)
		}
		usage.Add(resp.Usage)

		if len(resp.Message.ToolCalls) == 0 {
			if resp.FinishReason == llm.FinishToolCalls {
				// Documented upstream inconsistency: marker claims tool calls
				// but none are present. Presence of calls is authoritative.
				e.log.Warn().Msg("finish reason is tool_calls but response carries no tool calls")
			}
			resp.Usage = usage
			return resp, nil
		}
		if resp.FinishReason != llm.FinishToolCalls {
			e.log.Warn().Str("finish_reason", string(resp.FinishReason)).
				Msg("response carries tool calls despite finish reason")
		}

		if e.atRoundCap(conv) {
			e.log.Warn().Int("rounds", conv.round+1).
				Msg("round cap reached; returning last assistant output as-is")
			resp.Usage = usage
			return resp, nil
		}

		// A buffered response is complete by construction, so the round is
		// finished as soon as its calls are routed into a fresh buffer.
		buf := callbuf.New()
		for _, call := range resp.Message.ToolCalls {
			buf.AddOrUpdate(call.ID, call.Name, string(call.Arguments))
		}
		buf.MarkRoundFinished()

		results := e.runRound(ctx, buf, resp.FinishReason)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// The assistant turn is preserved verbatim, raw tool-call descriptors
		// included, followed by one tool turn per call.
		conv.Messages = append(conv.Messages, resp.Message)
		conv.Messages = append(conv.Messages, toolMessages(results)...)
		conv.round++
	}
}
