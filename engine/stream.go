package engine

import (
	"context"
	"fmt"
	"strings"

	"toolgate/callbuf"
	"toolgate/llm"
)

// EventSink receives the client-visible events of a streamed exchange: text
// deltas in provider arrival order, then exactly one terminal event for the
// whole exchange. Tool-call fragments and tool activity never pass through
// it. A sink error means the client is gone and aborts the request.
type EventSink interface {
	Delta(text string) error
	Done(reason llm.FinishReason, usage llm.Usage) error
}

// Stream drives a streaming request through the same loop as Complete, while
// re-emitting text deltas to the sink in real time. Tool execution for a
// round starts only after that round's visible token stream has ended, so
// clients never see raw tool-call JSON as answer text.
func (e *Engine) Stream(ctx context.Context, conv *Conversation, sink EventSink) error {
	var usage llm.Usage
	for {
		// Exactly one buffer per round; never reused across rounds, so a
		// provider recycling call ids cannot leak stale entries.
		buf := callbuf.New()

		stream := e.provider.Stream(ctx, e.request(conv))
		if err := stream.Err(); err != nil {
			return fmt.Errorf("provider round %d: %w", conv.round, err)
		}

		var text strings.Builder
		var reason llm.FinishReason
		var sinkErr error
		stream.Iter()(func(chunk llm.Chunk) bool {
			if chunk.Usage != nil {
				usage.Add(*chunk.Usage)
			}
			if chunk.Text != "" {
				// Content reaches the client immediately; it must never wait
				// on tool buffering.
				text.WriteString(chunk.Text)
				if err := sink.Delta(chunk.Text); err != nil {
					sinkErr = err
					return false
				}
			}
			if f := chunk.ToolCall; f != nil {
				buf.AddOrUpdate(f.ID, f.Name, f.Arguments)
			}
			if chunk.FinishReason != llm.FinishNone {
				reason = chunk.FinishReason
			}
			return true
		})
		if sinkErr != nil {
			return fmt.Errorf("sending to client: %w", sinkErr)
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("provider round %d: %w", conv.round, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		buf.MarkRoundFinished()

		if buf.Len() == 0 {
			if reason == llm.FinishToolCalls {
				e.log.Warn().Msg("finish reason is tool_calls but round produced no tool calls")
			}
			return sink.Done(finalReason(reason), usage)
		}
		if reason != llm.FinishToolCalls {
			e.log.Warn().Str("finish_reason", string(reason)).
				Msg("round carries tool calls despite finish reason")
		}

		if e.atRoundCap(conv) {
			e.log.Warn().Int("rounds", conv.round+1).
				Msg("round cap reached; closing stream with last assistant output")
			return sink.Done(finalReason(reason), usage)
		}

		results := e.runRound(ctx, buf, reason)
		if err := ctx.Err(); err != nil {
			return err
		}

		conv.Messages = append(conv.Messages, assistantMessage(text.String(), buf.Raw()))
		conv.Messages = append(conv.Messages, toolMessages(results)...)
		conv.round++
	}
}

func finalReason(reason llm.FinishReason) llm.FinishReason {
	if reason == llm.FinishNone {
		return llm.FinishStop
	}
	return reason
}
