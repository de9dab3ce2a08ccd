package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolgate/llm"
)

// collectSink records everything the engine emits to the client.
type collectSink struct {
	deltas   []string
	done     bool
	reason   llm.FinishReason
	usage    llm.Usage
	deltaErr error
}

func (s *collectSink) Delta(text string) error {
	if s.deltaErr != nil {
		return s.deltaErr
	}
	s.deltas = append(s.deltas, text)
	return nil
}

func (s *collectSink) Done(reason llm.FinishReason, usage llm.Usage) error {
	s.done = true
	s.reason = reason
	s.usage = usage
	return nil
}

func fragment(id, name, args string) llm.Chunk {
	return llm.Chunk{ToolCall: &llm.ToolCallFragment{ID: id, Name: name, Arguments: args}}
}

func TestStreamPlainAnswer(t *testing.T) {
	provider := &fakeProvider{chunks: [][]llm.Chunk{{
		{Text: "Hel"},
		{Text: "lo"},
		{FinishReason: llm.FinishStop, Usage: &llm.Usage{InputTokens: 3, OutputTokens: 2}},
	}}}
	executor := &fakeExecutor{}
	e := newTestEngine(provider, executor, Config{})

	conv := userConversation("hi")
	sink := &collectSink{}
	require.NoError(t, e.Stream(context.Background(), conv, sink))

	assert.Equal(t, []string{"Hel", "lo"}, sink.deltas, "deltas forwarded in arrival order")
	assert.True(t, sink.done)
	assert.Equal(t, llm.FinishStop, sink.reason)
	assert.Equal(t, llm.Usage{InputTokens: 3, OutputTokens: 2}, sink.usage)
	assert.Equal(t, 0, conv.Round())
	assert.Zero(t, executor.callCount())
}

func TestStreamFragmentedToolCall(t *testing.T) {
	// The canonical case: one call's arguments split across three fragments,
	// executable only once the finish marker lands.
	provider := &fakeProvider{chunks: [][]llm.Chunk{
		{
			fragment("call_1", "search", `{"que`),
			fragment("call_1", "", `ry":"rai`),
			fragment("call_1", "", `n"}`),
			{FinishReason: llm.FinishToolCalls},
		},
		{
			{Text: "It is raining."},
			{FinishReason: llm.FinishStop},
		},
	}}
	executor := &fakeExecutor{fn: func(ctx context.Context, name string, args json.RawMessage) (string, error) {
		return "rain confirmed", nil
	}}
	e := newTestEngine(provider, executor, Config{})

	conv := userConversation("weather?")
	sink := &collectSink{}
	require.NoError(t, e.Stream(context.Background(), conv, sink))

	require.Equal(t, 1, executor.callCount(), "executor invoked exactly once")
	assert.Equal(t, "search", executor.calls[0].name)
	assert.JSONEq(t, `{"query":"rain"}`, executor.calls[0].args)

	// Clients only ever see answer text, never tool-call JSON.
	assert.Equal(t, []string{"It is raining."}, sink.deltas)
	assert.Equal(t, llm.FinishStop, sink.reason)
	assert.Equal(t, 1, conv.Round())

	// The reconstructed assistant turn carries the raw argument text.
	require.Len(t, conv.Messages, 3)
	require.Len(t, conv.Messages[1].ToolCalls, 1)
	assert.Equal(t, `{"query":"rain"}`, string(conv.Messages[1].ToolCalls[0].Arguments))
	assert.Equal(t, "tool", conv.Messages[2].Role)
	assert.Equal(t, "rain confirmed", conv.Messages[2].Content)
}

func TestStreamTextPrecedesToolResolution(t *testing.T) {
	// Text arriving in the same round as tool fragments is forwarded before
	// any tool executes.
	executed := false
	provider := &fakeProvider{chunks: [][]llm.Chunk{
		{
			{Text: "Looking that up."},
			fragment("call_1", "search", `{}`),
			{FinishReason: llm.FinishToolCalls},
		},
		{
			{Text: "Done."},
			{FinishReason: llm.FinishStop},
		},
	}}
	var sawTextBeforeTool bool
	sink := &collectSink{}
	executor := &fakeExecutor{fn: func(ctx context.Context, name string, args json.RawMessage) (string, error) {
		executed = true
		sawTextBeforeTool = len(sink.deltas) >= 1
		return "ok", nil
	}}
	e := newTestEngine(provider, executor, Config{})

	require.NoError(t, e.Stream(context.Background(), userConversation("go"), sink))
	assert.True(t, executed)
	assert.True(t, sawTextBeforeTool, "round text must reach the client before tool execution")
	assert.Equal(t, []string{"Looking that up.", "Done."}, sink.deltas)
}

func TestStreamTruncatedArgumentsDegradeToParseError(t *testing.T) {
	provider := &fakeProvider{chunks: [][]llm.Chunk{
		{
			fragment("call_1", "search", `{"query":"rai`), // cut off mid-string
			{FinishReason: llm.FinishLength},
		},
		{
			{Text: "Let me try a shorter call."},
			{FinishReason: llm.FinishStop},
		},
	}}
	executor := &fakeExecutor{}
	e := newTestEngine(provider, executor, Config{})

	conv := userConversation("go")
	sink := &collectSink{}
	require.NoError(t, e.Stream(context.Background(), conv, sink))

	assert.Zero(t, executor.callCount())
	require.Len(t, conv.Messages, 3)
	assert.Contains(t, conv.Messages[2].Content, "not valid JSON")
	assert.Equal(t, llm.FinishStop, sink.reason)
}

func TestStreamRoundCap(t *testing.T) {
	rounds := make([][]llm.Chunk, 3)
	for i := range rounds {
		rounds[i] = []llm.Chunk{
			fragment(fmt.Sprintf("call_%d", i), "search", `{}`),
			{FinishReason: llm.FinishToolCalls},
		}
	}
	provider := &fakeProvider{chunks: rounds}
	executor := &fakeExecutor{}
	e := newTestEngine(provider, executor, Config{MaxRounds: 2})

	conv := userConversation("go")
	sink := &collectSink{}
	require.NoError(t, e.Stream(context.Background(), conv, sink))

	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, 1, executor.callCount(), "the capped round's tools are not executed")
	assert.True(t, sink.done)
	assert.Equal(t, llm.FinishToolCalls, sink.reason)
}

func TestStreamSinkErrorAbandonsRequest(t *testing.T) {
	provider := &fakeProvider{chunks: [][]llm.Chunk{{
		{Text: "Hel"},
		{Text: "lo"},
		{FinishReason: llm.FinishStop},
	}}}
	executor := &fakeExecutor{}
	e := newTestEngine(provider, executor, Config{})

	sink := &collectSink{deltaErr: errors.New("client went away")}
	err := e.Stream(context.Background(), userConversation("hi"), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client went away")
	assert.False(t, sink.done)
	assert.Zero(t, executor.callCount())
}

func TestStreamProviderErrorSurfaces(t *testing.T) {
	provider := &fakeProvider{streamErr: &llm.ProviderError{StatusCode: 502, Message: "upstream sad"}}
	e := newTestEngine(provider, &fakeExecutor{}, Config{})

	err := e.Stream(context.Background(), userConversation("hi"), &collectSink{})
	require.Error(t, err)
	assert.Equal(t, KindProviderError, Classify(err))
}

func TestStreamDefaultsMissingFinishReasonToStop(t *testing.T) {
	provider := &fakeProvider{chunks: [][]llm.Chunk{{{Text: "Hi"}}}}
	e := newTestEngine(provider, &fakeExecutor{}, Config{})

	sink := &collectSink{}
	require.NoError(t, e.Stream(context.Background(), userConversation("hi"), sink))
	assert.Equal(t, llm.FinishStop, sink.reason)
}

func TestStreamUsageAggregatesAcrossRounds(t *testing.T) {
	provider := &fakeProvider{chunks: [][]llm.Chunk{
		{
			fragment("call_1", "search", `{}`),
			{FinishReason: llm.FinishToolCalls, Usage: &llm.Usage{InputTokens: 10, OutputTokens: 1}},
		},
		{
			{Text: "done"},
			{FinishReason: llm.FinishStop, Usage: &llm.Usage{InputTokens: 20, OutputTokens: 2}},
		},
	}}
	e := newTestEngine(provider, &fakeExecutor{}, Config{})

	sink := &collectSink{}
	require.NoError(t, e.Stream(context.Background(), userConversation("go"), sink))
	assert.Equal(t, llm.Usage{InputTokens: 30, OutputTokens: 3}, sink.usage)
}

func TestAssistantMessageReconstruction(t *testing.T) {
	msg := assistantMessage("thinking", nil)
	assert.Equal(t, "assistant", msg.Role)
	assert.Empty(t, msg.ToolCalls)
	assert.True(t, strings.HasPrefix(msg.Content, "thinking"))
}

func TestStreamCancellationAbandonsInFlightTools(t *testing.T) {
	provider := &fakeProvider{chunks: [][]llm.Chunk{
		{
			fragment("call_1", "search", `{"query":"rain"}`),
			{FinishReason: llm.FinishToolCalls},
		},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{}, 1)
	executor := &fakeExecutor{fn: func(ctx context.Context, name string, args json.RawMessage) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "", ctx.Err()
	}}
	e := newTestEngine(provider, executor, Config{})

	go func() {
		<-started
		cancel()
	}()

	conv := userConversation("go")
	sink := &collectSink{}
	err := e.Stream(ctx, conv, sink)

	require.Error(t, err)
	assert.Equal(t, KindCanceled, Classify(err))
	assert.False(t, sink.done, "no terminal event after cancellation")
	assert.Len(t, conv.Messages, 1, "no partial round may be appended")
}
