// Package callbuf accumulates tool-call fragments for exactly one provider
// round. A Buffer is created fresh for every round and discarded once the
// round's tool results have been folded back into the conversation; it is
// never shared between rounds or requests.
package callbuf

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// previewLimit bounds how much raw argument text a ParseError carries.
const previewLimit = 140

// ParseError means a tool call's accumulated argument text was not a valid
// JSON object when execution was attempted.
type ParseError struct {
	// Tool is the name of the tool the call was addressed to.
	Tool string
	// Preview is a truncated copy of the raw argument text.
	Preview string
	err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("arguments for tool %q are not a valid JSON object (raw: %s): %v", e.Tool, e.Preview, e.err)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// Call is a tool call that is ready to execute: the round is finished and the
// accumulated argument text parsed successfully.
type Call struct {
	ID   string
	Name string
	// Arguments is the normalized raw argument JSON ("{}" when the model sent
	// no parameters).
	Arguments json.RawMessage
	// Parsed is the decoded argument mapping.
	Parsed map[string]any
}

// Incomplete describes an entry excluded from FinishedAndReady, so callers
// can log it without treating the whole round as failed.
type Incomplete struct {
	ID   string
	Name string
	// Raw is the argument text accumulated so far, verbatim.
	Raw string
	// Err explains the exclusion; it is a *ParseError when the round finished
	// but the text never became valid JSON (usually truncation).
	Err error
}

// RawCall is an entry's state as received, with the argument text verbatim
// whether or not it is valid JSON. Used to reconstruct the assistant turn
// exactly as the provider produced it.
type RawCall struct {
	ID        string
	Name      string
	Arguments string
}

type entry struct {
	id       string
	name     string
	args     []byte
	complete bool
	finished bool
	emitted  bool
}

// Buffer accumulates tool-call fragments keyed by call id and tracks which
// entries are executable. It is not safe for concurrent use; each request
// owns its own buffers.
type Buffer struct {
	entries map[string]*entry
	order   []string
}

// New returns an empty buffer for one provider round.
func New() *Buffer {
	return &Buffer{entries: make(map[string]*entry)}
}

// AddOrUpdate routes one fragment into the buffer. The first fragment for an
// id creates the entry; name is applied whenever it is non-empty (providers
// send it once, on the first fragment). Empty fragments are valid no-ops.
// Syntactic completeness is recomputed after every append; argument text that
// does not yet parse is expected mid-stream and is not an error.
func (b *Buffer) AddOrUpdate(id, name, fragment string) {
	e, ok := b.entries[id]
	if !ok {
		e = &entry{id: id}
		b.entries[id] = e
		b.order = append(b.order, id)
	}
	if name != "" {
		e.name = name
	}
	if fragment != "" {
		e.args = append(e.args, fragment...)
	}
	e.complete = syntacticallyComplete(e.args)
}

// MarkRoundFinished records the provider's completion-reason marker, the
// single authoritative signal that this round's calls are ready to be
// evaluated. Syntactic completeness alone must never gate execution: the
// provider can keep revising a call long after its text first parses.
func (b *Buffer) MarkRoundFinished() {
	for _, e := range b.entries {
		e.finished = true
	}
}

// Len returns the number of entries observed this round.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// FinishedAndReady returns the calls that are executable (finished and
// syntactically complete, with parsed arguments) and, separately, the entries
// that are not. Each id is returned as ready at most once per buffer, so a
// repeated call never leads to double execution.
func (b *Buffer) FinishedAndReady() (ready []Call, excluded []Incomplete) {
	for _, id := range b.order {
		e := b.entries[id]
		if e.emitted {
			continue
		}
		if !e.finished {
			excluded = append(excluded, Incomplete{
				ID:   e.id,
				Name: e.name,
				Raw:  string(e.args),
				Err:  fmt.Errorf("round not finished for call %q", e.id),
			})
			continue
		}
		parsed, err := parseArguments(e.name, e.args)
		if err != nil {
			excluded = append(excluded, Incomplete{
				ID:   e.id,
				Name: e.name,
				Raw:  string(e.args),
				Err:  err,
			})
			continue
		}
		e.emitted = true
		ready = append(ready, Call{
			ID:        e.id,
			Name:      e.name,
			Arguments: normalizeArguments(e.args),
			Parsed:    parsed,
		})
	}
	return ready, excluded
}

// Parse returns the parsed argument mapping for one entry. Callers must only
// call this after confirming the entry is syntactically complete; mid-stream
// text fails with a *ParseError.
func (b *Buffer) Parse(id string) (map[string]any, error) {
	e, ok := b.entries[id]
	if !ok {
		return nil, fmt.Errorf("no tool call with id %q", id)
	}
	return parseArguments(e.name, e.args)
}

// Raw returns every entry in arrival order with its argument text verbatim.
func (b *Buffer) Raw() []RawCall {
	calls := make([]RawCall, 0, len(b.order))
	for _, id := range b.order {
		e := b.entries[id]
		calls = append(calls, RawCall{ID: e.id, Name: e.name, Arguments: string(e.args)})
	}
	return calls
}

// syntacticallyComplete reports whether the accumulated text currently parses
// as JSON. Absent text is complete: it denotes a call with no parameters.
func syntacticallyComplete(args []byte) bool {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 {
		return true
	}
	return json.Valid(trimmed)
}

func normalizeArguments(args []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(trimmed)
}

func parseArguments(name string, args []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, &ParseError{Tool: name, Preview: preview(trimmed), err: err}
	}
	if parsed == nil {
		parsed = map[string]any{}
	}
	return parsed, nil
}

func preview(raw []byte) string {
	if len(raw) <= previewLimit {
		return string(raw)
	}
	return string(raw[:previewLimit]) + "…"
}
