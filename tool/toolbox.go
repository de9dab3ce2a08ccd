package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Toolbox holds the tools available for execution. It is populated once at
// startup and read-only afterwards, which makes it safe to share between
// in-flight requests.
type Toolbox struct {
	tools map[string]Tool
	order []string
}

// Box returns a new Toolbox containing the given tools.
func Box(tools ...Tool) *Toolbox {
	t := &Toolbox{
		tools: make(map[string]Tool),
	}
	for _, tool := range tools {
		t.Add(tool)
	}
	return t
}

// Add adds a tool to the toolbox.
func (t *Toolbox) Add(tool Tool) {
	funcName := tool.FuncName()
	if _, ok := t.tools[funcName]; ok {
		panic(fmt.Sprintf("tool %q already exists", funcName))
	}
	t.tools[funcName] = tool
	t.order = append(t.order, funcName)
}

// Get returns the tool with the given function name.
func (t *Toolbox) Get(funcName string) Tool {
	return t.tools[funcName]
}

// Run runs the tool with the given name and parameters, which should be
// provided as a JSON string.
func (t *Toolbox) Run(ctx context.Context, r Runner, funcName string, params json.RawMessage) Result {
	tool := t.Get(funcName)
	if tool == nil {
		err := fmt.Errorf("tool %q not found", funcName)
		return Error(err.Error(), err)
	}
	return tool.Run(ctx, r, params)
}

// Execute runs one tool and reduces its result to text. Failures come back as
// errors so the caller decides how to fold them into the conversation.
func (t *Toolbox) Execute(ctx context.Context, name string, params json.RawMessage) (string, error) {
	r := NewRunner(func(status string) {
		log.Debug().Str("tool", name).Msg(status)
	})
	result := t.Run(ctx, r, name, params)
	if err := result.Error(); err != nil {
		return "", err
	}
	return result.Content(), nil
}

// Schemas returns the JSON schema for all tools in the toolbox, in
// registration order.
func (t *Toolbox) Schemas() []Schema {
	schemas := make([]Schema, 0, len(t.order))
	for _, name := range t.order {
		schemas = append(schemas, t.tools[name].Schema())
	}
	return schemas
}
