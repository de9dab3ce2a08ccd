package tool

import "fmt"

type Result interface {
	// Label returns a short single line description of the entire tool run.
	Label() string
	// Content returns the text fed back to the model as the tool result.
	Content() string
	// Error returns the error that occurred during the tool run, if any.
	Error() error
}

type result struct {
	label   string
	content string
	err     error
}

func (r *result) Label() string {
	return r.label
}

func (r *result) Content() string {
	return r.content
}

func (r *result) Error() error {
	return r.err
}

func Error(label string, err error) Result {
	return &result{label, fmt.Sprintf("ERROR: %s", err), err}
}

func Success(label, content string) Result {
	return &result{label, content, nil}
}
