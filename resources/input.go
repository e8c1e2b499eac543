package resources

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danaruntime/dana/agenterr"
)

// ============================================================================
// INPUT RESOURCE - USER PROMPTS
// ============================================================================

// InputResource asks the user for a value. Reads happen on a separate
// goroutine so a query can be abandoned through context cancellation.
type InputResource struct {
	name        string
	in          io.Reader
	out         io.Writer
	initialized bool
}

// NewInputResource creates an input resource bound to stdin/stdout.
func NewInputResource(name string) *InputResource {
	return NewInputResourceIO(name, os.Stdin, os.Stdout)
}

// NewInputResourceIO creates an input resource over explicit streams.
func NewInputResourceIO(name string, in io.Reader, out io.Writer) *InputResource {
	return &InputResource{name: name, in: in, out: out}
}

// Name implements Resource.
func (r *InputResource) Name() string { return r.name }

// Kind implements Resource.
func (r *InputResource) Kind() Kind { return KindInput }

// Initialize implements Resource. Idempotent.
func (r *InputResource) Initialize(ctx context.Context) error {
	r.initialized = true
	return nil
}

// Query writes req.Prompt to the output stream and waits for one line of
// input. Cancellation abandons the wait; the read goroutine drains on its
// own when the stream eventually yields.
func (r *InputResource) Query(ctx context.Context, req Request) (*Response, error) {
	if !r.initialized {
		return nil, agenterr.New(agenterr.KindResourceUnavailable, "InputResource", "Query",
			"input resource is not initialized")
	}

	if req.Prompt != "" {
		fmt.Fprintf(r.out, "%s ", req.Prompt)
	}

	type readResult struct {
		line string
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := bufio.NewReader(r.in).ReadString('\n')
		ch <- readResult{line: strings.TrimRight(line, "\r\n"), err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, agenterr.Wrap(agenterr.KindCancellationRequested, "InputResource", "Query",
			"input prompt cancelled", ctx.Err())
	case result := <-ch:
		if result.err != nil && result.line == "" {
			return &Response{Success: false, Error: result.err.Error()},
				agenterr.Wrap(agenterr.KindResourceUnavailable, "InputResource", "Query",
					"failed to read user input", result.err)
		}
		return &Response{Success: true, Content: result.line}, nil
	}
}

// ListTools implements Resource.
func (r *InputResource) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "ask_user",
			Description: "Prompt the user and wait for a typed response",
			Parameters: []ToolParameter{
				{Name: "prompt", Type: "string", Description: "Text shown to the user", Required: true},
			},
		},
	}
}

// Stop implements Resource.
func (r *InputResource) Stop() error { return nil }

// Cleanup implements Resource.
func (r *InputResource) Cleanup() error {
	r.initialized = false
	return nil
}

var _ Resource = (*InputResource)(nil)
