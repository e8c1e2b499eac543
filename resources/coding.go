package resources

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/danaruntime/dana/agenterr"
)

// ============================================================================
// CODING RESOURCE - SANDBOXED CODE EXECUTION
// ============================================================================

// DefaultCodingTimeout bounds a single execution when the request does not
// carry its own timeout.
const DefaultCodingTimeout = 30 * time.Second

// CodingResource runs source snippets through an external interpreter.
// Each query spawns a fresh process; no state is shared between calls.
type CodingResource struct {
	name        string
	binary      string
	timeout     time.Duration
	initialized bool
}

// NewCodingResource creates a coding resource backed by the given interpreter
// binary (e.g. "python3"). A zero timeout selects DefaultCodingTimeout.
func NewCodingResource(name, binary string, timeout time.Duration) *CodingResource {
	if binary == "" {
		binary = "python3"
	}
	if timeout <= 0 {
		timeout = DefaultCodingTimeout
	}
	return &CodingResource{name: name, binary: binary, timeout: timeout}
}

// Name implements Resource.
func (r *CodingResource) Name() string { return r.name }

// Kind implements Resource.
func (r *CodingResource) Kind() Kind { return KindCoding }

// Initialize verifies the interpreter is on PATH. Idempotent.
func (r *CodingResource) Initialize(ctx context.Context) error {
	if r.initialized {
		return nil
	}
	if _, err := exec.LookPath(r.binary); err != nil {
		return agenterr.Wrap(agenterr.KindResourceUnavailable, "CodingResource", "Initialize",
			fmt.Sprintf("interpreter '%s' not found", r.binary), err)
	}
	r.initialized = true
	return nil
}

// Query executes req.Source and returns its combined output. The execution
// is bounded by req.TimeoutSeconds when positive, otherwise the resource
// default. Failures return a Response whose Error embeds the offending
// source so callers can surface it verbatim.
func (r *CodingResource) Query(ctx context.Context, req Request) (*Response, error) {
	if !r.initialized {
		return nil, agenterr.New(agenterr.KindResourceUnavailable, "CodingResource", "Query",
			"coding resource is not initialized")
	}
	if req.Source == "" {
		return nil, agenterr.New(agenterr.KindInvalidArgument, "CodingResource", "Query",
			"request requires source")
	}

	timeout := r.timeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, "-c", req.Source)
	output, err := cmd.CombinedOutput()
	content := strings.TrimRight(string(output), "\n")

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &Response{
				Success: false,
				Content: content,
				Error:   fmt.Sprintf("execution timed out after %s; source: %s", timeout, req.Source),
			}, agenterr.Wrap(agenterr.KindTimeout, "CodingResource", "Query", "code execution timed out", ctx.Err())
		}
		return &Response{
			Success: false,
			Content: content,
			Error:   fmt.Sprintf("%v: %s; source: %s", err, content, req.Source),
		}, nil
	}
	return &Response{Success: true, Content: content}, nil
}

// ListTools implements Resource.
func (r *CodingResource) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "execute_code",
			Description: "Execute a source snippet in an isolated interpreter process",
			Parameters: []ToolParameter{
				{Name: "source", Type: "string", Description: "Source code to run", Required: true},
				{Name: "timeout_seconds", Type: "integer", Description: "Execution bound", Required: false},
			},
		},
	}
}

// Stop implements Resource. Processes are per-query, nothing persists.
func (r *CodingResource) Stop() error { return nil }

// Cleanup implements Resource.
func (r *CodingResource) Cleanup() error {
	r.initialized = false
	return nil
}

var _ Resource = (*CodingResource)(nil)
