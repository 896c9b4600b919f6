package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"issuebridge/internal/modules"
)

// DropReason tags why a descriptor was not bound.
type DropReason int

const (
	// DropUnknown: no local executor has that name.
	DropUnknown DropReason = iota
	// DropDuplicate: the name appeared earlier in the same list.
	DropDuplicate
	// DropInvalid: the entry is not a descriptor (no name, wrong field types).
	DropInvalid
)

func (r DropReason) String() string {
	switch r {
	case DropUnknown:
		return "unknown"
	case DropDuplicate:
		return "duplicate"
	case DropInvalid:
		return "invalid"
	}
	return "unknown_reason"
}

// Dropped records a descriptor that was not bound.
type Dropped struct {
	Name   string
	Reason DropReason
	// Detail is set for DropInvalid.
	Detail string
}

// Tool is a fetched descriptor bound to a local executor. The description
// comes from the server; the schema and execution are local.
type Tool struct {
	name        string
	description string
	schema      modules.InputSchema
	executors   Executors
}

// Bind pairs descriptors with local executors, preserving descriptor order.
// Remote schemas are never interpreted.
func Bind(descriptors []modules.Descriptor, executors Executors) ([]*Tool, []Dropped) {
	tools := make([]*Tool, 0, len(descriptors))
	var dropped []Dropped
	seen := make(map[string]bool, len(descriptors))

	for _, d := range descriptors {
		if d.Err != nil {
			dropped = append(dropped, Dropped{Name: d.Name, Reason: DropInvalid, Detail: d.Err.Error()})
			continue
		}
		if seen[d.Name] {
			dropped = append(dropped, Dropped{Name: d.Name, Reason: DropDuplicate})
			continue
		}
		local, ok := executors.Lookup(d.Name)
		if !ok {
			dropped = append(dropped, Dropped{Name: d.Name, Reason: DropUnknown})
			continue
		}
		seen[d.Name] = true

		desc := d.Description
		if desc == "" {
			desc = local.Description
		}
		tools = append(tools, &Tool{
			name:        d.Name,
			description: desc,
			schema:      local.InputSchema,
			executors:   executors,
		})
	}
	return tools, dropped
}

func (t *Tool) Name() string                { return t.name }
func (t *Tool) Description() string         { return t.description }
func (t *Tool) Schema() modules.InputSchema { return t.schema }

// Call runs the tool with JSON-encoded arguments and returns its text result.
// Malformed arguments are reported as text; Call never fails.
func (t *Tool) Call(ctx context.Context, argsJSON string) string {
	params := map[string]any{}
	if raw := strings.TrimSpace(argsJSON); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Sprintf("Invalid arguments for %s: malformed JSON: %v", t.name, err)
		}
	}
	return t.executors.Run(ctx, t.name, params).Text()
}
