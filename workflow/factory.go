package workflow

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/danaruntime/dana/agenterr"
	"github.com/danaruntime/dana/fsm"
)

// ============================================================================
// WORKFLOW FACTORY - YAML -> INSTANCE
// ============================================================================

// DefaultParseCacheSize bounds the factory's definition cache.
const DefaultParseCacheSize = 128

// knownWorkflowKeys are the recognized top-level workflow fields; anything
// else is retained in instance metadata.
var knownWorkflowKeys = map[string]struct{}{
	"name": {}, "description": {}, "steps": {}, "fsm": {}, "metadata": {},
}

type stepDefinition struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Action     string         `yaml:"action"`
	Objective  string         `yaml:"objective"`
	Parameters map[string]any `yaml:"parameters"`
	Conditions map[string]any `yaml:"conditions"`
	ErrorStep  string         `yaml:"error_step"`
}

type workflowDefinition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Steps       []stepDefinition `yaml:"steps"`
	FSM         map[string]any   `yaml:"fsm"`
	Metadata    map[string]any   `yaml:"metadata"`

	extra map[string]any
}

// Factory builds workflow instances from YAML definitions. Parsed
// definitions are cached by input text; each FromYAML call still builds a
// fresh stateful instance.
type Factory struct {
	cache *lru.Cache[string, *workflowDefinition]
}

// NewFactory creates a factory with the default parse-cache size.
func NewFactory() *Factory {
	cache, _ := lru.New[string, *workflowDefinition](DefaultParseCacheSize)
	return &Factory{cache: cache}
}

// FromYAML parses a workflow definition, in fenced or raw form, and
// materializes an instance with a linear FSM over its steps. The original
// text is preserved on the instance for round-tripping.
func (f *Factory) FromYAML(text string) (*Instance, error) {
	def, ok := f.cache.Get(text)
	if !ok {
		var err error
		def, err = parseDefinition(stripFences(text))
		if err != nil {
			return nil, err
		}
		f.cache.Add(text, def)
	}

	machine, err := buildMachine(def)
	if err != nil {
		return nil, err
	}

	instance := NewInstance(def.Name, machine)
	instance.description = def.Description
	instance.originalYAML = text
	instance.wfType = buildType(def)
	for k, v := range def.Metadata {
		instance.metadata[k] = v
	}
	for k, v := range def.extra {
		instance.metadata[k] = v
	}
	if len(def.FSM) > 0 {
		for k, v := range def.FSM {
			machine.SetWorkflowMetadata("fsm."+k, v)
		}
	}
	return instance, nil
}

// parseDefinition decodes and validates the workflow document shape.
func parseDefinition(body string) (*workflowDefinition, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
			"invalid workflow yaml", err)
	}

	rawWorkflow, ok := doc["workflow"]
	if !ok {
		return nil, agenterr.New(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
			"missing 'workflow' key")
	}
	workflowMap, ok := rawWorkflow.(map[string]any)
	if !ok {
		return nil, agenterr.New(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
			"'workflow' must be a mapping")
	}
	if name, ok := workflowMap["name"].(string); !ok || name == "" {
		return nil, agenterr.New(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
			"workflow requires a non-empty 'name'")
	}
	if _, ok := workflowMap["steps"].([]any); !ok {
		return nil, agenterr.New(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
			"'steps' must be a list")
	}

	var typed struct {
		Workflow workflowDefinition `yaml:"workflow"`
	}
	if err := yaml.Unmarshal([]byte(body), &typed); err != nil {
		return nil, agenterr.Wrap(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
			"invalid workflow structure", err)
	}

	def := typed.Workflow
	for i := range def.Steps {
		if def.Steps[i].ID == "" {
			def.Steps[i].ID = fmt.Sprintf("step_%d", i+1)
		}
	}
	for key, value := range workflowMap {
		if _, known := knownWorkflowKeys[key]; !known {
			if def.extra == nil {
				def.extra = make(map[string]any)
			}
			def.extra[key] = value
		}
	}
	return &def, nil
}

// buildMachine lays out START, one STEP_<id> state per step, and COMPLETE,
// linked linearly on "next", with optional per-step error transitions.
func buildMachine(def *workflowDefinition) (*fsm.Machine, error) {
	states := make([]string, 0, len(def.Steps)+2)
	states = append(states, fsm.StateStart)
	stepStates := make(map[string]string, len(def.Steps))
	for _, step := range def.Steps {
		state := StateNameForStep(step.ID)
		states = append(states, state)
		stepStates[step.ID] = state
	}
	states = append(states, fsm.StateComplete)

	transitions := make(map[fsm.TransitionKey]string, len(states))
	for i := 0; i < len(states)-1; i++ {
		transitions[fsm.TransitionKey{From: states[i], Event: fsm.EventNext}] = states[i+1]
	}
	for _, step := range def.Steps {
		if step.ErrorStep == "" {
			continue
		}
		target, ok := stepStates[step.ErrorStep]
		if !ok {
			return nil, agenterr.New(agenterr.KindInvalidFormat, "WorkflowFactory", "FromYAML",
				fmt.Sprintf("step '%s' references unknown error_step '%s'", step.ID, step.ErrorStep))
		}
		transitions[fsm.TransitionKey{From: stepStates[step.ID], Event: fsm.EventError}] = target
	}

	machine, err := fsm.NewBranching(states, fsm.StateStart, transitions)
	if err != nil {
		return nil, err
	}

	for _, step := range def.Steps {
		action := step.Action
		if action == "" {
			action = step.Name
		}
		if action == "" {
			action = step.ID
		}
		if err := machine.SetStateMetadata(stepStates[step.ID], fsm.StateMetadata{
			Action:     action,
			Objective:  step.Objective,
			Parameters: step.Parameters,
			Conditions: step.Conditions,
			Status:     fsm.StatusPending,
		}); err != nil {
			return nil, err
		}
	}
	machine.SetWorkflowMetadata("name", def.Name)
	if def.Description != "" {
		machine.SetWorkflowMetadata("description", def.Description)
	}
	return machine, nil
}

// buildType derives the workflow type schema from a definition: the name
// (a "type" metadata entry overrides the workflow name), the description
// as docstring, and one field per distinct step parameter in first-seen
// order.
func buildType(def *workflowDefinition) *Type {
	t := &Type{Name: def.Name, Docstring: def.Description}
	if override, ok := def.Metadata["type"].(string); ok && override != "" {
		t.Name = override
	}

	seen := make(map[string]struct{})
	for _, step := range def.Steps {
		names := make([]string, 0, len(step.Parameters))
		for name := range step.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			value := step.Parameters[name]
			t.Fields = append(t.Fields, TypeField{
				Name:    name,
				Type:    fieldTypeOf(value),
				Default: value,
			})
		}
	}
	return t
}

// fieldTypeOf names the YAML-native type of a parameter default.
func fieldTypeOf(value any) string {
	switch value.(type) {
	case bool:
		return "bool"
	case int, int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return "any"
	}
}

// StateNameForStep maps a step id to its FSM state name.
func StateNameForStep(id string) string {
	return "STEP_" + id
}

// stripFences removes a surrounding triple-backtick fence with an optional
// language tag, leaving raw YAML untouched.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
