package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tailored-agentic-units/patchstore/modifier"
	"github.com/tailored-agentic-units/patchstore/patch"
	"github.com/tailored-agentic-units/patchstore/store"
)

// MatchAll as Rule.On matches every action type.
const MatchAll = "*"

// Rule is a declarative reducer.
type Rule struct {
	Name string `json:"name" yaml:"name" toml:"name"`

	// On is the action type the rule reacts to. Empty or MatchAll reacts to
	// every action.
	On string `json:"on" yaml:"on" toml:"on"`

	// When is a boolean expression. Empty means always.
	When string `json:"when,omitempty" yaml:"when,omitempty" toml:"when,omitempty"`

	// Set maps dotted field paths to value expressions.
	Set map[string]string `json:"set,omitempty" yaml:"set,omitempty" toml:"set,omitempty"`

	// Delete lists dotted field paths to remove.
	Delete []string `json:"delete,omitempty" yaml:"delete,omitempty" toml:"delete,omitempty"`

	// Enqueue is an expression yielding a list of actions, each a mapping
	// with "type" and optional "payload", or a bare type string. They are
	// appended to the actions queue.
	Enqueue string `json:"enqueue,omitempty" yaml:"enqueue,omitempty" toml:"enqueue,omitempty"`
}

type assignment struct {
	path    []string
	program *vm.Program
}

type compiled struct {
	name    string
	on      string
	when    *vm.Program
	set     []assignment
	delete  [][]string
	enqueue *vm.Program
}

// Compile turns rule into a store.Reducer. Expressions are compiled once;
// evaluation errors surface from Dispatch.
func Compile(rule Rule) (store.Reducer, error) {
	c := &compiled{name: rule.Name, on: rule.On}
	if c.name == "" {
		c.name = "rule on " + rule.On
	}

	var err error
	if rule.When != "" {
		if c.when, err = expr.Compile(rule.When); err != nil {
			return nil, fmt.Errorf("%s: compile when: %w", c.name, err)
		}
	}

	fields := make([]string, 0, len(rule.Set))
	for field := range rule.Set {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		path, err := splitPath(field)
		if err != nil {
			return nil, fmt.Errorf("%s: set: %w", c.name, err)
		}
		program, err := expr.Compile(rule.Set[field])
		if err != nil {
			return nil, fmt.Errorf("%s: compile set %s: %w", c.name, field, err)
		}
		c.set = append(c.set, assignment{path: path, program: program})
	}

	for _, field := range rule.Delete {
		path, err := splitPath(field)
		if err != nil {
			return nil, fmt.Errorf("%s: delete: %w", c.name, err)
		}
		c.delete = append(c.delete, path)
	}

	if rule.Enqueue != "" {
		if c.enqueue, err = expr.Compile(rule.Enqueue); err != nil {
			return nil, fmt.Errorf("%s: compile enqueue: %w", c.name, err)
		}
	}

	return c.reduce, nil
}

// Reducers compiles every rule, keeping their order.
func Reducers(rules []Rule) ([]store.Reducer, error) {
	reducers := make([]store.Reducer, 0, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule %d", i)
		}
		r, err := Compile(rule)
		if err != nil {
			return nil, err
		}
		reducers = append(reducers, r)
	}
	return reducers, nil
}

func (c *compiled) matches(actionType string) bool {
	return c.on == "" || c.on == MatchAll || c.on == actionType
}

func (c *compiled) reduce(ctx context.Context, state patch.Map, action store.Action) modifier.Sequence {
	if !c.matches(action.Type) {
		return nil
	}
	return modifier.Of(modifier.Pending(func(ctx context.Context) (patch.Patch, error) {
		return c.evaluate(state, action)
	}))
}

func (c *compiled) evaluate(state patch.Map, action store.Action) (patch.Patch, error) {
	env := map[string]any{
		"state":   map[string]any(state),
		"action":  map[string]any{"type": action.Type, "payload": action.Payload},
		"payload": action.Payload,
	}

	if c.when != nil {
		out, err := expr.Run(c.when, env)
		if err != nil {
			return nil, fmt.Errorf("%s: when: %w", c.name, err)
		}
		ok, isBool := out.(bool)
		if !isBool {
			return nil, fmt.Errorf("%s: when: result is %T, want bool", c.name, out)
		}
		if !ok {
			return nil, nil
		}
	}

	p := patch.Patch{}
	for _, a := range c.set {
		value, err := expr.Run(a.program, env)
		if err != nil {
			return nil, fmt.Errorf("%s: set %s: %w", c.name, strings.Join(a.path, "."), err)
		}
		assign(p, a.path, value)
	}

	for _, path := range c.delete {
		assign(p, path, patch.Delete)
	}

	if c.enqueue != nil {
		out, err := expr.Run(c.enqueue, env)
		if err != nil {
			return nil, fmt.Errorf("%s: enqueue: %w", c.name, err)
		}
		queued, err := toQueue(out)
		if err != nil {
			return nil, fmt.Errorf("%s: enqueue: %w", c.name, err)
		}
		if current, ok := store.Queued(state); ok {
			queued = append(current, queued...)
		}
		p[store.FieldActions] = queued
	}

	return p, nil
}

// assign sets value at path inside p, creating nested patches as needed.
func assign(p patch.Patch, path []string, value any) {
	for _, field := range path[:len(path)-1] {
		next, ok := p[field].(patch.Patch)
		if !ok {
			next = patch.Patch{}
			p[field] = next
		}
		p = next
	}
	p[path[len(path)-1]] = value
}

func splitPath(field string) ([]string, error) {
	path := strings.Split(field, ".")
	for _, segment := range path {
		if segment == "" {
			return nil, fmt.Errorf("invalid field path %q", field)
		}
	}
	return path, nil
}

func toQueue(out any) ([]any, error) {
	if out == nil {
		return []any{}, nil
	}
	items, ok := out.([]any)
	if !ok {
		return nil, fmt.Errorf("result is %T, want list", out)
	}

	queued := make([]any, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			queued = append(queued, store.Action{Type: v})
		case map[string]any:
			action, err := store.ActionFrom(v)
			if err != nil {
				return nil, err
			}
			queued = append(queued, action)
		default:
			return nil, fmt.Errorf("queued item is %T, want action mapping or type string", item)
		}
	}
	return queued, nil
}
