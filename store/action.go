package store

import (
	"fmt"

	"github.com/tailored-agentic-units/patchstore/patch"
)

// Action is a discrete event that reducers react to.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Validate reports an *ArgumentError for op when the action has no type.
func (a Action) Validate(op string) error {
	if a.Type == "" {
		return &ArgumentError{Op: op, Arg: "action", Reason: "type must be a non-empty string"}
	}
	return nil
}

// ActionFrom converts a queued element of the actions field into an Action.
// Accepted forms are Action, *Action and a mapping with a string "type" and
// an optional "payload".
func ActionFrom(v any) (Action, error) {
	var action Action

	switch a := v.(type) {
	case Action:
		action = a
	case *Action:
		if a == nil {
			return Action{}, &ArgumentError{Op: "Dispatch", Arg: "action", Reason: "nil *Action in queue"}
		}
		action = *a
	default:
		fields, ok := patch.AsMapping(v)
		if !ok {
			return Action{}, &ArgumentError{
				Op:     "Dispatch",
				Arg:    "action",
				Reason: fmt.Sprintf("queued value of type %T is not an action", v),
			}
		}
		typ, ok := fields["type"].(string)
		if !ok {
			return Action{}, &ArgumentError{
				Op:     "Dispatch",
				Arg:    "action",
				Reason: fmt.Sprintf("queued action type is %T, want string", fields["type"]),
			}
		}
		action = Action{Type: typ, Payload: fields["payload"]}
	}

	return action, action.Validate("Dispatch")
}
