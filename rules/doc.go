// Package rules builds store reducers from declarative rules.
//
// A rule names the action type it reacts to, an optional boolean condition,
// and the changes to make: fields to set from expressions, fields to delete,
// and actions to enqueue. Expressions use the expr language
// (github.com/expr-lang/expr) and see three variables:
//
//	state    the current state
//	action   the action, with "type" and "payload"
//	payload  shorthand for action.payload
//
// Example YAML rule file:
//
//	rules:
//	  - name: add-item
//	    on: ADD
//	    when: payload.qty > 0
//	    set:
//	      cart.count: (state.cart?.count ?? 0) + payload.qty
//	      cart.last: payload.sku
//	    enqueue: '[{"type": "RECALC"}]'
//
// Each rule becomes its own reducer, so a rule sees the changes made by the
// rules before it.
package rules
