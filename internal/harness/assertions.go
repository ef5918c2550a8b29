package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/tally/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch {
		case event.Kind == EventReplace:
			fmt.Fprintf(&buf, "  [%d] replace", event.Seq)
		default:
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.ActionType, describe(event.Action))
		}
		if !event.OK() {
			fmt.Fprintf(&buf, " (error %s)", event.Error)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(assertions []Assertion, result *Result) []string {
	var failures []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.FinalState, result.Trace, assertion)
		case AssertUnchanged:
			err = assertUnchanged(result.Trace, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// succeeded returns the successful dispatch events.
func succeeded(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, event := range trace {
		if event.Kind == EventDispatch && event.OK() {
			out = append(out, event)
		}
	}
	return out
}

// assertTraceContains checks for a successful dispatch of the action whose
// fields include the expected ones.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := expectedFields(assertion.Fields)
	if err != nil {
		return err
	}
	for _, event := range succeeded(trace) {
		if event.ActionType == assertion.Action && matchFields(event.Action, expected) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s", assertion.Action, describe(expected)),
		Actual:   "no matching dispatch",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first successful dispatch of each action
// appears in the listed order.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range succeeded(trace) {
		if _, seen := positions[event.ActionType]; !seen {
			positions[event.ActionType] = i
		}
	}

	last := -1
	for _, action := range assertion.Actions {
		pos, ok := positions[action]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: strings.Join(assertion.Actions, " -> "),
				Actual:   fmt.Sprintf("%s never dispatched", action),
				Trace:    trace,
			}
		}
		if pos < last {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: strings.Join(assertion.Actions, " -> "),
				Actual:   fmt.Sprintf("%s dispatched out of order", action),
				Trace:    trace,
			}
		}
		last = pos
	}
	return nil
}

// assertTraceCount checks the number of successful dispatches of an action.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range succeeded(trace) {
		if event.ActionType == assertion.Action {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s dispatched %d times", assertion.Action, assertion.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares the value at a dotted path with the expectation.
func assertFinalState(state ir.IRValue, trace []TraceEvent, assertion Assertion) error {
	expected, err := ir.FromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	actual, ok := lookupPath(state, assertion.Path)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", pathLabel(assertion.Path), describe(expected)),
			Actual:   "path not found",
			Trace:    trace,
		}
	}
	if !ir.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", pathLabel(assertion.Path), describe(expected)),
			Actual:   describe(actual),
			Trace:    trace,
		}
	}
	return nil
}

// assertUnchanged checks that a step succeeded without replacing the state.
func assertUnchanged(trace []TraceEvent, assertion Assertion) error {
	index := *assertion.Step
	if index >= len(trace) {
		return fmt.Errorf("unchanged: step %d has no trace event", index)
	}
	event := trace[index]
	if !event.OK() || event.Changed {
		actual := "state changed"
		if !event.OK() {
			actual = "step failed with " + event.Error
		}
		return &AssertionError{
			Type:     AssertUnchanged,
			Expected: fmt.Sprintf("step %d keeps the same state", index),
			Actual:   actual,
			Trace:    trace,
		}
	}
	return nil
}

func expectedFields(fields map[string]any) (ir.IRObject, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	value, err := ir.FromGo(fields)
	if err != nil {
		return nil, fmt.Errorf("trace_contains fields: %w", err)
	}
	return value.(ir.IRObject), nil
}

// matchFields reports whether actual contains every expected field.
func matchFields(actual, expected ir.IRObject) bool {
	for k, v := range expected {
		got, ok := actual[k]
		if !ok || !ir.Equal(got, v) {
			return false
		}
	}
	return true
}

// lookupPath walks a dotted path through objects and arrays.
func lookupPath(v ir.IRValue, path string) (ir.IRValue, bool) {
	if path == "" {
		return v, v != nil
	}
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case ir.IRObject:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			v = next
		case ir.IRArray:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func pathLabel(path string) string {
	if path == "" {
		return "state"
	}
	return path
}

func describe(v ir.IRValue) string {
	if v == nil {
		return "{}"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
