package event

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Expression is a Filter backed by a compiled CEL program. It complements the
// structural leaves when callers need richer predicates than equality and
// containment. The expression sees these variables:
//
//	event_type string
//	headers    map[string]string
//	payload    dyn (the event payload)
//	priority   int
//	timestamp  int (epoch seconds)
//	now_ms     int (evaluation time, for windowed filters)
//
// Evaluation errors and non-bool results are treated as no-match.
type Expression struct {
	prog cel.Program
}

// NewExpression parses, checks, and compiles a CEL expression. An empty
// expression is rejected; use And(nil) for a match-all filter.
func NewExpression(expr string) (*Expression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	env, err := cel.NewEnv(
		cel.Variable("event_type", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("payload", cel.DynType),
		cel.Variable("priority", cel.IntType),
		cel.Variable("timestamp", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Expression{prog: prog}, nil
}

// Matches evaluates the compiled expression against the event.
func (f *Expression) Matches(ev *Event) bool {
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	var payload any = map[string]any{}
	if ev.Payload != nil {
		payload = ev.Payload
	}
	out, _, err := f.prog.Eval(map[string]any{
		"event_type": ev.Type,
		"headers":    headers,
		"payload":    payload,
		"priority":   int64(ev.Priority),
		"timestamp":  int64(ev.Timestamp),
		"now_ms":     time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
