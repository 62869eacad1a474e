// Package expr evaluates the small boolean/comparison expression language
// used by gateway conditions and field access rules.
//
// Supported: comparisons (==, !=, <, <=, >, >=), membership (in), and, or,
// parentheses, list literals, string/number/bool literals and dotted
// references into the context map. Unknown references evaluate to nil and
// never satisfy ordering comparisons, so expressions over fields not yet
// filled fail safe instead of crashing the engine.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Evaluate evaluates expression against context and returns its boolean
// result. An empty expression is true. Any parse or evaluation error makes
// the result false.
func Evaluate(expression string, context map[string]any) bool {
	result, err := EvaluateErr(expression, context)
	if err != nil {
		return false
	}

	return result
}

// EvaluateErr is Evaluate with the underlying error exposed for logging.
func EvaluateErr(expression string, context map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return true, nil
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return false, err
	}

	if len(tokens) == 0 {
		return true, nil
	}

	p := &parser{tokens: tokens, context: context}

	value, err := p.parseOr()
	if err != nil {
		return false, err
	}

	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("unexpected trailing token %q", p.tokens[p.pos])
	}

	return truthy(value), nil
}

func tokenize(s string) ([]string, error) {
	var tokens []string

	runes := []rune(s)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')' || r == '[' || r == ']' || r == ',':
			tokens = append(tokens, string(r))
			i++
		case i+1 < len(runes) && isComparator(string(runes[i:i+2])):
			tokens = append(tokens, string(runes[i:i+2]))
			i += 2
		case r == '<' || r == '>':
			tokens = append(tokens, string(r))
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != r {
				if runes[j] == '\\' {
					j++
				}
				j++
			}

			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string literal")
			}

			tokens = append(tokens, string(runes[i:j+1]))
			i = j + 1
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}

			tokens = append(tokens, string(runes[i:j]))
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}

			tokens = append(tokens, string(runes[i:j]))
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}

	return tokens, nil
}

func isComparator(s string) bool {
	switch s {
	case "==", "!=", "<=", ">=":
		return true
	}

	return false
}

type parser struct {
	tokens  []string
	pos     int
	context map[string]any
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && strings.EqualFold(p.tokens[p.pos], "or") {
		p.pos++

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = truthy(left) || truthy(right)
	}

	return left, nil
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.pos < len(p.tokens) && strings.EqualFold(p.tokens[p.pos], "and") {
		p.pos++

		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		left = truthy(left) && truthy(right)
	}

	return left, nil
}

func (p *parser) parseComparison() (any, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.pos >= len(p.tokens) {
		return left, nil
	}

	op := p.tokens[p.pos]

	switch {
	case op == "==" || op == "!=" || op == "<" || op == "<=" || op == ">" || op == ">=":
		p.pos++

		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		return compare(op, left, right), nil
	case strings.EqualFold(op, "in"):
		p.pos++

		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		return contains(right, left), nil
	}

	return left, nil
}

func (p *parser) parsePrimary() (any, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	t := p.tokens[p.pos]

	switch {
	case t == "(":
		p.pos++

		value, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos] != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}

		p.pos++

		return value, nil
	case t == "[":
		p.pos++

		var list []any

		for p.pos < len(p.tokens) && p.tokens[p.pos] != "]" {
			item, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}

			list = append(list, item)

			if p.pos < len(p.tokens) && p.tokens[p.pos] == "," {
				p.pos++
			}
		}

		if p.pos >= len(p.tokens) || p.tokens[p.pos] != "]" {
			return nil, fmt.Errorf("missing closing bracket")
		}

		p.pos++

		return list, nil
	case t[0] == '\'' || t[0] == '"':
		p.pos++

		inner := t[1 : len(t)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `\"`, `"`)

		return inner, nil
	case unicode.IsDigit(rune(t[0])) || t[0] == '.':
		p.pos++

		if strings.Contains(t, ".") {
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", t)
			}

			return f, nil
		}

		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t)
		}

		return n, nil
	case strings.EqualFold(t, "true") || strings.EqualFold(t, "yes"):
		p.pos++

		return true, nil
	case strings.EqualFold(t, "false") || strings.EqualFold(t, "no"):
		p.pos++

		return false, nil
	case unicode.IsLetter(rune(t[0])) || t[0] == '_':
		p.pos++

		return lookup(p.context, t), nil
	}

	return nil, fmt.Errorf("unexpected token %q", t)
}

// lookup resolves a possibly dotted reference into nested maps. A missing
// segment yields nil.
func lookup(context map[string]any, ref string) any {
	var current any = context

	for _, part := range strings.Split(ref, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = m[part]
		if !ok {
			return nil
		}
	}

	return current
}

func compare(op string, left, right any) bool {
	switch op {
	case "==":
		return equal(left, right)
	case "!=":
		return !equal(left, right)
	}

	// Ordering comparisons: absent values never match.
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)

	if lok && rok {
		switch op {
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}

	ls, lok := left.(string)
	rs, rok := right.(string)

	if lok && rok {
		switch op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		}
	}

	return false
}

func equal(left, right any) bool {
	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			return lf == rf
		}
	}

	return left == right
}

// contains implements the "in" operator over lists and strings. Multiselect
// values arrive as []any after JSON decoding.
func contains(container, item any) bool {
	switch c := container.(type) {
	case []any:
		for _, v := range c {
			if equal(v, item) {
				return true
			}
		}

		return false
	case []string:
		s, ok := item.(string)
		if !ok {
			return false
		}

		for _, v := range c {
			if v == s {
				return true
			}
		}

		return false
	case string:
		s, ok := item.(string)
		if !ok {
			return false
		}

		return strings.Contains(c, s)
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}

	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}

		return true
	}
}
