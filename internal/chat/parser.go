package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/employees"
)

// Command is a classified message with its extracted fields.
type Command struct {
	Intent Intent
	// Raw is the trimmed message as received.
	Raw    string
	Fields map[string]string
	// Missing lists prompt names of required fields that were not found, in grammar order.
	Missing []string
	// Err short-circuits the command, e.g. a level outside 1..12.
	Err error

	grammar grammar
}

// RangeError reports an extracted value outside its allowed bounds.
type RangeError struct {
	Field    string
	Min, Max int
}

func (e *RangeError) Error() string {
	label := strings.ToUpper(e.Field[:1]) + e.Field[1:]
	return fmt.Sprintf("%s must be between %d and %d", label, e.Min, e.Max)
}

// Parse classifies a message and extracts the fields of its intent.
func Parse(message string) Command {
	raw := strings.TrimSpace(message)
	cmd := Command{Intent: Classify(raw), Raw: raw, Fields: make(map[string]string)}
	g, ok := grammars[cmd.Intent]
	if !ok {
		return cmd
	}
	cmd.grammar = g

	text := normalize(raw)
	bare := blankQuoted(text)
	for _, f := range g.fields {
		subject := bare
		if f.kind == KindQuoted {
			subject = text
		}
		m := f.re.FindStringSubmatch(subject)
		if m == nil {
			if f.required {
				cmd.Missing = append(cmd.Missing, f.prompt)
			}
			continue
		}
		cmd.Fields[f.name] = strings.TrimSpace(m[1])
		if f.name == FieldLevel && cmd.Intent == IntentAddUser {
			level, err := strconv.Atoi(m[1])
			if err != nil || !employees.ValidLevel(level) {
				cmd.Err = &RangeError{Field: "level", Min: employees.MinLevel, Max: employees.MaxLevel}
				return cmd
			}
		}
	}
	return cmd
}

// Complete reports whether every required field was found.
func (c Command) Complete() bool {
	return len(c.Missing) == 0
}

// Prompt renders the reply for an incomplete command.
func (c Command) Prompt() string {
	if c.grammar.fixedPrompt != "" {
		return c.grammar.fixedPrompt
	}
	return c.grammar.listPrompt + strings.Join(c.Missing, ", ")
}

// Value returns a field value and whether it was present.
func (c Command) Value(name string) (string, bool) {
	v, ok := c.Fields[name]
	return v, ok
}

// Int returns a field as an integer.
func (c Command) Int(name string) (int64, error) {
	v, ok := c.Fields[name]
	if !ok {
		return 0, fmt.Errorf("%s is missing", name)
	}
	return strconv.ParseInt(v, 10, 64)
}

// Decimal returns a field as a decimal amount.
func (c Command) Decimal(name string) (decimal.Decimal, error) {
	v, ok := c.Fields[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is missing", name)
	}
	return decimal.NewFromString(v)
}

// IdentityTarget returns the word following a standalone "as", ignoring quoted text.
func IdentityTarget(message string) (string, bool) {
	m := identityPattern.FindStringSubmatch(blankQuoted(normalize(message)))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// normalize lower-cases everything outside double quotes and trims the line. Quoted
// segments keep their case so names and projects are stored as typed.
func normalize(message string) string {
	var b strings.Builder
	b.Grow(len(message))
	quoted := false
	for _, r := range strings.TrimSpace(message) {
		if r == '"' {
			quoted = !quoted
			b.WriteRune(r)
			continue
		}
		if quoted {
			b.WriteRune(r)
			continue
		}
		b.WriteString(strings.ToLower(string(r)))
	}
	return b.String()
}

// blankQuoted replaces every quoted segment, quotes included, with a single space so
// unquoted labels cannot match inside free text.
func blankQuoted(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	quoted := false
	for _, r := range text {
		switch {
		case r == '"' && !quoted:
			quoted = true
		case r == '"' && quoted:
			quoted = false
			b.WriteByte(' ')
		case !quoted:
			b.WriteRune(r)
		}
	}
	return b.String()
}
