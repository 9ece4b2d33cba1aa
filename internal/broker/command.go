package broker

import (
	"fmt"
	"strconv"
	"strings"
)

// Literal is a parameter value spliced into the pipeline verbatim,
// without quoting. Use it for bare words like Stop, $null, or
// hashtable expressions.
type Literal string

type arg struct {
	name  string
	value any
}

type stage struct {
	name string
	args []arg
	raw  string
}

// Command is an ordered PowerShell pipeline under construction. Stages
// render left to right joined by pipes, and each stage's parameters
// render in the order they were added, so the same Command produces
// identical text for local and remote execution.
type Command struct {
	stages []stage
}

// New starts a pipeline with the named cmdlet.
func New(name string) *Command {
	return &Command{stages: []stage{{name: name}}}
}

// Script wraps literal PowerShell text as a complete command. For the
// few operations that need multi-statement scripts rather than a
// single pipeline.
func Script(text string) *Command {
	return &Command{stages: []stage{{raw: text}}}
}

// Param adds a named parameter to the current stage.
func (c *Command) Param(name string, value any) *Command {
	last := &c.stages[len(c.stages)-1]
	last.args = append(last.args, arg{name: name, value: value})
	return c
}

// Switch adds a valueless switch parameter to the current stage.
func (c *Command) Switch(name string) *Command {
	last := &c.stages[len(c.stages)-1]
	last.args = append(last.args, arg{name: name})
	return c
}

// Pipe appends a new cmdlet stage.
func (c *Command) Pipe(name string) *Command {
	c.stages = append(c.stages, stage{name: name})
	return c
}

// PipeRaw appends a stage of literal pipeline text.
func (c *Command) PipeRaw(text string) *Command {
	c.stages = append(c.stages, stage{raw: text})
	return c
}

// Project appends a ForEach-Object stage that rebuilds each object with
// only the given fields. Entries are "Name=expression" pairs; the
// expression may reference the pipeline object as $_. Enum-typed
// properties should be cast with [string] here so JSON output carries
// names instead of platform-internal numbers.
func (c *Command) Project(fields ...string) *Command {
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		name, expr, ok := strings.Cut(f, "=")
		if !ok {
			name, expr = f, "$_."+f
		}
		pairs = append(pairs, fmt.Sprintf("%s = %s", name, expr))
	}
	return c.PipeRaw(fmt.Sprintf("ForEach-Object { [pscustomobject]@{ %s } }", strings.Join(pairs, "; ")))
}

// JSON appends a ConvertTo-Json stage with the given depth.
func (c *Command) JSON(depth int) *Command {
	return c.PipeRaw(fmt.Sprintf("ConvertTo-Json -Depth %d -Compress", depth))
}

// Name returns the leading cmdlet of the pipeline, for error reporting
// and logs. Raw scripts report as "script".
func (c *Command) Name() string {
	if len(c.stages) == 0 || c.stages[0].name == "" {
		return "script"
	}
	return c.stages[0].name
}

// String renders the pipeline.
func (c *Command) String() string {
	rendered := make([]string, 0, len(c.stages))
	for _, s := range c.stages {
		if s.raw != "" {
			rendered = append(rendered, s.raw)
			continue
		}
		parts := []string{s.name}
		for _, a := range s.args {
			if a.value == nil {
				parts = append(parts, "-"+a.name)
				continue
			}
			parts = append(parts, fmt.Sprintf("-%s %s", a.name, renderValue(a.value)))
		}
		rendered = append(rendered, strings.Join(parts, " "))
	}
	return strings.Join(rendered, " | ")
}

// Quote single-quotes a string for safe inclusion in PowerShell text,
// doubling any embedded single quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func renderValue(v any) string {
	switch tv := v.(type) {
	case Literal:
		return string(tv)
	case string:
		return Quote(tv)
	case bool:
		if tv {
			return "$true"
		}
		return "$false"
	case int:
		return strconv.Itoa(tv)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case int64:
		return strconv.FormatInt(tv, 10)
	case uint64:
		return strconv.FormatUint(tv, 10)
	case []string:
		quoted := make([]string, 0, len(tv))
		for _, s := range tv {
			quoted = append(quoted, Quote(s))
		}
		return strings.Join(quoted, ",")
	case []int:
		nums := make([]string, 0, len(tv))
		for _, n := range tv {
			nums = append(nums, strconv.Itoa(n))
		}
		return strings.Join(nums, ",")
	default:
		return Quote(fmt.Sprintf("%v", v))
	}
}
