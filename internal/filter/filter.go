// Package filter decides which log entries the headless tail prints.
package filter

import (
	"fmt"
	"strings"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter combines a level set with an optional boolean expression.
// The zero value matches everything.
type Filter struct {
	levels map[model.Level]bool
	where  *vm.Program
}

// New builds a Filter. levels is a comma-separated list such as
// "info,warn"; where is an expression over id, message, level and
// timestamp, e.g. `level == "error" && message contains "disk"`.
// Either may be empty.
func New(levels, where string) (*Filter, error) {
	f := &Filter{}

	if strings.TrimSpace(levels) != "" {
		f.levels = make(map[model.Level]bool)
		for _, l := range strings.Split(levels, ",") {
			l = strings.ToLower(strings.TrimSpace(l))
			if l == "" {
				continue
			}
			if !model.Level(l).Valid() {
				return nil, fmt.Errorf("unknown level %q", l)
			}
			f.levels[model.Level(l)] = true
		}
	}

	if strings.TrimSpace(where) != "" {
		prg, err := expr.Compile(where, expr.Env(env(model.LogEntry{})), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling --where: %w", err)
		}
		f.where = prg
	}
	return f, nil
}

// Match reports whether e passes the filter. An expression that fails at
// runtime does not match.
func (f *Filter) Match(e model.LogEntry) bool {
	if f == nil {
		return true
	}
	if len(f.levels) > 0 && !f.levels[e.Level] {
		return false
	}
	if f.where == nil {
		return true
	}
	out, err := expr.Run(f.where, env(e))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func env(e model.LogEntry) map[string]any {
	return map[string]any{
		"id":        e.ID,
		"message":   e.Message,
		"level":     string(e.Level),
		"timestamp": e.Timestamp,
	}
}
