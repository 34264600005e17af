// Package pattern clusters alert messages into templates by replacing
// variable tokens (timestamps, hex addresses, numbers) with placeholders.
// Two messages that differ only in such tokens share one template.
package pattern

import (
	"regexp"
	"sort"

	"github.com/agvlabs/launchstat/internal/model"
)

// maxKeyLen bounds the grouping key so pathological messages cannot grow
// the template map without limit.
const maxKeyLen = 120

var substitutions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?`), "<TS>"},
	{regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}(?:\.\d+)?\b`), "<TS>"},
	{regexp.MustCompile(`0[xX][0-9a-fA-F]+`), "<HEX>"},
	{regexp.MustCompile(`\d+\.\d+`), "<N>"},
	{regexp.MustCompile(`\d+`), "<N>"},
}

// Grouper maintains the template → MessagePattern mapping for one run.
type Grouper struct {
	patterns map[string]*model.MessagePattern
}

func NewGrouper() *Grouper {
	return &Grouper{patterns: make(map[string]*model.MessagePattern)}
}

// Template normalizes a message into its grouping template.
func Template(msg string) string {
	for _, sub := range substitutions {
		msg = sub.re.ReplaceAllString(msg, sub.repl)
	}
	return model.TruncateMessage(msg, maxKeyLen)
}

// Observe folds one message into its template group and reports whether the
// template was newly created. The first message seen for a template becomes
// its stored example and is never replaced.
func (g *Grouper) Observe(msg string) (template string, isNew bool) {
	template = Template(msg)

	p, found := g.patterns[template]
	if !found {
		g.patterns[template] = &model.MessagePattern{
			Template: template,
			Count:    1,
			Example:  model.TruncateMessage(msg, model.MaxSampleMessageLen),
		}
		return template, true
	}
	p.Count++
	return template, false
}

// Len returns the number of distinct templates.
func (g *Grouper) Len() int { return len(g.patterns) }

// Patterns returns all templates sorted by count descending, ties broken by
// template text ascending for reproducible reports.
func (g *Grouper) Patterns() []model.MessagePattern {
	out := make([]model.MessagePattern, 0, len(g.patterns))
	for _, p := range g.patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Template < out[j].Template
	})
	return out
}

// Restore rebuilds the grouper from a serialized pattern list, preserving
// counts and first-seen examples across incremental runs.
func (g *Grouper) Restore(patterns []model.MessagePattern) {
	g.patterns = make(map[string]*model.MessagePattern, len(patterns))
	for _, p := range patterns {
		p := p
		key := model.TruncateMessage(p.Template, maxKeyLen)
		p.Template = key
		g.patterns[key] = &p
	}
}
