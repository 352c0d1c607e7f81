// Package template implements the {{var}} substitution used by
// campaign message bodies. It is deliberately dumb: no escaping, no
// conditionals, unmatched syntax is left verbatim.
package template

import "regexp"

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render substitutes every {{identifier}} with its value from vars.
// Missing variables render as the empty string.
func Render(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

// ExtractVariables returns the distinct placeholder names used by the
// template. Recorded on the campaign when its template is saved so
// callers know the variable contract.
func ExtractVariables(tpl string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}
