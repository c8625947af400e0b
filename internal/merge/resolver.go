// Package merge substitutes recipient fields into campaign templates.
//
// A placeholder is a {field} token. Field names match record keys without
// regard to case. Substituted values are emitted verbatim: nothing is
// escaped, and substituted text is never scanned again.
package merge

import (
	"regexp"
	"sort"

	"golang.org/x/text/cases"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]*)\}`)

// Resolve replaces every {key} in template with record[key]. Unknown
// placeholders are left untouched.
func Resolve(template string, record map[string]string) string {
	if len(record) == 0 || template == "" {
		return template
	}
	fold := cases.Fold()
	index := foldIndex(fold, record)

	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		key, ok := index[fold.String(name)]
		if !ok {
			return token
		}
		return record[key]
	})
}

// foldIndex maps folded names to the original record key. When several keys
// fold to the same name the smallest original key wins.
func foldIndex(fold cases.Caser, record map[string]string) map[string]string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	index := make(map[string]string, len(keys))
	for _, k := range keys {
		folded := fold.String(k)
		if _, dup := index[folded]; dup {
			continue
		}
		index[folded] = k
	}
	return index
}

// Placeholders returns the distinct placeholder names in template, in order
// of first appearance.
func Placeholders(template string) []string {
	matches := placeholderRe.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Unmatched returns the placeholders in template that no column in columns
// would satisfy.
func Unmatched(template string, columns []string) []string {
	fold := cases.Fold()
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[fold.String(c)] = true
	}
	var missing []string
	for _, name := range Placeholders(template) {
		if !have[fold.String(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}
