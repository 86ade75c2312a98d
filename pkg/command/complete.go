package command

import (
	"sort"
	"strings"
)

// Complete returns the possible completions of line. Every completion is
// the whole line with its last, partial, token replaced by a keyword.
// Commands that take arguments are completed with a trailing space.
func (g *Grammar) Complete(line string) []string {
	if len(line) > MaxLineLen {
		return nil
	}
	// The last token is the one being completed, it is empty if the line
	// ends with a separator.
	start := strings.LastIndexFunc(line, isSeparator) + 1
	head, partial := line[:start], line[start:]

	var parent *Node
	level := g.root
	for _, tok := range strings.FieldsFunc(head, isSeparator) {
		n, match := MatchToken(level, tok)
		if n != 1 {
			return nil
		}
		parent, level = match, match.Children
	}

	t := g.index[parent]
	if t == nil {
		return nil
	}
	var keys []string
	if partial == "" {
		keys = t.Keys()
	} else {
		keys = t.PrefixSearch(partial)
	}
	sort.Strings(keys)

	r := make([]string, 0, len(keys))
	for _, k := range keys {
		c := head + k
		if tn, ok := t.Find(k); ok {
			if n, _ := tn.Meta().(*Node); n != nil && len(n.Children) > 0 {
				c += " "
			}
		}
		r = append(r, c)
	}
	return r
}
