// Package command resolves input lines against the debugger's command
// grammar.
//
// The grammar is a tree of keywords. Every token of a line selects one node
// among the children of the node selected by the previous token; a token
// selects a node if it is equal to its keyword or a prefix of exactly one
// keyword on that level. Nodes with an empty keyword accept any token.
package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/derekparker/trie"

	"github.com/bkptdbg/bkpt/pkg/logflags"
)

// Action is what a resolved line asks the debugger to do.
type Action uint8

const (
	// ActionInvalid is returned for lines that do not match the grammar.
	ActionInvalid Action = iota
	// ActionIncomplete marks nodes that expect more tokens, and is returned
	// when a line ends on one of them.
	ActionIncomplete
	// ActionAmbiguous is returned when a token is a prefix of more than one
	// keyword.
	ActionAmbiguous
	ActionQuit
	ActionContinue
	ActionHelp
	ActionPrintf
	ActionConvert
	// ActionTodo is a placeholder for commands that are recognized but not
	// implemented yet.
	ActionTodo
)

var actionNames = [...]string{
	ActionInvalid:    "invalid",
	ActionIncomplete: "incomplete",
	ActionAmbiguous:  "ambiguous",
	ActionQuit:       "quit",
	ActionContinue:   "continue",
	ActionHelp:       "help",
	ActionPrintf:     "printf",
	ActionConvert:    "convert",
	ActionTodo:       "todo",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// Terminal returns true for actions that complete a command.
func (a Action) Terminal() bool {
	switch a {
	case ActionInvalid, ActionIncomplete, ActionAmbiguous:
		return false
	}
	return true
}

// Node is a keyword of the grammar.
type Node struct {
	// Keyword is the word matched by this node, an empty keyword matches
	// any token.
	Keyword string
	// Arg is the name shown in help output for a node with an empty
	// keyword.
	Arg string
	// Action is ActionIncomplete for nodes with children, otherwise the
	// action returned when a line ends on this node.
	Action Action
	// Help is a short description of the command, only used for the first
	// level of the grammar.
	Help     string
	Children []Node
}

func (n *Node) name() string {
	if n.Keyword == "" {
		if n.Arg != "" {
			return n.Arg
		}
		return "<arg>"
	}
	return n.Keyword
}

// Grammar is an immutable command tree. It is safe to use a Grammar from
// multiple goroutines.
type Grammar struct {
	root    []Node
	aliases map[string][]string
	// index holds the keywords of the children of each node, the root level
	// is stored under the nil key.
	index map[*Node]*trie.Trie
}

func radixNodes() []Node {
	return []Node{
		{Keyword: "hex", Action: ActionIncomplete},
		{Keyword: "dec", Action: ActionIncomplete},
	}
}

// DefaultTable returns the built-in command table.
func DefaultTable() []Node {
	value := func(action Action, children []Node) []Node {
		return []Node{{Arg: "<n>", Action: action, Children: children}}
	}
	to := radixNodes()
	for i := range to {
		to[i].Children = value(ActionConvert, nil)
	}
	from := radixNodes()
	for i := range from {
		from[i].Children = value(ActionIncomplete, to)
	}
	return []Node{
		{Keyword: "continue", Action: ActionContinue, Help: "Run until the target stops or exits."},
		{Keyword: "convert", Action: ActionIncomplete, Children: from, Help: "Convert a number between bases."},
		{Keyword: "help", Action: ActionHelp, Help: "Print this help message."},
		{Keyword: "printf", Action: ActionPrintf, Help: "Print formatted output."},
		{Keyword: "quit", Action: ActionQuit, Help: "Detach from or kill the target and exit."},
	}
}

// NewGrammar builds a grammar from table. The aliases map keywords of the
// first level of table to additional keywords for the same command. Aliases
// that collide with an existing keyword are ignored.
func NewGrammar(table []Node, aliases map[string][]string) (*Grammar, error) {
	g := &Grammar{
		root:    copyNodes(table),
		aliases: map[string][]string{},
		index:   map[*Node]*trie.Trie{},
	}
	if err := validate(g.root); err != nil {
		return nil, err
	}
	g.merge(aliases)
	g.buildIndex(nil, g.root)
	return g, nil
}

// DefaultGrammar returns a grammar for DefaultTable with the given aliases.
func DefaultGrammar(aliases map[string][]string) *Grammar {
	g, err := NewGrammar(DefaultTable(), aliases)
	if err != nil {
		panic(err)
	}
	return g
}

func copyNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	r := make([]Node, len(nodes))
	for i := range nodes {
		r[i] = nodes[i]
		r[i].Children = copyNodes(nodes[i].Children)
	}
	return r
}

func validate(nodes []Node) error {
	for i := range nodes {
		n := &nodes[i]
		switch {
		case n.Action == ActionIncomplete && len(n.Children) == 0:
			return fmt.Errorf("command %q expects arguments but has none", n.name())
		case n.Action != ActionIncomplete && len(n.Children) != 0:
			return fmt.Errorf("command %q has arguments but action %s", n.name(), n.Action)
		case n.Action == ActionInvalid || n.Action == ActionAmbiguous:
			return fmt.Errorf("command %q has action %s", n.name(), n.Action)
		}
		if err := validate(n.Children); err != nil {
			return err
		}
	}
	return nil
}

// merge adds the aliases to the first level of the grammar.
func (g *Grammar) merge(aliases map[string][]string) {
	log := logflags.CommandLogger()
	cmds := make([]string, 0, len(aliases))
	for cmd := range aliases {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)

	n := len(g.root)
	for _, cmd := range cmds {
		var target *Node
		for i := 0; i < n; i++ {
			if g.root[i].Keyword == cmd {
				target = &g.root[i]
				break
			}
		}
		if target == nil {
			log.Warnf("alias for unknown command %q", cmd)
			continue
		}
		for _, alias := range aliases[cmd] {
			if alias == "" || g.lookup(alias) {
				log.Warnf("alias %q for %q ignored", alias, cmd)
				continue
			}
			a := *target
			a.Keyword = alias
			g.root = append(g.root, a)
			g.aliases[cmd] = append(g.aliases[cmd], alias)
		}
	}
}

func (g *Grammar) lookup(keyword string) bool {
	for i := range g.root {
		if g.root[i].Keyword == keyword {
			return true
		}
	}
	return false
}

func (g *Grammar) buildIndex(parent *Node, level []Node) {
	t := trie.New()
	for i := range level {
		n := &level[i]
		if n.Keyword != "" {
			t.Add(n.Keyword, n)
		}
		if len(n.Children) > 0 {
			g.buildIndex(n, n.Children)
		}
	}
	g.index[parent] = t
}

// Root returns the first level of the grammar.
func (g *Grammar) Root() []Node {
	return g.root
}

// Help returns a description of every command of the grammar.
func (g *Grammar) Help() string {
	var buf strings.Builder
	fmt.Fprintln(&buf, "The following commands are available:")
	aliased := map[string]bool{}
	for _, as := range g.aliases {
		for _, a := range as {
			aliased[a] = true
		}
	}
	w := 0
	var lines [][2]string
	for i := range g.root {
		n := &g.root[i]
		if aliased[n.Keyword] {
			continue
		}
		usage := synopsis(n)
		if as := g.aliases[n.Keyword]; len(as) > 0 {
			usage += " (alias: " + strings.Join(as, " | ") + ")"
		}
		if len(usage) > w {
			w = len(usage)
		}
		lines = append(lines, [2]string{usage, n.Help})
	}
	for _, l := range lines {
		fmt.Fprintf(&buf, "    %-*s %s\n", w, l[0], l[1])
	}
	fmt.Fprintln(&buf, "\nCommands can be abbreviated to any unambiguous prefix.")
	return buf.String()
}

// synopsis describes the arguments of n, assuming that all nodes on a
// level accept the same arguments.
func synopsis(n *Node) string {
	words := []string{n.name()}
	for level := n.Children; len(level) > 0; level = level[0].Children {
		if len(level) == 1 {
			words = append(words, level[0].name())
			continue
		}
		names := make([]string, len(level))
		for i := range level {
			names[i] = level[i].name()
		}
		words = append(words, "{"+strings.Join(names, "|")+"}")
	}
	return strings.Join(words, " ")
}
