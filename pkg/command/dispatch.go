package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bkptdbg/bkpt/pkg/logflags"
)

var (
	// ErrInvalid is matched by errors for tokens that do not match any
	// keyword.
	ErrInvalid = errors.New("invalid command")
	// ErrAmbiguous is matched by errors for tokens that are a prefix of
	// more than one keyword.
	ErrAmbiguous = errors.New("ambiguous command")
	// ErrIncomplete is matched by errors for lines that end before the
	// command is complete.
	ErrIncomplete = errors.New("incomplete command")
	// ErrOutOfResources is matched by errors for lines exceeding MaxLineLen
	// or MaxTokens.
	ErrOutOfResources = errors.New("out of resources")
)

// DispatchError describes why a line could not be resolved to a command.
type DispatchError struct {
	// Kind is one of ErrInvalid, ErrAmbiguous, ErrIncomplete or
	// ErrOutOfResources.
	Kind error
	// Token is the offending token and Pos its position in the line, Pos is
	// -1 if the error is not about a single token.
	Token      string
	Pos        int
	Candidates []string
	Msg        string
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case ErrInvalid:
		if e.Pos == 0 {
			return fmt.Sprintf("command not available: %s", e.Token)
		}
		return fmt.Sprintf("invalid argument %q", e.Token)
	case ErrAmbiguous:
		return fmt.Sprintf("ambiguous command %q, could be: %s", e.Token, strings.Join(e.Candidates, ", "))
	case ErrIncomplete:
		if len(e.Candidates) > 0 {
			return fmt.Sprintf("incomplete command, expected %s after %q", strings.Join(e.Candidates, " or "), e.Token)
		}
		return fmt.Sprintf("incomplete command after %q", e.Token)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return e.Kind.Error()
}

func (e *DispatchError) Unwrap() error { return e.Kind }

// MatchToken returns the number of nodes in siblings that token selects
// and, if there is exactly one, the selected node.
// A node whose keyword is equal to token is always the only match.
func MatchToken(siblings []Node, token string) (int, *Node) {
	count := 0
	var match *Node
	for i := range siblings {
		n := &siblings[i]
		if n.Keyword == token {
			return 1, n
		}
		if n.Keyword == "" || strings.HasPrefix(n.Keyword, token) {
			count++
			match = n
		}
	}
	if count != 1 {
		return count, nil
	}
	return count, match
}

func candidates(siblings []Node, token string) []string {
	var r []string
	for i := range siblings {
		n := &siblings[i]
		if n.Keyword == "" || strings.HasPrefix(n.Keyword, token) {
			r = append(r, n.name())
		}
	}
	return r
}

// Dispatch resolves line to an action.
//
// A blank line returns ActionQuit. If the line resolves to a command the
// returned Tokens belong to the caller, who must Release them. In every
// other case the returned Tokens are nil and the error is a *DispatchError.
func (g *Grammar) Dispatch(line string) (Action, *Tokens, error) {
	log := logflags.CommandLogger()
	toks, err := Tokenize(line)
	if err != nil {
		log.Debugf("tokenize: %v", err)
		return ActionInvalid, nil, err
	}
	if toks.Len() == 0 {
		return ActionQuit, nil, nil
	}

	keep := false
	defer func() {
		if !keep {
			toks.Release()
		}
	}()

	level := g.root
	var node *Node
	for i, tok := range toks.list {
		n, match := MatchToken(level, tok)
		switch {
		case n == 0:
			log.Debugf("%q: no match for %q", line, tok)
			return ActionInvalid, nil, &DispatchError{Kind: ErrInvalid, Token: tok, Pos: i}
		case n > 1:
			log.Debugf("%q: %d matches for %q", line, n, tok)
			return ActionAmbiguous, nil, &DispatchError{Kind: ErrAmbiguous, Token: tok, Pos: i, Candidates: candidates(level, tok)}
		}
		node = match
		level = node.Children
	}

	if node.Action == ActionIncomplete {
		last := toks.Len() - 1
		return ActionIncomplete, nil, &DispatchError{Kind: ErrIncomplete, Token: toks.At(last), Pos: last, Candidates: candidates(node.Children, "")}
	}
	keep = true
	log.Debugf("%q: %s", line, node.Action)
	return node.Action, toks, nil
}

var defaultGrammar = DefaultGrammar(nil)

// Dispatch resolves line against the default grammar.
func Dispatch(line string) (Action, *Tokens, error) {
	return defaultGrammar.Dispatch(line)
}
