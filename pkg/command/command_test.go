package command

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTokenExactIsNeverAmbiguous(t *testing.T) {
	levels := [][]Node{
		{{Keyword: "c", Action: ActionContinue}, {Keyword: "continue", Action: ActionContinue}, {Keyword: "convert", Action: ActionConvert}},
		{{Arg: "<n>", Action: ActionTodo}, {Keyword: "hex", Action: ActionTodo}, {Keyword: "he", Action: ActionTodo}},
		{{Keyword: "quit", Action: ActionQuit}, {Keyword: "q", Action: ActionQuit}, {Action: ActionTodo}},
		DefaultTable(),
	}
	for _, level := range levels {
		for i := range level {
			kw := level[i].Keyword
			if kw == "" {
				continue
			}
			n, match := MatchToken(level, kw)
			require.Equal(t, 1, n, "token %q", kw)
			require.NotNil(t, match)
			require.Equal(t, kw, match.Keyword)
		}
	}
}

func TestMatchToken(t *testing.T) {
	level := DefaultTable()
	tests := []struct {
		token string
		n     int
		kw    string
	}{
		{"c", 2, ""},
		{"co", 2, ""},
		{"con", 2, ""},
		{"cont", 1, "continue"},
		{"conv", 1, "convert"},
		{"h", 1, "help"},
		{"helpme", 0, ""},
		{"x", 0, ""},
		{"quit", 1, "quit"},
	}
	for _, tc := range tests {
		n, match := MatchToken(level, tc.token)
		assert.Equal(t, tc.n, n, "token %q", tc.token)
		if tc.kw == "" {
			assert.Nil(t, match, "token %q", tc.token)
			continue
		}
		if assert.NotNil(t, match, "token %q", tc.token) {
			assert.Equal(t, tc.kw, match.Keyword)
		}
	}

	wild := []Node{{Arg: "<n>", Action: ActionTodo}, {Keyword: "hex", Action: ActionTodo}}
	n, match := MatchToken(wild, "42")
	require.Equal(t, 1, n)
	require.Equal(t, "<n>", match.Arg)
	n, _ = MatchToken(wild, "he")
	require.Equal(t, 2, n)
}

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("  convert\thex 10\r\ndec  ")
	require.NoError(t, err)
	require.Equal(t, []string{"convert", "hex", "10", "dec"}, toks.List())
	require.Equal(t, 4, toks.Len())
	require.Equal(t, "hex", toks.At(1))
	require.Equal(t, "convert hex 10 dec", toks.Line())

	toks.Release()
	require.True(t, toks.Released())
	require.Equal(t, 0, toks.Len())
	toks.Release()
	require.True(t, toks.Released())

	for _, line := range []string{"", " ", "\t\r\n", "   \n"} {
		toks, err := Tokenize(line)
		require.NoError(t, err)
		require.Nil(t, toks, "line %q", line)
		require.Equal(t, 0, toks.Len())
	}
}

func TestTokenizeOutOfResources(t *testing.T) {
	_, err := Tokenize(strings.Repeat("a", MaxLineLen+1))
	require.True(t, errors.Is(err, ErrOutOfResources), "unexpected error %v", err)

	_, err = Tokenize(strings.Repeat("a ", MaxTokens+1))
	require.True(t, errors.Is(err, ErrOutOfResources), "unexpected error %v", err)

	toks, err := Tokenize(strings.Repeat("a ", MaxTokens))
	require.NoError(t, err)
	require.Equal(t, MaxTokens, toks.Len())
}

func TestDispatchBlankLine(t *testing.T) {
	g := DefaultGrammar(nil)
	for _, line := range []string{"", "   ", "\t", "\r\n", " \t \n "} {
		action, toks, err := g.Dispatch(line)
		require.NoError(t, err)
		require.Equal(t, ActionQuit, action, "line %q", line)
		require.Nil(t, toks)
	}
}

func TestDispatch(t *testing.T) {
	g := DefaultGrammar(nil)
	tests := []struct {
		line   string
		action Action
		kind   error
	}{
		{"continue", ActionContinue, nil},
		{"cont", ActionContinue, nil},
		{"help", ActionHelp, nil},
		{"h", ActionHelp, nil},
		{"printf", ActionPrintf, nil},
		{"q", ActionQuit, nil},
		{"quit", ActionQuit, nil},
		{"convert hex 10 dec 16", ActionConvert, nil},
		{"conv h ff d 255", ActionConvert, nil},
		{"c", ActionAmbiguous, ErrAmbiguous},
		{"con hex 1 dec 1", ActionAmbiguous, ErrAmbiguous},
		{"conv", ActionIncomplete, ErrIncomplete},
		{"convert hex", ActionIncomplete, ErrIncomplete},
		{"convert hex 10 dec", ActionIncomplete, ErrIncomplete},
		{"help extra", ActionInvalid, ErrInvalid},
		{"quit now", ActionInvalid, ErrInvalid},
		{"voldemort", ActionInvalid, ErrInvalid},
		{"convert oct 10 dec 8", ActionInvalid, ErrInvalid},
		{"convert hex 10 dec 16 17", ActionInvalid, ErrInvalid},
	}
	for _, tc := range tests {
		action, toks, err := g.Dispatch(tc.line)
		assert.Equal(t, tc.action, action, "line %q", tc.line)
		if tc.kind == nil {
			assert.NoError(t, err, "line %q", tc.line)
			if assert.NotNil(t, toks, "line %q", tc.line) {
				assert.False(t, toks.Released())
				assert.Equal(t, strings.Fields(tc.line), toks.List())
				toks.Release()
			}
			continue
		}
		assert.Nil(t, toks, "line %q", tc.line)
		assert.True(t, errors.Is(err, tc.kind), "line %q: unexpected error %v", tc.line, err)
		var derr *DispatchError
		if assert.True(t, errors.As(err, &derr)) {
			assert.Equal(t, tc.kind, derr.Kind)
		}
	}
}

func TestDispatchErrors(t *testing.T) {
	g := DefaultGrammar(nil)

	_, _, err := g.Dispatch("c")
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, []string{"continue", "convert"}, derr.Candidates)
	require.Equal(t, `ambiguous command "c", could be: continue, convert`, err.Error())

	_, _, err = g.Dispatch("help extra")
	require.True(t, errors.As(err, &derr))
	require.Equal(t, "extra", derr.Token)
	require.Equal(t, 1, derr.Pos)
	require.Equal(t, `invalid argument "extra"`, err.Error())

	_, _, err = g.Dispatch("frobnicate")
	require.Equal(t, "command not available: frobnicate", err.Error())

	_, _, err = g.Dispatch("convert")
	require.Equal(t, `incomplete command, expected hex or dec after "convert"`, err.Error())

	action, toks, err := g.Dispatch(strings.Repeat("x", MaxLineLen+1))
	require.Equal(t, ActionInvalid, action)
	require.Nil(t, toks)
	require.True(t, errors.Is(err, ErrOutOfResources))
}

func TestDispatchDefaultGrammar(t *testing.T) {
	action, toks, err := Dispatch("continue")
	require.NoError(t, err)
	require.Equal(t, ActionContinue, action)
	toks.Release()
}

func TestAliases(t *testing.T) {
	// The alias of help collides with a command and there is no unknown
	// command, both are ignored.
	g := DefaultGrammar(map[string][]string{
		"continue": {"c"},
		"convert":  {"cv"},
		"help":     {"quit"},
		"unknown":  {"u"},
		"quit":     {"exit", ""},
	})

	tests := []struct {
		line   string
		action Action
	}{
		{"c", ActionContinue},
		{"cv hex 1 dec 1", ActionConvert},
		{"quit", ActionQuit},
		{"exit", ActionQuit},
		{"ex", ActionQuit},
		{"u", ActionInvalid},
	}
	for _, tc := range tests {
		action, toks, _ := g.Dispatch(tc.line)
		assert.Equal(t, tc.action, action, "line %q", tc.line)
		toks.Release()
	}

	help := g.Help()
	require.Contains(t, help, "continue (alias: c)")
	require.Contains(t, help, "quit (alias: exit)")
	require.NotContains(t, help, "    exit")

	// The default table is not changed by aliases.
	action, _, _ := DefaultGrammar(nil).Dispatch("c")
	require.Equal(t, ActionAmbiguous, action)
}

func TestNewGrammarValidation(t *testing.T) {
	_, err := NewGrammar([]Node{{Keyword: "break", Action: ActionIncomplete}}, nil)
	require.Error(t, err)
	_, err = NewGrammar([]Node{{Keyword: "break", Action: ActionTodo, Children: []Node{{Action: ActionTodo}}}}, nil)
	require.Error(t, err)
	_, err = NewGrammar([]Node{{Keyword: "break", Action: ActionInvalid}}, nil)
	require.Error(t, err)

	g, err := NewGrammar([]Node{{Keyword: "break", Action: ActionIncomplete, Children: []Node{{Arg: "<loc>", Action: ActionTodo}}}}, nil)
	require.NoError(t, err)
	action, toks, err := g.Dispatch("b main.go:10")
	require.NoError(t, err)
	require.Equal(t, ActionTodo, action)
	require.Equal(t, "main.go:10", toks.At(1))
	toks.Release()
}

func TestHelp(t *testing.T) {
	help := DefaultGrammar(nil).Help()
	for _, s := range []string{
		"continue",
		"convert {hex|dec} <n> {hex|dec} <n>",
		"help",
		"printf",
		"quit",
		"Commands can be abbreviated",
	} {
		require.Contains(t, help, s)
	}
}

func TestComplete(t *testing.T) {
	g := DefaultGrammar(nil)
	tests := []struct {
		line string
		want []string
	}{
		{"", []string{"continue", "convert ", "help", "printf", "quit"}},
		{"c", []string{"continue", "convert "}},
		{"conv", []string{"convert "}},
		{"q", []string{"quit"}},
		{"convert ", []string{"convert dec ", "convert hex "}},
		{"conv  h", []string{"conv  hex "}},
		{"convert hex 10 ", []string{"convert hex 10 dec ", "convert hex 10 hex "}},
		{"convert hex ", []string{}},
		{"help ", []string{}},
		{"x", []string{}},
	}
	for _, tc := range tests {
		got := g.Complete(tc.line)
		if len(tc.want) == 0 {
			assert.Empty(t, got, "line %q", tc.line)
			continue
		}
		assert.Equal(t, tc.want, got, "line %q", tc.line)
	}
	// The line can not be resolved past an ambiguous token.
	assert.Empty(t, g.Complete("c hex"))
}

func TestActionString(t *testing.T) {
	require.Equal(t, "continue", ActionContinue.String())
	require.Equal(t, "Action(200)", Action(200).String())
	require.True(t, ActionQuit.Terminal())
	require.True(t, ActionTodo.Terminal())
	require.False(t, ActionIncomplete.Terminal())
	require.False(t, ActionAmbiguous.Terminal())
}

func TestGrammarConcurrentUse(t *testing.T) {
	g := DefaultGrammar(map[string][]string{"continue": {"c"}})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				action, toks, err := g.Dispatch("conv hex 1 dec 1")
				if err != nil || action != ActionConvert {
					t.Errorf("unexpected result %s %v", action, err)
					return
				}
				toks.Release()
				if len(g.Complete("co")) != 2 {
					t.Errorf("unexpected completions")
					return
				}
			}
		}()
	}
	wg.Wait()
}
