package command

import "strings"

const (
	// MaxLineLen is the longest line accepted by Tokenize.
	MaxLineLen = 4096
	// MaxTokens is the largest number of tokens accepted by Tokenize.
	MaxTokens = 256
)

// Tokens is the tokenized form of one input line. All tokens are slices of
// a private copy of the line, which is dropped by Release.
type Tokens struct {
	buf      string
	list     []string
	released bool
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// Tokenize splits line on spaces, tabs, carriage returns and newlines.
// A blank line returns nil Tokens and no error.
func Tokenize(line string) (*Tokens, error) {
	if len(line) > MaxLineLen {
		return nil, &DispatchError{Kind: ErrOutOfResources, Pos: -1, Msg: "line too long"}
	}
	if strings.IndexFunc(line, func(r rune) bool { return !isSeparator(r) }) < 0 {
		return nil, nil
	}
	n := 0
	inToken := false
	for _, r := range line {
		sep := isSeparator(r)
		if !sep && !inToken {
			n++
		}
		inToken = !sep
	}
	if n > MaxTokens {
		return nil, &DispatchError{Kind: ErrOutOfResources, Pos: -1, Msg: "too many arguments"}
	}
	buf := string([]byte(line))
	list := make([]string, 0, n)
	list = append(list, strings.FieldsFunc(buf, isSeparator)...)
	return &Tokens{buf: buf, list: list}, nil
}

// Len returns the number of tokens, zero after Release.
func (t *Tokens) Len() int {
	if t == nil {
		return 0
	}
	return len(t.list)
}

// At returns the i-th token.
func (t *Tokens) At(i int) string {
	return t.list[i]
}

// List returns all tokens. The returned slice must not be used after
// Release.
func (t *Tokens) List() []string {
	if t == nil {
		return nil
	}
	return t.list
}

// Line returns the tokens joined by single spaces.
func (t *Tokens) Line() string {
	return strings.Join(t.List(), " ")
}

// Release drops the line copy and the token list. Calling Release more than
// once has no effect.
func (t *Tokens) Release() {
	if t == nil || t.released {
		return
	}
	t.buf = ""
	t.list = nil
	t.released = true
}

// Released returns true if Release has been called.
func (t *Tokens) Released() bool {
	return t != nil && t.released
}
