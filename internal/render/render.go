// Package render turns token fragments back into canonical source text.
//
// Output depends only on the token sequence: whitespace, line breaks and
// comments in the original source never reach it, so two spellings of the
// same syntax render to the same string.
package render

import (
	"strings"
	"unicode"

	"github.com/jward/apicheck/internal/syntax"
)

// Printer renders fragments. The zero value is ready to use.
type Printer struct{}

// Render joins the fragment's tokens with canonical spacing.
func (Printer) Render(f syntax.Fragment) string {
	toks := dropTrailingCommas(f)
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 && spaceBetween(toks[i-1], tok) {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	return b.String()
}

// RenderAll renders each fragment in order.
func (p Printer) RenderAll(fs []syntax.Fragment) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, p.Render(f))
	}
	return out
}

// Tokens after which no space is written.
var glueAfter = map[string]bool{
	"(": true, "[": true, "<": true, "::": true, "&": true, "&&": true,
	"*": true, "#": true, "!": true, "?": true, "$": true, ".": true,
	"'": true, "-": true,
}

// Tokens before which no space is written.
var glueBefore = map[string]bool{
	",": true, ";": true, ")": true, "]": true, ">": true, "::": true,
	".": true, ":": true,
}

// Keywords that keep a space before a following "(" or "<".
var spacedKeywords = map[string]bool{
	"mut": true, "const": true, "dyn": true, "as": true, "where": true,
	"in": true, "ref": true, "unsafe": true, "extern": true, "static": true,
	"move": true, "return": true,
}

func spaceBetween(prev, cur string) bool {
	if glueAfter[prev] || glueBefore[cur] {
		return false
	}
	switch cur {
	case "(", "<":
		// Calls, tuple-like paths and generic arguments attach to the
		// preceding name: Vec<u8>, fn(u32), derive(Debug).
		if isWord(prev) && !spacedKeywords[prev] {
			return false
		}
		if prev == ">" || prev == ")" || prev == "]" {
			return cur == "<"
		}
	case "[", "!":
		if isWord(prev) && !spacedKeywords[prev] {
			return false
		}
	}
	return true
}

func isWord(tok string) bool {
	if tok == "" {
		return false
	}
	r := []rune(tok)[0]
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// dropTrailingCommas removes commas that directly precede a closing ">",
// "]" or "}" or end the fragment. Commas before ")" are kept since they
// distinguish one-element tuples, except in attributes, whose token trees
// hold no types.
func dropTrailingCommas(f syntax.Fragment) []string {
	attr := len(f) > 0 && f[0] == "#"
	out := make([]string, 0, len(f))
	for i, tok := range f {
		if tok == "," {
			if i == len(f)-1 {
				continue
			}
			switch f[i+1] {
			case ">", "]", "}":
				continue
			case ")":
				if attr {
					continue
				}
			}
		}
		out = append(out, tok)
	}
	return out
}
