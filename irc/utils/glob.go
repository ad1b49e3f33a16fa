// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package utils

import (
	"bytes"
	"regexp"
	"regexp/syntax"
)

// CompileGlob compiles an IRC-style mask (* and ? wildcards) to a regexp
// anchored at both ends.
func CompileGlob(glob string) (result *regexp.Regexp, err error) {
	var buf bytes.Buffer
	buf.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			buf.WriteString("(.*)")
		case '?':
			buf.WriteString("(.)")
		case 0xFFFD:
			return nil, &syntax.Error{Code: syntax.ErrInvalidUTF8, Expr: glob}
		default:
			buf.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	buf.WriteByte('$')
	return regexp.Compile(buf.String())
}

// GlobMatch reports whether subject matches the IRC-style mask. Masks that
// fail to compile match nothing.
func GlobMatch(mask, subject string) bool {
	re, err := CompileGlob(Casefold(mask))
	if err != nil {
		return false
	}
	return re.MatchString(Casefold(subject))
}
