// Package lexer provides whitespace-tolerant scanning primitives shared by
// the Cypher parser: identifier, number and string-literal recognizers,
// and comment stripping. Grounded on the scan-head helpers in
// trigo/pkg/sparql/parser.Parser (peek/advance/skipWhitespace/readWhile/
// matchKeyword), generalized into a standalone Scanner so the clause and
// expression parsers (internal/cypher/parser) can share one scan head
// instead of each re-implementing it.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scanner is a cursor into a query string. It never copies the input; every
// token it returns is a sub-slice of Input, matching the "AST never outlives
// the input" contract from spec.md §9.
type Scanner struct {
	Input string
	Pos   int
}

func New(input string) *Scanner {
	return &Scanner{Input: input}
}

func (s *Scanner) Eof() bool {
	return s.Pos >= len(s.Input)
}

func (s *Scanner) Peek() byte {
	if s.Eof() {
		return 0
	}
	return s.Input[s.Pos]
}

func (s *Scanner) PeekAt(offset int) byte {
	i := s.Pos + offset
	if i < 0 || i >= len(s.Input) {
		return 0
	}
	return s.Input[i]
}

func (s *Scanner) Advance() {
	if !s.Eof() {
		s.Pos++
	}
}

// SkipWhitespaceAndComments consumes runs of whitespace, `//` line comments
// and `/* */` block comments, per spec.md §6.1.
func (s *Scanner) SkipWhitespaceAndComments() {
	for {
		start := s.Pos
		for !s.Eof() && isSpace(s.Peek()) {
			s.Advance()
		}
		if s.Peek() == '/' && s.PeekAt(1) == '/' {
			for !s.Eof() && s.Peek() != '\n' {
				s.Advance()
			}
			continue
		}
		if s.Peek() == '/' && s.PeekAt(1) == '*' {
			s.Advance()
			s.Advance()
			for !s.Eof() && !(s.Peek() == '*' && s.PeekAt(1) == '/') {
				s.Advance()
			}
			if !s.Eof() {
				s.Advance()
				s.Advance()
			}
			continue
		}
		if s.Pos == start {
			return
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= utf8.RuneSelf
}

func isIdentContinue(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

// ReadWhile consumes and returns a run of bytes satisfying predicate.
func (s *Scanner) ReadWhile(predicate func(byte) bool) string {
	start := s.Pos
	for !s.Eof() && predicate(s.Peek()) {
		s.Advance()
	}
	return s.Input[start:s.Pos]
}

// MatchKeyword consumes a case-insensitive keyword if it appears at the
// current position and is not itself a prefix of a longer identifier (so
// "OR" never matches the start of "ORDER"), restoring position on failure.
func (s *Scanner) MatchKeyword(keyword string) bool {
	s.SkipWhitespaceAndComments()
	if s.Pos+len(keyword) > len(s.Input) {
		return false
	}
	candidate := s.Input[s.Pos : s.Pos+len(keyword)]
	if !strings.EqualFold(candidate, keyword) {
		return false
	}
	next := s.PeekAt(len(keyword))
	if isIdentContinue(next) {
		return false
	}
	s.Pos += len(keyword)
	return true
}

// PeekKeyword reports MatchKeyword's result without consuming input.
func (s *Scanner) PeekKeyword(keyword string) bool {
	save := s.Pos
	ok := s.MatchKeyword(keyword)
	s.Pos = save
	return ok
}

// MatchLiteral consumes an exact (case-sensitive) literal, e.g. punctuation.
func (s *Scanner) MatchLiteral(lit string) bool {
	s.SkipWhitespaceAndComments()
	if s.Pos+len(lit) > len(s.Input) {
		return false
	}
	if s.Input[s.Pos:s.Pos+len(lit)] != lit {
		return false
	}
	s.Pos += len(lit)
	return true
}

// PeekLiteral reports MatchLiteral's result without consuming input.
func (s *Scanner) PeekLiteral(lit string) bool {
	save := s.Pos
	ok := s.MatchLiteral(lit)
	s.Pos = save
	return ok
}

// Identifier scans a Cypher identifier: `[A-Za-z_][A-Za-z0-9_]*`, or a
// backtick-quoted identifier allowing arbitrary characters.
func (s *Scanner) Identifier() (string, bool) {
	s.SkipWhitespaceAndComments()
	if s.Peek() == '`' {
		start := s.Pos
		s.Advance()
		for !s.Eof() && s.Peek() != '`' {
			s.Advance()
		}
		if s.Eof() {
			s.Pos = start
			return "", false
		}
		s.Advance()
		return s.Input[start+1 : s.Pos-1], true
	}
	if !isIdentStart(s.Peek()) {
		return "", false
	}
	start := s.Pos
	s.ReadWhile(isIdentContinue)
	return s.Input[start:s.Pos], true
}

// DottedIdentifier scans `ident(.ident)*`, used for procedure and function
// names (`db.labels`, `ch.arrayFilter`).
func (s *Scanner) DottedIdentifier() (string, bool) {
	s.SkipWhitespaceAndComments()
	start := s.Pos
	first, ok := s.Identifier()
	if !ok {
		return "", false
	}
	_ = first
	for s.PeekLiteral(".") {
		save := s.Pos
		s.Advance()
		if _, ok := s.Identifier(); !ok {
			s.Pos = save
			break
		}
	}
	return s.Input[start:s.Pos], true
}

// Number scans an integer or float literal, returning the lexeme and
// whether it contained a `.` or exponent (i.e. is a float).
func (s *Scanner) Number() (lexeme string, isFloat bool, ok bool) {
	s.SkipWhitespaceAndComments()
	start := s.Pos
	if !isDigit(s.Peek()) {
		return "", false, false
	}
	s.ReadWhile(isDigit)
	if s.Peek() == '.' && isDigit(s.PeekAt(1)) {
		isFloat = true
		s.Advance()
		s.ReadWhile(isDigit)
	}
	if s.Peek() == 'e' || s.Peek() == 'E' {
		save := s.Pos
		s.Advance()
		if s.Peek() == '+' || s.Peek() == '-' {
			s.Advance()
		}
		if isDigit(s.Peek()) {
			isFloat = true
			s.ReadWhile(isDigit)
		} else {
			s.Pos = save
		}
	}
	return s.Input[start:s.Pos], isFloat, true
}

// StringLiteral scans a single- or double-quoted string, unescaping the
// common backslash escapes, and returns the decoded value.
func (s *Scanner) StringLiteral() (string, bool) {
	s.SkipWhitespaceAndComments()
	quote := s.Peek()
	if quote != '\'' && quote != '"' {
		return "", false
	}
	s.Advance()
	var b strings.Builder
	for !s.Eof() && s.Peek() != quote {
		c := s.Peek()
		if c == '\\' && !s.Eof() {
			s.Advance()
			b.WriteByte(unescape(s.Peek()))
			s.Advance()
			continue
		}
		b.WriteByte(c)
		s.Advance()
	}
	if s.Eof() {
		return "", false
	}
	s.Advance() // closing quote
	return b.String(), true
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

// IsUpper reports whether r is an uppercase letter, used by callers that
// want to detect keyword-looking identifiers without a full keyword table.
func IsUpper(r rune) bool {
	return unicode.IsUpper(r)
}
