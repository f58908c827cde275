// Package lexer provides lexical analysis for condition expressions.
// It tokenizes expressions such as "path(score) >= 90 and not exists(path(x))"
// into a stream of tokens for the parser.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer tokenizes a condition expression.
//
// Lexer instances are NOT thread-safe; create one per expression via New().
type Lexer struct {
	source  string     // Expression text
	start   int        // Start position of current token
	current int        // Current position in source
	tokens  []Token    // Collected tokens
	errors  []LexError // Collected errors
}

// New creates a new Lexer for the given expression
func New(source string) *Lexer {
	return &Lexer{
		source: source,
		tokens: make([]Token, 0),
		errors: make([]LexError, 0),
	}
}

// ScanTokens tokenizes the entire expression and returns tokens and errors
func (l *Lexer) ScanTokens() ([]Token, []LexError) {
	for !l.isAtEnd() {
		l.start = l.current
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_EOF,
		Lexeme: "",
		Pos:    l.current,
	})

	return l.tokens, l.errors
}

// scanToken processes the next token
func (l *Lexer) scanToken() {
	c := l.advance()

	switch {
	case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		// Ignore whitespace
	case c == '(':
		l.addToken(TOKEN_LPAREN)
		if l.expectsPathArgument() {
			l.pathArgument()
		}
	case c == ')':
		l.addToken(TOKEN_RPAREN)
	case c == '[':
		l.addToken(TOKEN_LBRACKET)
	case c == ']':
		l.addToken(TOKEN_RBRACKET)
	case c == ',':
		l.addToken(TOKEN_COMMA)
	case c == '=' || c == '!' || c == '<' || c == '>':
		l.scanOperator(c)
	case c == '\'':
		l.string()
	case c == '-' && l.isDigit(l.peek()):
		l.number()
	case l.isDigit(c):
		l.number()
	case l.isAlpha(c):
		l.identifier()
	default:
		r, width := utf8.DecodeRuneInString(l.source[l.start:])
		l.current = l.start + width
		l.addError(fmt.Sprintf("Unexpected character '%c' at position %d", r, l.start), string(r))
	}
}

// scanOperator handles ==, =, !=, <, <=, >, >=
func (l *Lexer) scanOperator(c byte) {
	switch c {
	case '=':
		if l.match('=') {
			l.addToken(TOKEN_EQ)
		} else {
			l.addToken(TOKEN_EQUALS)
		}
	case '!':
		if l.match('=') {
			l.addToken(TOKEN_NEQ)
		} else {
			l.addError(fmt.Sprintf("Unexpected character '!' at position %d (use 'not' or '!=')", l.start), "!")
		}
	case '<':
		if l.match('=') {
			l.addToken(TOKEN_LTE)
		} else {
			l.addToken(TOKEN_LT)
		}
	case '>':
		if l.match('=') {
			l.addToken(TOKEN_GTE)
		} else {
			l.addToken(TOKEN_GT)
		}
	}
}

// expectsPathArgument reports whether the '(' just added follows path or exists
func (l *Lexer) expectsPathArgument() bool {
	n := len(l.tokens)
	if n < 2 {
		return false
	}
	prev := l.tokens[n-2].Type
	return prev == TOKEN_PATH_KW || prev == TOKEN_EXISTS
}

// pathArgument scans the raw argument of path(...) or exists(...) up to ')'.
// A quoted argument is unescaped; an empty argument emits no token so the
// parser can report the missing reference. exists(path(x)) is left to the
// regular scanner.
func (l *Lexer) pathArgument() {
	for l.peek() == ' ' || l.peek() == '\t' {
		l.advance()
	}
	l.start = l.current
	if l.nestedPathCall() {
		return
	}

	if l.peek() == '\'' {
		l.advance()
		l.string()
		if n := len(l.tokens); n > 0 && l.tokens[n-1].Type == TOKEN_STRING {
			l.tokens[n-1].Type = TOKEN_PATH
		}
		return
	}

	for !l.isAtEnd() && l.peek() != ')' {
		l.advance()
	}
	if l.isAtEnd() {
		l.addError(fmt.Sprintf("Unterminated path reference at position %d", l.start), l.source[l.start:])
		return
	}

	raw := strings.TrimSpace(l.source[l.start:l.current])
	if raw == "" {
		return
	}
	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_PATH,
		Lexeme:  raw,
		Literal: raw,
		Pos:     l.start,
	})
}

// nestedPathCall reports whether an exists( argument is itself a path(...) call
func (l *Lexer) nestedPathCall() bool {
	if l.tokens[len(l.tokens)-2].Type != TOKEN_EXISTS {
		return false
	}
	rest := l.source[l.current:]
	if !strings.HasPrefix(rest, "path") {
		return false
	}
	rest = strings.TrimLeft(rest[len("path"):], " \t")
	return strings.HasPrefix(rest, "(")
}

// string handles single-quoted string literals with \' \\ \n \t escapes
func (l *Lexer) string() {
	startPos := l.start
	value := strings.Builder{}

	for !l.isAtEnd() && l.peek() != '\'' {
		if l.peek() == '\\' {
			l.advance()
			if l.isAtEnd() {
				break
			}
			escaped := l.advance()
			switch escaped {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case '\\':
				value.WriteByte('\\')
			case '\'':
				value.WriteByte('\'')
			default:
				// Unknown escape sequence - keep as-is
				value.WriteByte('\\')
				value.WriteByte(escaped)
			}
			continue
		}
		value.WriteByte(l.advance())
	}

	if l.isAtEnd() {
		l.addError(fmt.Sprintf("Unterminated string literal at position %d", startPos), l.source[startPos:])
		return
	}

	// Consume closing quote
	l.advance()

	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_STRING,
		Lexeme:  l.source[startPos:l.current],
		Literal: value.String(),
		Pos:     startPos,
	})
}

// number handles integer and decimal literals. Anything that runs on into
// further dots, digits or letters (1..2, 1., 1.2.3, 1e5) is malformed.
func (l *Lexer) number() {
	for l.isDigit(l.peek()) {
		l.advance()
	}

	malformed := false
	if l.peek() == '.' {
		l.advance()
		if !l.isDigit(l.peek()) {
			malformed = true
		}
		for l.isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == '.' || l.isAlpha(l.peek()) {
		malformed = true
	}

	if malformed {
		for l.peek() == '.' || l.isAlphaNumeric(l.peek()) {
			l.advance()
		}
		lexeme := l.source[l.start:l.current]
		l.addError(fmt.Sprintf("Malformed number literal '%s' at position %d", lexeme, l.start), lexeme)
		return
	}

	lexeme := l.source[l.start:l.current]
	value, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		l.addError(fmt.Sprintf("Malformed number literal '%s' at position %d", lexeme, l.start), lexeme)
		return
	}
	l.addTokenWithLiteral(TOKEN_NUMBER, value)
}

// identifier handles identifiers and keywords
func (l *Lexer) identifier() {
	for l.isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[l.start:l.current]
	tokenType, isKeyword := Keywords[text]
	if !isKeyword {
		tokenType = TOKEN_IDENTIFIER
	}

	switch tokenType {
	case TOKEN_TRUE:
		l.addTokenWithLiteral(tokenType, true)
	case TOKEN_FALSE:
		l.addTokenWithLiteral(tokenType, false)
	default:
		l.addToken(tokenType)
	}
}

// Helper methods

// isAtEnd checks if we've reached the end of the source
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current character
func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.current]
	l.current++
	return c
}

// match checks if the current character matches expected and consumes it
func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.current] != expected {
		return false
	}
	l.current++
	return true
}

// peek returns the current character without consuming it
func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

// isDigit checks if a character is a digit
func (l *Lexer) isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isAlpha checks if a character is alphabetic or underscore
func (l *Lexer) isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// isAlphaNumeric checks if a character is alphanumeric or underscore
func (l *Lexer) isAlphaNumeric(c byte) bool {
	return l.isAlpha(c) || l.isDigit(c)
}

// addToken adds a token with the current lexeme
func (l *Lexer) addToken(tokenType TokenType) {
	l.addTokenWithLiteral(tokenType, nil)
}

// addTokenWithLiteral adds a token with a literal value
func (l *Lexer) addTokenWithLiteral(tokenType TokenType, literal interface{}) {
	l.tokens = append(l.tokens, Token{
		Type:    tokenType,
		Lexeme:  l.source[l.start:l.current],
		Literal: literal,
		Pos:     l.start,
	})
}

// addError records a lexical error
func (l *Lexer) addError(message, lexeme string) {
	l.errors = append(l.errors, LexError{
		Message: message,
		Pos:     l.start,
		Lexeme:  lexeme,
	})
}
