// Package parser implements the condition expression parser, transforming
// token streams into expression trees by recursive descent. Unlike the rule
// normalizer it stops at the first error: an expression is either usable or
// reported as a whole.
package parser

import (
	"github.com/conduit-lang/reshape/internal/condition/lexer"
)

// ParseError represents an error encountered during parsing
type ParseError struct {
	Message string
	Pos     int
	Token   lexer.Token
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return e.Message
}

// NewParseError creates a new parse error at the token's position
func NewParseError(message string, token lexer.Token) *ParseError {
	return &ParseError{
		Message: message,
		Pos:     token.Pos,
		Token:   token,
	}
}
