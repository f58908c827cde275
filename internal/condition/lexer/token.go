package lexer

import "fmt"

// TokenType represents the type of a token in a condition expression
type TokenType int

const (
	// TOKEN_EOF marks the end of the token stream.
	TOKEN_EOF TokenType = iota
	// TOKEN_ERROR represents a lexical error encountered during scanning.
	TOKEN_ERROR

	// Literals
	TOKEN_IDENTIFIER // unrecognized words, reported by the parser
	TOKEN_NUMBER     // 42, -3.5
	TOKEN_STRING     // 'text'
	TOKEN_PATH       // raw argument of path(...) / exists(...)
	TOKEN_TRUE       // true
	TOKEN_FALSE      // false
	TOKEN_NULL       // null

	// Keywords
	TOKEN_AND      // and
	TOKEN_OR       // or
	TOKEN_NOT      // not
	TOKEN_IN       // in
	TOKEN_INCLUDES // includes
	TOKEN_EXISTS   // exists
	TOKEN_PATH_KW  // path

	// Comparison operators; word and symbol spellings share a type
	TOKEN_EQ  // eq, ==
	TOKEN_NEQ // ne, !=
	TOKEN_GT  // gt, >
	TOKEN_GTE // gte, >=
	TOKEN_LT  // lt, <
	TOKEN_LTE // lte, <=

	// TOKEN_EQUALS is a lone '=', only ever reported as a mistake
	TOKEN_EQUALS

	// Delimiters
	TOKEN_LPAREN   // (
	TOKEN_RPAREN   // )
	TOKEN_LBRACKET // [
	TOKEN_RBRACKET // ]
	TOKEN_COMMA    // ,
)

// TokenTypeNames maps token types to their string representations
var TokenTypeNames = map[TokenType]string{
	TOKEN_EOF:        "EOF",
	TOKEN_ERROR:      "ERROR",
	TOKEN_IDENTIFIER: "IDENTIFIER",
	TOKEN_NUMBER:     "NUMBER",
	TOKEN_STRING:     "STRING",
	TOKEN_PATH:       "PATH",
	TOKEN_TRUE:       "TRUE",
	TOKEN_FALSE:      "FALSE",
	TOKEN_NULL:       "NULL",
	TOKEN_AND:        "AND",
	TOKEN_OR:         "OR",
	TOKEN_NOT:        "NOT",
	TOKEN_IN:         "IN",
	TOKEN_INCLUDES:   "INCLUDES",
	TOKEN_EXISTS:     "EXISTS",
	TOKEN_PATH_KW:    "PATH_KW",
	TOKEN_EQ:         "EQ",
	TOKEN_NEQ:        "NEQ",
	TOKEN_GT:         "GT",
	TOKEN_GTE:        "GTE",
	TOKEN_LT:         "LT",
	TOKEN_LTE:        "LTE",
	TOKEN_EQUALS:     "EQUALS",
	TOKEN_LPAREN:     "LPAREN",
	TOKEN_RPAREN:     "RPAREN",
	TOKEN_LBRACKET:   "LBRACKET",
	TOKEN_RBRACKET:   "RBRACKET",
	TOKEN_COMMA:      "COMMA",
}

// String returns the string representation of a TokenType
func (t TokenType) String() string {
	if name, ok := TokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// IsComparison reports whether the token is a comparison operator
func (t TokenType) IsComparison() bool {
	switch t {
	case TOKEN_EQ, TOKEN_NEQ, TOKEN_GT, TOKEN_GTE, TOKEN_LT, TOKEN_LTE, TOKEN_IN, TOKEN_INCLUDES:
		return true
	}
	return false
}

// Token represents a single lexical token
type Token struct {
	Type    TokenType   // The type of the token
	Lexeme  string      // The raw text of the token
	Literal interface{} // The parsed value (for literals and paths)
	Pos     int         // 0-based byte offset in the expression
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s '%s' (%v) at %d", t.Type.String(), t.Lexeme, t.Literal, t.Pos)
	}
	return fmt.Sprintf("%s '%s' at %d", t.Type.String(), t.Lexeme, t.Pos)
}

// Keywords maps reserved words to their token types
var Keywords = map[string]TokenType{
	"and":      TOKEN_AND,
	"or":       TOKEN_OR,
	"not":      TOKEN_NOT,
	"in":       TOKEN_IN,
	"includes": TOKEN_INCLUDES,
	"exists":   TOKEN_EXISTS,
	"path":     TOKEN_PATH_KW,

	"eq":  TOKEN_EQ,
	"ne":  TOKEN_NEQ,
	"gt":  TOKEN_GT,
	"gte": TOKEN_GTE,
	"lt":  TOKEN_LT,
	"lte": TOKEN_LTE,

	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
	"null":  TOKEN_NULL,
}

// LexError represents an error encountered during lexical analysis
type LexError struct {
	Message string // Full message, including the position
	Pos     int    // Offset where the error occurred
	Lexeme  string // The problematic text
}

// Error implements the error interface
func (e LexError) Error() string {
	return e.Message
}
