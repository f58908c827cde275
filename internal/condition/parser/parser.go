package parser

import (
	"fmt"

	"github.com/conduit-lang/reshape/internal/condition/ast"
	"github.com/conduit-lang/reshape/internal/condition/lexer"
	"github.com/conduit-lang/reshape/internal/valuepath"
)

// Expression grammar (from lowest to highest precedence):
// expression → orExpr
// orExpr     → andExpr ( "or" andExpr )*
// andExpr    → notExpr ( "and" notExpr )*
// notExpr    → "not" notExpr | primary
// primary    → "(" expression ")" | "exists" "(" PATH ")" | "true" | "false" | compare
// compare    → operand op operand
// operand    → "path" "(" PATH ")" | NUMBER | STRING | "true" | "false" | "null"
//            | "[" operand ( "," operand )* "]"

// Parser transforms a stream of tokens into an expression tree
type Parser struct {
	tokens  []lexer.Token
	current int
}

// New creates a new parser for the given token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses an expression, returning the first error found
func Parse(source string) (ast.Node, error) {
	tokens, lexErrors := lexer.New(source).ScanTokens()
	if len(lexErrors) > 0 {
		return nil, lexErrors[0]
	}
	node, perr := New(tokens).Parse()
	if perr != nil {
		return nil, perr
	}
	return node, nil
}

// Parse parses the token stream
func (p *Parser) Parse() (ast.Node, *ParseError) {
	if p.isAtEnd() {
		return nil, NewParseError("Expression is empty", p.peek())
	}

	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if !p.isAtEnd() {
		tok := p.peek()
		return nil, NewParseError(fmt.Sprintf("Unexpected token '%s' at position %d", tok.Lexeme, tok.Pos), tok)
	}
	return expr, nil
}

// parseOr handles "or" chains
func (p *Parser) parseOr() (ast.Node, *ParseError) {
	expr, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.match(lexer.TOKEN_OR) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		expr = &ast.LogicalExpr{Op: "or", Left: expr, Right: right}
	}
	return expr, nil
}

// parseAnd handles "and" chains
func (p *Parser) parseAnd() (ast.Node, *ParseError) {
	expr, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.match(lexer.TOKEN_AND) {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		expr = &ast.LogicalExpr{Op: "and", Left: expr, Right: right}
	}
	return expr, nil
}

// parseNot handles prefix negation
func (p *Parser) parseNot() (ast.Node, *ParseError) {
	if p.match(lexer.TOKEN_NOT) {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.NotExpr{Operand: operand}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles grouping, exists(), bare booleans and comparisons
func (p *Parser) parsePrimary() (ast.Node, *ParseError) {
	switch p.peek().Type {
	case lexer.TOKEN_LPAREN:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	case lexer.TOKEN_EXISTS:
		p.advance()
		path, err := p.parseExistsCall()
		if err != nil {
			return nil, err
		}
		return &ast.ExistsExpr{Path: path}, nil

	case lexer.TOKEN_TRUE, lexer.TOKEN_FALSE:
		if !p.peekNext().Type.IsComparison() && !p.isOperatorMistake(p.peekNext()) {
			tok := p.advance()
			return &ast.BoolLiteral{Value: tok.Type == lexer.TOKEN_TRUE}, nil
		}
	}

	return p.parseCompare()
}

// parseCompare handles operand op operand
func (p *Parser) parseCompare() (ast.Node, *ParseError) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if op == ast.OpIn {
		if _, isArray := right.(*ast.ArrayLiteral); !isArray {
			return nil, NewParseError("Right operand of 'in' must be an array literal", p.previous())
		}
	}

	return &ast.CompareExpr{Op: op, Left: left, Right: right}, nil
}

// parseOperator consumes a comparison operator, diagnosing common mistakes
func (p *Parser) parseOperator() (ast.CompareOp, *ParseError) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TOKEN_EQ:
		p.advance()
		return ast.OpEq, nil
	case lexer.TOKEN_NEQ:
		p.advance()
		return ast.OpNe, nil
	case lexer.TOKEN_GT:
		p.advance()
		return ast.OpGt, nil
	case lexer.TOKEN_GTE:
		p.advance()
		return ast.OpGte, nil
	case lexer.TOKEN_LT:
		p.advance()
		return ast.OpLt, nil
	case lexer.TOKEN_LTE:
		p.advance()
		return ast.OpLte, nil
	case lexer.TOKEN_IN:
		p.advance()
		return ast.OpIn, nil
	case lexer.TOKEN_INCLUDES:
		p.advance()
		return ast.OpIncludes, nil
	}

	if p.isOperatorMistake(tok) {
		return "", NewParseError(fmt.Sprintf("Unknown operator '%s'. Did you mean 'eq' or '=='?", tok.Lexeme), tok)
	}
	return "", NewParseError(fmt.Sprintf("Expected comparison operator after operand at position %d", tok.Pos), tok)
}

// isOperatorMistake reports tokens authors commonly write instead of eq
func (p *Parser) isOperatorMistake(tok lexer.Token) bool {
	if tok.Type == lexer.TOKEN_EQUALS {
		return true
	}
	return tok.Type == lexer.TOKEN_IDENTIFIER && (tok.Lexeme == "is" || tok.Lexeme == "equals")
}

// parseOperand handles path(...), literals and array literals
func (p *Parser) parseOperand() (ast.Operand, *ParseError) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TOKEN_PATH_KW:
		p.advance()
		path, err := p.parsePathCall("path")
		if err != nil {
			return nil, err
		}
		return &ast.PathRef{Path: path}, nil
	case lexer.TOKEN_NUMBER, lexer.TOKEN_STRING, lexer.TOKEN_TRUE, lexer.TOKEN_FALSE:
		p.advance()
		return &ast.Literal{Value: tok.Literal}, nil
	case lexer.TOKEN_NULL:
		p.advance()
		return &ast.Literal{Value: nil}, nil
	case lexer.TOKEN_LBRACKET:
		return p.parseArray()
	case lexer.TOKEN_IDENTIFIER:
		return nil, NewParseError(fmt.Sprintf("Unknown identifier '%s' at position %d; use path(%s) to reference input fields", tok.Lexeme, tok.Pos, tok.Lexeme), tok)
	}
	return nil, NewParseError(fmt.Sprintf("Expected operand at position %d", tok.Pos), tok)
}

// parseArray handles [operand, ...]
func (p *Parser) parseArray() (ast.Operand, *ParseError) {
	p.advance() // [
	arr := &ast.ArrayLiteral{Items: make([]ast.Operand, 0)}

	if p.match(lexer.TOKEN_RBRACKET) {
		return arr, nil
	}

	for {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)

		if p.match(lexer.TOKEN_COMMA) {
			continue
		}
		if p.match(lexer.TOKEN_RBRACKET) {
			return arr, nil
		}
		tok := p.peek()
		return nil, NewParseError(fmt.Sprintf("Expected ',' or ']' at position %d", tok.Pos), tok)
	}
}

// parseExistsCall handles exists(PATH) and exists(path(PATH))
func (p *Parser) parseExistsCall() (valuepath.Path, *ParseError) {
	if !p.check(lexer.TOKEN_LPAREN) || p.peekNext().Type != lexer.TOKEN_PATH_KW {
		return p.parsePathCall("exists")
	}
	p.advance() // (
	p.advance() // path
	path, err := p.parsePathCall("path")
	if err != nil {
		return valuepath.Path{}, err
	}
	if _, err := p.consume(lexer.TOKEN_RPAREN); err != nil {
		return valuepath.Path{}, err
	}
	return path, nil
}

// parsePathCall handles "(" PATH ")" after path/exists
func (p *Parser) parsePathCall(name string) (valuepath.Path, *ParseError) {
	if _, err := p.consume(lexer.TOKEN_LPAREN); err != nil {
		return valuepath.Path{}, err
	}

	tok := p.peek()
	if tok.Type != lexer.TOKEN_PATH {
		return valuepath.Path{}, NewParseError(fmt.Sprintf("%s() requires a path reference", name), tok)
	}
	p.advance()

	raw, _ := tok.Literal.(string)
	path, err := valuepath.Parse(raw)
	if err != nil {
		return valuepath.Path{}, NewParseError(fmt.Sprintf("Invalid path '%s' at position %d: %v", raw, tok.Pos, err), tok)
	}

	if _, err := p.consume(lexer.TOKEN_RPAREN); err != nil {
		return valuepath.Path{}, err
	}
	return path, nil
}

// Helper methods

func (p *Parser) consume(tokenType lexer.TokenType) (lexer.Token, *ParseError) {
	if p.check(tokenType) {
		return p.advance(), nil
	}
	tok := p.peek()
	want := map[lexer.TokenType]string{
		lexer.TOKEN_LPAREN: "(",
		lexer.TOKEN_RPAREN: ")",
	}[tokenType]
	return tok, NewParseError(fmt.Sprintf("Expected '%s' at position %d", want, tok.Pos), tok)
}

func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(tokenType lexer.TokenType) bool {
	return p.peek().Type == tokenType
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TOKEN_EOF
}

func (p *Parser) peek() lexer.Token {
	if p.current >= len(p.tokens) {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current]
}

func (p *Parser) peekNext() lexer.Token {
	if p.current+1 >= len(p.tokens) {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current+1]
}

func (p *Parser) previous() lexer.Token {
	if p.current == 0 {
		return p.peek()
	}
	return p.tokens[p.current-1]
}
