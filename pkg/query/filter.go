package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/queuebridge/dbcore/pkg/metadata"
)

// ========== Лексер фильтра ==========

// Клиентский фильтр использует словесные операторы:
//   LastChangedBy eq 'Stefan' and Age ge 18
//   Status in ('active', 'pending') or Deleted eq null

type filterTokenType int

const (
	tokEOF filterTokenType = iota
	tokIllegal

	tokIdent     // имена полей
	tokString    // 'строка'
	tokBadString // 'строка без закрывающей кавычки
	tokNumber    // 123, 123.45, -5

	tokEq  // eq
	tokNe  // ne
	tokGt  // gt
	tokGe  // ge
	tokLt  // lt
	tokLe  // le
	tokAnd // and
	tokOr  // or
	tokNot // not
	tokIn  // in

	tokNull  // null
	tokTrue  // true
	tokFalse // false

	tokLParen // (
	tokRParen // )
	tokComma  // ,
)

type filterToken struct {
	typ     filterTokenType
	literal string
	pos     int
}

type filterLexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func newFilterLexer(input string) *filterLexer {
	l := &filterLexer{input: input}
	l.readChar()
	return l
}

// nextToken возвращает следующий токен
func (l *filterLexer) nextToken() filterToken {
	var tok filterToken

	l.skipWhitespace()
	tok.pos = l.pos

	switch l.ch {
	case 0:
		tok.typ = tokEOF
	case '(':
		tok.typ = tokLParen
		tok.literal = "("
	case ')':
		tok.typ = tokRParen
		tok.literal = ")"
	case ',':
		tok.typ = tokComma
		tok.literal = ","
	case '\'':
		literal, terminated := l.readString()
		tok.typ = tokString
		if !terminated {
			tok.typ = tokBadString
		}
		tok.literal = literal
		return tok // readString уже продвинулся
	case '-':
		if isFilterDigit(l.peekChar()) {
			tok.typ = tokNumber
			tok.literal = l.readNumber()
			return tok
		}
		tok.typ = tokIllegal
		tok.literal = string(l.ch)
	default:
		if isFilterLetter(l.ch) {
			tok.literal = l.readIdentifier()
			tok.typ = lookupFilterKeyword(tok.literal)
			return tok
		}
		if isFilterDigit(l.ch) {
			tok.typ = tokNumber
			tok.literal = l.readNumber()
			return tok
		}
		tok.typ = tokIllegal
		tok.literal = string(l.ch)
	}

	l.readChar()
	return tok
}

func (l *filterLexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *filterLexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *filterLexer) readIdentifier() string {
	position := l.pos
	for isFilterLetter(l.ch) || isFilterDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[position:l.pos]
}

func (l *filterLexer) readNumber() string {
	position := l.pos
	hasDecimal := false

	// Минус только в начале
	if l.ch == '-' {
		l.readChar()
	}
	for isFilterDigit(l.ch) || (l.ch == '.' && !hasDecimal) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	return l.input[position:l.pos]
}

// readString читает строку в одинарных кавычках
// Удвоенная кавычка ('') экранирует кавычку внутри строки
// Второй результат false - конец входа без закрывающей кавычки
func (l *filterLexer) readString() (string, bool) {
	l.readChar() // пропускаем открывающую кавычку
	var sb strings.Builder

	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // закрывающая кавычка
			return sb.String(), true
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return sb.String(), false
}

func (l *filterLexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isFilterLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isFilterDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func lookupFilterKeyword(ident string) filterTokenType {
	switch strings.ToLower(ident) {
	case "eq":
		return tokEq
	case "ne":
		return tokNe
	case "gt":
		return tokGt
	case "ge":
		return tokGe
	case "lt":
		return tokLt
	case "le":
		return tokLe
	case "and":
		return tokAnd
	case "or":
		return tokOr
	case "not":
		return tokNot
	case "in":
		return tokIn
	case "null":
		return tokNull
	case "true":
		return tokTrue
	case "false":
		return tokFalse
	}
	return tokIdent
}

// ========== AST фильтра ==========

// filterExpr - узел дерева фильтра
type filterExpr interface {
	filterNode()
}

// comparisonExpr - сравнение поля со значением (value nil = NULL)
type comparisonExpr struct {
	Field string
	Op    filterTokenType // tokEq..tokLe
	Value any
}

// logicalExpr - AND/OR двух выражений
type logicalExpr struct {
	Left  filterExpr
	Op    filterTokenType // tokAnd / tokOr
	Right filterExpr
}

// notExpr - отрицание
type notExpr struct {
	Expr filterExpr
}

// inExpr - вхождение поля в список значений
type inExpr struct {
	Field  string
	Values []any
}

func (comparisonExpr) filterNode() {}
func (logicalExpr) filterNode()    {}
func (notExpr) filterNode()        {}
func (inExpr) filterNode()         {}

// ========== Парсер фильтра ==========

type filterParser struct {
	lexer     *filterLexer
	curToken  filterToken
	peekToken filterToken
}

// ParseFilter разбирает текст фильтра в AST
func ParseFilter(input string) (filterExpr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty filter expression")
	}

	p := &filterParser{lexer: newFilterLexer(input)}
	p.nextToken()
	p.nextToken()

	expr, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if p.curToken.typ != tokEOF {
		return nil, fmt.Errorf("unexpected token %q at pos %d", p.curToken.literal, p.curToken.pos)
	}
	return expr, nil
}

func (p *filterParser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.nextToken()
}

// parseExpression разбирает выражение с приоритетами
// Приоритет: NOT (3) > AND (2) > OR (1)
func (p *filterParser) parseExpression(precedence int) (filterExpr, error) {
	var left filterExpr
	var err error

	switch p.curToken.typ {
	case tokNot:
		p.nextToken()
		inner, err := p.parseExpression(3)
		if err != nil {
			return nil, err
		}
		left = notExpr{Expr: inner}
	case tokLParen:
		p.nextToken()
		inner, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if p.curToken.typ != tokRParen {
			return nil, fmt.Errorf("expected ) at pos %d", p.curToken.pos)
		}
		p.nextToken()
		left = inner
	default:
		left, err = p.parseCondition()
		if err != nil {
			return nil, err
		}
	}

	for {
		var opPrecedence int
		switch p.curToken.typ {
		case tokAnd:
			opPrecedence = 2
		case tokOr:
			opPrecedence = 1
		default:
			return left, nil
		}

		if opPrecedence <= precedence {
			return left, nil
		}

		op := p.curToken.typ
		p.nextToken()

		right, err := p.parseExpression(opPrecedence)
		if err != nil {
			return nil, err
		}
		left = logicalExpr{Left: left, Op: op, Right: right}
	}
}

// parseCondition разбирает одно условие (field op value | field in (...))
func (p *filterParser) parseCondition() (filterExpr, error) {
	if p.curToken.typ != tokIdent {
		return nil, fmt.Errorf("expected field name at pos %d, got %q", p.curToken.pos, p.curToken.literal)
	}
	field := p.curToken.literal
	p.nextToken()

	if p.curToken.typ == tokIn {
		p.nextToken()
		return p.parseInList(field)
	}

	var op filterTokenType
	switch p.curToken.typ {
	case tokEq, tokNe, tokGt, tokGe, tokLt, tokLe:
		op = p.curToken.typ
	default:
		return nil, fmt.Errorf("expected operator at pos %d, got %q", p.curToken.pos, p.curToken.literal)
	}
	p.nextToken()

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return comparisonExpr{Field: field, Op: op, Value: value}, nil
}

// parseInList разбирает список IN
func (p *filterParser) parseInList(field string) (filterExpr, error) {
	if p.curToken.typ != tokLParen {
		return nil, fmt.Errorf("expected ( after in at pos %d", p.curToken.pos)
	}
	p.nextToken()

	var values []any
	for {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, value)

		if p.curToken.typ == tokRParen {
			p.nextToken()
			break
		}
		if p.curToken.typ != tokComma {
			return nil, fmt.Errorf("expected , or ) in in-list at pos %d", p.curToken.pos)
		}
		p.nextToken()
	}
	return inExpr{Field: field, Values: values}, nil
}

// parseValue разбирает литерал значения
func (p *filterParser) parseValue() (any, error) {
	defer p.nextToken()

	switch p.curToken.typ {
	case tokString:
		return p.curToken.literal, nil
	case tokBadString:
		return nil, fmt.Errorf("unterminated string literal at pos %d", p.curToken.pos)
	case tokNumber:
		if strings.Contains(p.curToken.literal, ".") {
			f, err := strconv.ParseFloat(p.curToken.literal, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at pos %d", p.curToken.literal, p.curToken.pos)
			}
			return f, nil
		}
		n, err := strconv.ParseInt(p.curToken.literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at pos %d", p.curToken.literal, p.curToken.pos)
		}
		return n, nil
	case tokNull:
		return nil, nil
	case tokTrue:
		return true, nil
	case tokFalse:
		return false, nil
	}
	return nil, fmt.Errorf("expected value at pos %d, got %q", p.curToken.pos, p.curToken.literal)
}

// ========== Генерация SQL ==========

// compileFilter переводит AST в SQL условие с маркерами '?'
// Маркеры перенумеровываются в placeholders движка на этапе сборки
func compileFilter(expr filterExpr, t metadata.Table) (string, []any, error) {
	switch e := expr.(type) {
	case comparisonExpr:
		col, ok := t.Column(e.Field)
		if !ok {
			return "", nil, fmt.Errorf("unknown field %s in filter", e.Field)
		}
		if e.Value == nil {
			// eq null -> IS NULL, ne null -> IS NOT NULL
			switch e.Op {
			case tokEq:
				return col.Name + " IS NULL", nil, nil
			case tokNe:
				return col.Name + " IS NOT NULL", nil, nil
			default:
				return "", nil, fmt.Errorf("field %s: null supports only eq/ne", e.Field)
			}
		}
		return col.Name + " " + sqlOperator(e.Op) + " ?", []any{e.Value}, nil

	case inExpr:
		col, ok := t.Column(e.Field)
		if !ok {
			return "", nil, fmt.Errorf("unknown field %s in filter", e.Field)
		}
		markers := make([]string, len(e.Values))
		for i := range e.Values {
			markers[i] = "?"
		}
		return col.Name + " IN (" + strings.Join(markers, ", ") + ")", e.Values, nil

	case logicalExpr:
		leftSQL, leftArgs, err := compileFilter(e.Left, t)
		if err != nil {
			return "", nil, err
		}
		rightSQL, rightArgs, err := compileFilter(e.Right, t)
		if err != nil {
			return "", nil, err
		}
		op := "AND"
		if e.Op == tokOr {
			op = "OR"
		}
		return "(" + leftSQL + " " + op + " " + rightSQL + ")", append(leftArgs, rightArgs...), nil

	case notExpr:
		innerSQL, innerArgs, err := compileFilter(e.Expr, t)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + innerSQL + ")", innerArgs, nil
	}

	return "", nil, fmt.Errorf("unsupported filter expression %T", expr)
}

func sqlOperator(op filterTokenType) string {
	switch op {
	case tokEq:
		return "="
	case tokNe:
		return "<>"
	case tokGt:
		return ">"
	case tokGe:
		return ">="
	case tokLt:
		return "<"
	case tokLe:
		return "<="
	}
	return "="
}
