package ast

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kevin-cantwell/relsql/internal/sql"
)

// ParseError is a grammar or scanner rejection, positioned in the input.
type ParseError struct {
	Line int
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at line %d position %d", e.Msg, e.Line, e.Pos)
}

func unexpected(t *Token) error {
	return &ParseError{Line: t.Line, Pos: t.Pos, Msg: fmt.Sprintf("unexpected token %q", t.String())}
}

// Parser reads tokens from a Lexer and produces statements one at a time.
type Parser struct {
	lex       *Lexer
	scanned   []*Token
	unscanned []*Token
}

func NewParser(r io.Reader) *Parser {
	return &Parser{lex: NewLexer(r)}
}

// Next parses and returns the next statement. It returns io.EOF when the
// input is exhausted.
func (p *Parser) Next() (Statement, error) {
	for {
		t, err := p.scanSkipWS()
		if err != nil {
			return nil, err
		}

		switch t.Type {
		case SEMICOLON:
			continue
		case EOF:
			return nil, io.EOF
		case CREATE:
			return p.parseCreate()
		case SELECT:
			return p.parseSelect()
		case INSERT:
			return p.parseInsert()
		case DELETE:
			return p.parseDelete()
		case DROP:
			return p.parseDropTable()
		default:
			return nil, unexpected(t)
		}
	}
}

// Parse consumes the whole input and returns all statements.
func (p *Parser) Parse() ([]Statement, error) {
	var stmts []Statement
	for {
		stmt, err := p.Next()
		if err == io.EOF {
			return stmts, nil
		}
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *Parser) scan() (*Token, error) {
	var t *Token
	if len(p.unscanned) > 0 {
		t = p.unscanned[len(p.unscanned)-1]
		p.unscanned = p.unscanned[:len(p.unscanned)-1]
	} else {
		tok, err := p.lex.Scan()
		if err != nil {
			return nil, err
		}
		t = tok
	}
	p.scanned = append(p.scanned, t)
	return t, nil
}

func (p *Parser) scanSkipWS() (*Token, error) {
	for {
		t, err := p.scan()
		if err != nil {
			return nil, err
		}
		if t.Type != WS && t.Type != COMMENT {
			return t, nil
		}
	}
}

func (p *Parser) unscan() {
	if len(p.scanned) == 0 {
		return
	}
	t := p.scanned[len(p.scanned)-1]
	p.scanned = p.scanned[:len(p.scanned)-1]
	p.unscanned = append(p.unscanned, t)
}

func (p *Parser) peek() (*Token, error) {
	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	p.unscan()
	return t, nil
}

func (p *Parser) expect(typ TokenType) (*Token, error) {
	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	if t.Type != typ {
		return nil, unexpected(t)
	}
	return t, nil
}

func (p *Parser) expectIdent() (string, error) {
	t, err := p.expect(IDENT)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// terminator consumes the statement-ending semicolon, or accepts EOF.
func (p *Parser) terminator() error {
	t, err := p.scanSkipWS()
	if err != nil {
		return err
	}
	if t.Type == SEMICOLON || t.Type == EOF {
		if t.Type == EOF {
			p.unscan()
		}
		return nil
	}
	return unexpected(t)
}

func (p *Parser) parseCreate() (Statement, error) {
	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	switch t.Type {
	case TABLE:
		return p.parseCreateTable()
	case INDEX:
		return p.parseCreateIndex()
	default:
		return nil, unexpected(t)
	}
}

func (p *Parser) parseCreateTable() (Statement, error) {
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var cols []sql.ColumnSpec
	for {
		col, err := p.parseColumnSpec()
		if err != nil {
			return nil, err
		}
		cols = append(cols, *col)

		t, err := p.scanSkipWS()
		if err != nil {
			return nil, err
		}
		if t.Type == RPAREN {
			break
		}
		if t.Type != COMMA {
			return nil, unexpected(t)
		}
	}

	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &CreateTable{Table: table, Columns: cols}, nil
}

func (p *Parser) parseColumnSpec() (*sql.ColumnSpec, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}

	var typ sql.ColumnType
	switch t.Type {
	case INT:
		typ.Kind = sql.Int
	case FLOAT:
		typ.Kind = sql.Float
	case BOOL:
		typ.Kind = sql.Bool
	case VARCHAR:
		typ.Kind = sql.Varchar
		if _, err := p.expect(LPAREN); err != nil {
			return nil, err
		}
		n, err := p.expect(NUMERIC)
		if err != nil {
			return nil, err
		}
		length, err := strconv.Atoi(n.String())
		if err != nil || length <= 0 {
			return nil, &ParseError{Line: n.Line, Pos: n.Pos, Msg: fmt.Sprintf("invalid varchar length %q", n.String())}
		}
		typ.Len = length
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
	default:
		return nil, unexpected(t)
	}

	spec := &sql.ColumnSpec{Name: name, Type: typ}

	t, err = p.peek()
	if err != nil {
		return nil, err
	}
	if t.Type == PRIMARY {
		p.scanSkipWS()
		if _, err := p.expect(KEY); err != nil {
			return nil, err
		}
		spec.PrimaryKey = true
	}

	return spec, nil
}

func (p *Parser) parseCreateIndex() (Statement, error) {
	if _, err := p.expect(ON); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	column, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(USING); err != nil {
		return nil, err
	}

	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	var kind sql.IndexKind
	switch t.Type {
	case HASH:
		kind = sql.HashIndex
	case AVL:
		kind = sql.AVLIndex
	case SEQUENTIAL:
		kind = sql.SequentialIndex
	default:
		return nil, unexpected(t)
	}

	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &CreateIndex{Table: table, Column: column, Using: kind}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	var (
		star bool
		cols []string
	)

	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	if t.Type == STAR {
		star = true
	} else {
		p.unscan()
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)

			t, err := p.peek()
			if err != nil {
				return nil, err
			}
			if t.Type != COMMA {
				break
			}
			p.scanSkipWS()
		}
	}

	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	t, err = p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	switch t.Type {
	case SEMICOLON:
		return &Select{Table: table, Columns: cols, Star: star}, nil
	case EOF:
		p.unscan()
		return &Select{Table: table, Columns: cols, Star: star}, nil
	case WHERE:
	default:
		return nil, unexpected(t)
	}

	// Distinguish the BETWEEN form from a DNF constraint: both begin with a
	// column name.
	keyCol, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	t, err = p.peek()
	if err != nil {
		return nil, err
	}
	if t.Type == BETWEEN {
		p.scanSkipWS()
		low, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(AND); err != nil {
			return nil, err
		}
		high, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if err := p.terminator(); err != nil {
			return nil, err
		}
		return &SelectBetween{Table: table, Columns: cols, Star: star, Key: keyCol, Low: low, High: high}, nil
	}

	first, err := p.parseConditionTail(keyCol)
	if err != nil {
		return nil, err
	}
	where, err := p.parseConstraint(first)
	if err != nil {
		return nil, err
	}
	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &Select{Table: table, Columns: cols, Star: star, Where: where}, nil
}

// parseConstraint parses the remainder of a DNF constraint given its first
// condition: cond (AND cond)* (OR cond (AND cond)*)*.
func (p *Parser) parseConstraint(first sql.Condition) (sql.Constraint, error) {
	constraint := sql.Constraint{{first}}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch t.Type {
		case AND:
			p.scanSkipWS()
			cond, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			last := len(constraint) - 1
			constraint[last] = append(constraint[last], cond)
		case OR:
			p.scanSkipWS()
			cond, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			constraint = append(constraint, []sql.Condition{cond})
		default:
			return constraint, nil
		}
	}
}

func (p *Parser) parseCondition() (sql.Condition, error) {
	col, err := p.expectIdent()
	if err != nil {
		return sql.Condition{}, err
	}
	return p.parseConditionTail(col)
}

// parseConditionTail parses the operator and value of a condition whose
// column name has already been consumed.
func (p *Parser) parseConditionTail(col string) (sql.Condition, error) {
	t, err := p.scanSkipWS()
	if err != nil {
		return sql.Condition{}, err
	}

	var op sql.CompOp
	switch t.Type {
	case EQ:
		op = sql.EQ
	case LT:
		op = sql.LT
	case LTE:
		op = sql.LTE
	case GT:
		op = sql.GT
	case GTE:
		op = sql.GTE
	default:
		return sql.Condition{}, unexpected(t)
	}

	val, err := p.parseLiteral()
	if err != nil {
		return sql.Condition{}, err
	}
	return sql.Condition{Column: col, Op: op, Value: val}, nil
}

// parseLiteral accepts a numeric, a quoted string (unquoted here), or a bare
// word such as true/false.
func (p *Parser) parseLiteral() (string, error) {
	t, err := p.scanSkipWS()
	if err != nil {
		return "", err
	}
	switch t.Type {
	case NUMERIC, IDENT:
		return t.String(), nil
	case STRING:
		return unquote(t.String()), nil
	default:
		return "", unexpected(t)
	}
}

func (p *Parser) parseInsert() (Statement, error) {
	if _, err := p.expect(INTO); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	t, err := p.scanSkipWS()
	if err != nil {
		return nil, err
	}
	switch t.Type {
	case FROM:
		if _, err := p.expect(FILE); err != nil {
			return nil, err
		}
		path, err := p.expect(STRING)
		if err != nil {
			return nil, err
		}
		if err := p.terminator(); err != nil {
			return nil, err
		}
		// The quoted path is handed on verbatim; the executor strips the
		// quote bytes.
		return &InsertFromFile{Table: table, Path: path.String()}, nil
	case VALUES:
	default:
		return nil, unexpected(t)
	}

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var values []string
	for {
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		// Prepend: the value list is emitted in reverse of textual order,
		// matching the right-recursive list of the original grammar.
		values = append([]string{val}, values...)

		t, err := p.scanSkipWS()
		if err != nil {
			return nil, err
		}
		if t.Type == RPAREN {
			break
		}
		if t.Type != COMMA {
			return nil, unexpected(t)
		}
	}

	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &Insert{Table: table, Values: values}, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(WHERE); err != nil {
		return nil, err
	}
	first, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	where, err := p.parseConstraint(first)
	if err != nil {
		return nil, err
	}
	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &Delete{Table: table, Where: where}, nil
}

func (p *Parser) parseDropTable() (Statement, error) {
	if _, err := p.expect(TABLE); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.terminator(); err != nil {
		return nil, err
	}
	return &DropTable{Table: table}, nil
}

// unquote strips the surrounding quote bytes from a string literal.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
