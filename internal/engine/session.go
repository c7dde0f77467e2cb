package engine

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/relsql/internal/ast"
	"github.com/kevin-cantwell/relsql/internal/sql"
)

// Session owns a storage engine and a response buffer, accepts SQL input,
// and executes statements against the engine. A session owns exactly one
// engine; the engine lives as long as the session.
type Session struct {
	engine Engine
	resp   Response

	// ExitOnOpenError restores the historical behavior of ParseFile, which
	// terminated the process when the file could not be opened. Off by
	// default; ParseFile returns the error instead.
	ExitOnOpenError bool
}

func NewSession(eng Engine) *Session {
	return &Session{
		engine: eng,
		resp:   Response{Code: 200},
	}
}

// Engine exposes the owned engine for statement callbacks and drivers.
func (s *Session) Engine() Engine { return s.engine }

// Response returns the current response buffer.
func (s *Session) Response() *Response { return &s.resp }

// Clear wipes the response buffer between statements.
func (s *Session) Clear() { s.resp.Clear() }

// ParseFile opens the file at path and parses its contents.
func (s *Session) ParseFile(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		if s.ExitOnOpenError {
			os.Exit(1)
		}
		return nil, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()
	return s.Parse(f), nil
}

// Parse binds a fresh parser to the stream and executes statements in source
// order until the input is exhausted or a statement fails. Side effects of
// statement N are visible to statement N+1; effects of statements preceding
// a failure are retained. An exhausted stream with no statements leaves the
// response unchanged.
func (s *Session) Parse(r io.Reader) *Response {
	p := ast.NewParser(r)

	executed := 0
	for {
		stmt, err := p.Next()
		if err == io.EOF {
			if executed > 0 {
				s.resp.ok()
			}
			return &s.resp
		}
		if err != nil {
			s.resp.fail(err)
			return &s.resp
		}
		if err := s.Execute(stmt); err != nil {
			s.resp.fail(err)
			return &s.resp
		}
		executed++
	}
}

// Execute dispatches one parsed statement to its callback. This is the
// surface the grammar drives; it holds no reference back to the parser.
func (s *Session) Execute(stmt ast.Statement) error {
	switch st := stmt.(type) {
	case *ast.CreateTable:
		return s.createTable(st)
	case *ast.CreateIndex:
		return s.createIndex(st)
	case *ast.Select:
		return s.selectWhere(st)
	case *ast.SelectBetween:
		return s.selectBetween(st)
	case *ast.Insert:
		return s.insert(st)
	case *ast.InsertFromFile:
		return s.insertFromFile(st)
	case *ast.Delete:
		return s.remove(st)
	case *ast.DropTable:
		return s.dropTable(st)
	default:
		return errors.Errorf("unsupported statement %T", stmt)
	}
}

// CheckTableName raises ErrTableNotFound if the engine does not know t.
func (s *Session) CheckTableName(t string) error {
	if !s.engine.IsTable(t) {
		return errors.Wrapf(ErrTableNotFound, "%q", t)
	}
	return nil
}

func (s *Session) createTable(st *ast.CreateTable) error {
	var (
		primaryKey string
		types      = make([]sql.ColumnType, 0, len(st.Columns))
		names      = make([]string, 0, len(st.Columns))
	)

	for _, col := range st.Columns {
		if col.PrimaryKey {
			primaryKey = col.Name
		}
		types = append(types, col.Type)
		names = append(names, col.Name)
	}

	return s.engine.CreateTable(st.Table, primaryKey, types, names)
}

func (s *Session) createIndex(st *ast.CreateIndex) error {
	if err := s.CheckTableName(st.Table); err != nil {
		return err
	}
	attrs, err := s.engine.TableAttributes(st.Table)
	if err != nil {
		return err
	}
	if !contains(attrs, st.Column) {
		return errors.Wrapf(ErrColumnNotFound, "%q", st.Column)
	}
	return s.engine.CreateIndex(st.Table, st.Column, st.Using)
}

// sortedColumns resolves the requested column list (or star) to schema order
// and verifies every requested column exists.
func (s *Session) sortedColumns(table string, cols []string, star bool) ([]string, error) {
	attrs, err := s.engine.TableAttributes(table)
	if err != nil {
		return nil, err
	}
	if star {
		return attrs, nil
	}

	sorted, err := s.engine.SortAttributes(table, cols)
	if err != nil {
		return nil, err
	}
	for _, col := range sorted {
		if !contains(attrs, col) {
			return nil, errors.Wrapf(ErrColumnNotFound, "%q", col)
		}
	}
	return sorted, nil
}

func (s *Session) selectWhere(st *ast.Select) error {
	if err := s.CheckTableName(st.Table); err != nil {
		return err
	}
	sorted, err := s.sortedColumns(st.Table, st.Columns, st.Star)
	if err != nil {
		return err
	}

	if len(st.Where) == 0 {
		qr, err := s.engine.Load(st.Table, sorted, nil)
		if err != nil {
			return err
		}
		s.emit(qr, sorted)
		return nil
	}

	indexed, err := s.engine.IndexNames(st.Table)
	if err != nil {
		return err
	}

	var acc sql.QueryResponse
	for _, conj := range st.Where {
		plan, err := compileConjunct(s.engine, st.Table, conj, indexed)
		if err != nil {
			return err
		}

		// No indexed column in this conjunct: fall back to a full scan
		// filtered by this conjunct alone. The loop ends here and the
		// response consists solely of this scan's result; the remaining
		// disjuncts are not evaluated, so rows matching only them are not
		// returned.
		if plan.key == nil {
			qr, err := s.engine.Load(st.Table, sorted, plan.residual)
			if err != nil {
				return err
			}
			acc = qr
			break
		}

		var qr sql.QueryResponse
		switch plan.key.Op {
		case sql.EQ:
			qr, err = s.engine.Search(st.Table, sql.Attribute{Name: plan.key.Column, Value: plan.key.Value}, plan.residual, sorted)
		case sql.LT, sql.LTE:
			qr, err = s.engine.RangeSearch(st.Table, sql.KeyMin, sql.Attribute{Name: plan.key.Column, Value: plan.key.Value}, plan.residual, sorted)
		case sql.GT, sql.GTE:
			qr, err = s.engine.RangeSearch(st.Table, sql.Attribute{Name: plan.key.Column, Value: plan.key.Value}, sql.KeyMax, plan.residual, sorted)
		}
		if err != nil {
			return err
		}

		acc.Times = mergeTimes(acc.Times, qr.Times)
		acc.Records = mergeRecords(acc.Records, qr.Records)
	}

	s.emit(acc, sorted)
	return nil
}

func (s *Session) selectBetween(st *ast.SelectBetween) error {
	if err := s.CheckTableName(st.Table); err != nil {
		return err
	}
	sorted, err := s.sortedColumns(st.Table, st.Columns, st.Star)
	if err != nil {
		return err
	}

	lo := sql.Attribute{Name: st.Key, Value: st.Low}
	hi := sql.Attribute{Name: st.Key, Value: st.High}
	qr, err := s.engine.RangeSearch(st.Table, lo, hi, sql.True, sorted)
	if err != nil {
		return err
	}

	s.emit(qr, sorted)
	return nil
}

func (s *Session) insert(st *ast.Insert) error {
	if err := s.CheckTableName(st.Table); err != nil {
		return err
	}
	// The grammar emits values in reverse textual order; reversing restores
	// schema order.
	values := make([]string, len(st.Values))
	for i, v := range st.Values {
		values[len(values)-1-i] = v
	}
	return s.engine.Add(st.Table, values)
}

func (s *Session) insertFromFile(st *ast.InsertFromFile) error {
	if err := s.CheckTableName(st.Table); err != nil {
		return err
	}
	// Strip exactly one quote byte at each end of the path literal.
	path := st.Path
	if len(path) >= 2 {
		path = path[1 : len(path)-1]
	}
	return s.engine.CSVInsert(st.Table, path)
}

// remove deletes by the first condition of the first disjunct; all other
// conditions are ignored (single-key delete).
func (s *Session) remove(st *ast.Delete) error {
	if err := s.CheckTableName(st.Table); err != nil {
		return err
	}
	if len(st.Where) == 0 || len(st.Where[0]) == 0 {
		return errors.Errorf("DELETE requires a WHERE clause")
	}
	cond := st.Where[0][0]
	return s.engine.Remove(st.Table, sql.Attribute{Name: cond.Column, Value: cond.Value})
}

func (s *Session) dropTable(st *ast.DropTable) error {
	return s.engine.DropTable(st.Table)
}

// emit fills the response with a query result, the catalog's table names,
// and the schema-ordered column names.
func (s *Session) emit(qr sql.QueryResponse, sortedCols []string) {
	s.resp.Records = qr.Records
	s.resp.QueryTimes = qr.Times
	s.resp.TableNames = s.engine.TableNames()
	s.resp.ColumnNames = sortedCols
}
