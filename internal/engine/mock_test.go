package engine

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/relsql/internal/sql"
)

// --- test helpers ---

// mockEngine is a scriptable in-memory engine that records every scan it is
// asked to perform, so tests can assert on the executor's planning decisions
// as well as its results.
type mockEngine struct {
	tables map[string]*mockTable
	order  []string

	// calls records each Load/Search/RangeSearch in a compact form.
	calls []string
	// ncalls numbers timing stages so they are unique per statement.
	ncalls int

	added   map[string][][]string
	csv     map[string]string
	removed []sql.Attribute
	dropped []string
}

type mockTable struct {
	cols    []string
	indexed []string
	rows    []sql.Record
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		tables: make(map[string]*mockTable),
		added:  make(map[string][][]string),
		csv:    make(map[string]string),
	}
}

func (m *mockEngine) addTable(name string, cols, indexed []string, rows ...sql.Record) {
	m.tables[name] = &mockTable{cols: cols, indexed: indexed, rows: rows}
	m.order = append(m.order, name)
}

func (m *mockEngine) IsTable(name string) bool {
	_, ok := m.tables[name]
	return ok
}

func (m *mockEngine) TableNames() []string { return m.order }

func (m *mockEngine) table(name string) (*mockTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "%q", name)
	}
	return t, nil
}

func (m *mockEngine) TableAttributes(name string) ([]string, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	return t.cols, nil
}

func (m *mockEngine) SortAttributes(name string, cols []string) ([]string, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	requested := make(map[string]bool, len(cols))
	for _, col := range cols {
		requested[col] = true
	}
	var sorted []string
	for _, col := range t.cols {
		if requested[col] {
			sorted = append(sorted, col)
			delete(requested, col)
		}
	}
	for _, col := range cols {
		if requested[col] {
			sorted = append(sorted, col)
		}
	}
	return sorted, nil
}

func (m *mockEngine) IndexNames(name string) ([]string, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	return t.indexed, nil
}

func (m *mockEngine) Comparator(name string, op sql.CompOp, column, value string) (sql.Predicate, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	pos := position(t.cols, column)
	if pos < 0 {
		return nil, errors.Wrapf(ErrColumnNotFound, "%q", column)
	}
	return func(rec sql.Record) bool {
		c := looseCompare(rec[pos], value)
		switch op {
		case sql.EQ:
			return c == 0
		case sql.LT:
			return c < 0
		case sql.LTE:
			return c <= 0
		case sql.GT:
			return c > 0
		case sql.GTE:
			return c >= 0
		}
		return false
	}, nil
}

func (m *mockEngine) CreateTable(name, primaryKey string, types []sql.ColumnType, names []string) error {
	if m.IsTable(name) {
		return errors.Errorf("table %q already exists", name)
	}
	m.addTable(name, names, []string{primaryKey})
	return nil
}

func (m *mockEngine) CreateIndex(name, column string, kind sql.IndexKind) error {
	t, err := m.table(name)
	if err != nil {
		return err
	}
	t.indexed = append(t.indexed, column)
	return nil
}

func (m *mockEngine) stage(format string, args ...interface{}) sql.QueryTimes {
	m.ncalls++
	call := fmt.Sprintf(format, args...)
	m.calls = append(m.calls, call)
	return sql.QueryTimes{fmt.Sprintf("%s #%d", call, m.ncalls): 1}
}

func (m *mockEngine) Load(name string, cols []string, pred sql.Predicate) (sql.QueryResponse, error) {
	t, err := m.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	times := m.stage("load %s", name)

	var records []sql.Record
	for _, row := range t.rows {
		if pred != nil && !pred(row) {
			continue
		}
		records = append(records, projectCols(row, t.cols, cols))
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (m *mockEngine) Search(name string, key sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error) {
	t, err := m.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	times := m.stage("search %s %s=%s", name, key.Name, key.Value)

	pos := position(t.cols, key.Name)
	var records []sql.Record
	for _, row := range t.rows {
		if looseCompare(row[pos], key.Value) != 0 {
			continue
		}
		if pred != nil && !pred(row) {
			continue
		}
		records = append(records, projectCols(row, t.cols, cols))
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (m *mockEngine) RangeSearch(name string, lo, hi sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error) {
	t, err := m.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	times := m.stage("range %s %s..%s", name, describe(lo), describe(hi))

	column := lo.Name
	if lo == sql.KeyMin {
		column = hi.Name
	}
	pos := position(t.cols, column)

	var records []sql.Record
	for _, row := range t.rows {
		if lo != sql.KeyMin && looseCompare(row[pos], lo.Value) < 0 {
			continue
		}
		if hi != sql.KeyMax && looseCompare(row[pos], hi.Value) > 0 {
			continue
		}
		if pred != nil && !pred(row) {
			continue
		}
		records = append(records, projectCols(row, t.cols, cols))
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (m *mockEngine) Add(name string, values []string) error {
	if _, err := m.table(name); err != nil {
		return err
	}
	m.added[name] = append(m.added[name], values)
	m.tables[name].rows = append(m.tables[name].rows, values)
	return nil
}

func (m *mockEngine) CSVInsert(name, path string) error {
	if _, err := m.table(name); err != nil {
		return err
	}
	m.csv[name] = path
	return nil
}

func (m *mockEngine) Remove(name string, key sql.Attribute) error {
	if _, err := m.table(name); err != nil {
		return err
	}
	m.removed = append(m.removed, key)
	return nil
}

func (m *mockEngine) DropTable(name string) error {
	if _, err := m.table(name); err != nil {
		return err
	}
	delete(m.tables, name)
	m.dropped = append(m.dropped, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func describe(a sql.Attribute) string {
	if a == sql.KeyMin {
		return "KEY_MIN"
	}
	if a == sql.KeyMax {
		return "KEY_MAX"
	}
	return a.Name + ":" + a.Value
}

func position(cols []string, name string) int {
	for i, col := range cols {
		if col == name {
			return i
		}
	}
	return -1
}

func projectCols(row sql.Record, schema, cols []string) sql.Record {
	out := make(sql.Record, 0, len(cols))
	for _, col := range cols {
		out = append(out, row[position(schema, col)])
	}
	return out
}

// looseCompare compares numerically when both sides parse as numbers,
// lexically otherwise.
func looseCompare(a, b string) int {
	x, errX := strconv.ParseFloat(a, 64)
	y, errY := strconv.ParseFloat(b, 64)
	if errX == nil && errY == nil {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
