package storage

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/relsql/internal/engine"
	"github.com/kevin-cantwell/relsql/internal/sql"
)

var (
	ErrTableExists     = errors.New("Table already exists")
	ErrIndexExists     = errors.New("Index already exists")
	ErrDuplicateKey    = errors.New("Duplicate key value violates unique constraint")
	ErrMissingPrimary  = errors.New("Primary key column is not part of the table")
	ErrValueCount      = errors.New("Value count does not match column count")
	ErrDuplicateColumn = errors.New("Duplicate column name")
)

// Memory is an in-memory storage engine. Rows are kept in insertion order;
// point and range lookups scan index columns with typed comparison and sort
// range results by key, so they behave like an ordered index without one.
type Memory struct {
	tables map[string]*table
	order  []string
}

var _ engine.Engine = (*Memory)(nil)

// schema is the catalog metadata shared by both engine implementations.
type schema struct {
	name    string
	primary string
	cols    []string
	types   []sql.ColumnType
	indexes map[string]sql.IndexKind
}

type table struct {
	schema
	rows []sql.Record
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*table)}
}

func (m *Memory) IsTable(name string) bool {
	_, ok := m.tables[name]
	return ok
}

func (m *Memory) TableNames() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

func (m *Memory) table(name string) (*table, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, errors.Wrapf(engine.ErrTableNotFound, "%q", name)
	}
	return t, nil
}

func (m *Memory) TableAttributes(name string) ([]string, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(t.cols))
	copy(cols, t.cols)
	return cols, nil
}

func (m *Memory) SortAttributes(name string, cols []string) ([]string, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(cols))
	for _, col := range cols {
		requested[col] = true
	}

	sorted := make([]string, 0, len(cols))
	for _, col := range t.cols {
		if requested[col] {
			sorted = append(sorted, col)
			delete(requested, col)
		}
	}
	// Unknown columns go last, in request order; the executor decides what
	// to do with them.
	for _, col := range cols {
		if requested[col] {
			sorted = append(sorted, col)
		}
	}
	return sorted, nil
}

func (m *Memory) IndexNames(name string) ([]string, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	var indexed []string
	for _, col := range t.cols {
		if col == t.primary {
			indexed = append(indexed, col)
			continue
		}
		if _, ok := t.indexes[col]; ok {
			indexed = append(indexed, col)
		}
	}
	return indexed, nil
}

func (m *Memory) Comparator(name string, op sql.CompOp, column, value string) (sql.Predicate, error) {
	t, err := m.table(name)
	if err != nil {
		return nil, err
	}
	pos, typ, err := t.column(column)
	if err != nil {
		return nil, err
	}

	// Capture by value: pos, typ, value, op survive the condition list.
	return func(rec sql.Record) bool {
		if pos >= len(rec) {
			return false
		}
		c, err := compare(typ, rec[pos], value)
		if err != nil {
			return false
		}
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
		default:
			return false
		}
	}, nil
}

func (m *Memory) CreateTable(name, primaryKey string, types []sql.ColumnType, names []string) error {
	if m.IsTable(name) {
		return errors.Wrapf(ErrTableExists, "%q", name)
	}
	if len(types) != len(names) {
		return errors.Wrapf(ErrValueCount, "%d types for %d columns", len(types), len(names))
	}

	seen := make(map[string]bool, len(names))
	for _, col := range names {
		if seen[col] {
			return errors.Wrapf(ErrDuplicateColumn, "%q", col)
		}
		seen[col] = true
	}
	if !seen[primaryKey] {
		return errors.Wrapf(ErrMissingPrimary, "%q", primaryKey)
	}

	t := &table{schema: schema{
		name:    name,
		primary: primaryKey,
		cols:    append([]string(nil), names...),
		types:   append([]sql.ColumnType(nil), types...),
		indexes: make(map[string]sql.IndexKind),
	}}
	m.tables[name] = t
	m.order = append(m.order, name)
	return nil
}

func (m *Memory) CreateIndex(name, column string, kind sql.IndexKind) error {
	t, err := m.table(name)
	if err != nil {
		return err
	}
	if _, _, err := t.column(column); err != nil {
		return err
	}
	if _, ok := t.indexes[column]; ok || column == t.primary {
		return errors.Wrapf(ErrIndexExists, "%s.%s", name, column)
	}
	t.indexes[column] = kind
	return nil
}

func (m *Memory) Load(name string, cols []string, pred sql.Predicate) (sql.QueryResponse, error) {
	t, err := m.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	times := make(sql.QueryTimes)
	defer stopwatch(times, fmt.Sprintf("load %s", name))()

	positions, err := t.positions(cols)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	var records []sql.Record
	for _, row := range t.rows {
		if pred != nil && !pred(row) {
			continue
		}
		records = append(records, project(row, positions))
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (m *Memory) Search(name string, key sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error) {
	t, err := m.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	times := make(sql.QueryTimes)
	defer stopwatch(times, fmt.Sprintf("search %s", name))()

	pos, typ, err := t.column(key.Name)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	positions, err := t.positions(cols)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	var records []sql.Record
	for _, row := range t.rows {
		c, err := compare(typ, row[pos], key.Value)
		if err != nil || c != 0 {
			continue
		}
		if pred != nil && !pred(row) {
			continue
		}
		records = append(records, project(row, positions))
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (m *Memory) RangeSearch(name string, lo, hi sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error) {
	t, err := m.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	times := make(sql.QueryTimes)
	defer stopwatch(times, fmt.Sprintf("range search %s", name))()

	column := lo.Name
	if lo == sql.KeyMin {
		column = hi.Name
	}
	pos, typ, err := t.column(column)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	positions, err := t.positions(cols)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	// Endpoints are inclusive; KeyMin and KeyMax leave the corresponding
	// side open.
	var matched []sql.Record
	for _, row := range t.rows {
		if lo != sql.KeyMin {
			c, err := compare(typ, row[pos], lo.Value)
			if err != nil || c < 0 {
				continue
			}
		}
		if hi != sql.KeyMax {
			c, err := compare(typ, row[pos], hi.Value)
			if err != nil || c > 0 {
				continue
			}
		}
		if pred != nil && !pred(row) {
			continue
		}
		matched = append(matched, row)
	}

	// Emit in key order, as an index scan would.
	sort.SliceStable(matched, func(i, j int) bool {
		c, err := compare(typ, matched[i][pos], matched[j][pos])
		return err == nil && c < 0
	})

	records := make([]sql.Record, 0, len(matched))
	for _, row := range matched {
		records = append(records, project(row, positions))
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (m *Memory) Add(name string, values []string) error {
	t, err := m.table(name)
	if err != nil {
		return err
	}
	if len(values) != len(t.cols) {
		return errors.Wrapf(ErrValueCount, "%d values for %d columns", len(values), len(t.cols))
	}

	for i, v := range values {
		if err := checkType(t.types[i], v); err != nil {
			return errors.Wrapf(err, "column %q", t.cols[i])
		}
	}

	pkPos, pkType, err := t.column(t.primary)
	if err != nil {
		return err
	}
	for _, row := range t.rows {
		c, err := compare(pkType, row[pkPos], values[pkPos])
		if err == nil && c == 0 {
			return errors.Wrapf(ErrDuplicateKey, "%s=%s", t.primary, values[pkPos])
		}
	}

	t.rows = append(t.rows, append(sql.Record(nil), values...))
	return nil
}

func (m *Memory) Remove(name string, key sql.Attribute) error {
	t, err := m.table(name)
	if err != nil {
		return err
	}
	pos, typ, err := t.column(key.Name)
	if err != nil {
		return err
	}

	kept := t.rows[:0]
	for _, row := range t.rows {
		c, err := compare(typ, row[pos], key.Value)
		if err == nil && c == 0 {
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return nil
}

func (m *Memory) DropTable(name string) error {
	if _, err := m.table(name); err != nil {
		return err
	}
	delete(m.tables, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (sc *schema) column(name string) (int, sql.ColumnType, error) {
	for i, col := range sc.cols {
		if col == name {
			return i, sc.types[i], nil
		}
	}
	return 0, sql.ColumnType{}, errors.Wrapf(engine.ErrColumnNotFound, "%s.%s", sc.name, name)
}

func (sc *schema) positions(cols []string) ([]int, error) {
	positions := make([]int, 0, len(cols))
	for _, col := range cols {
		pos, _, err := sc.column(col)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func project(row sql.Record, positions []int) sql.Record {
	out := make(sql.Record, 0, len(positions))
	for _, pos := range positions {
		out = append(out, row[pos])
	}
	return out
}

// compare orders two field texts under a column type. Returns <0, 0, >0.
func compare(typ sql.ColumnType, a, b string) (int, error) {
	switch typ.Kind {
	case sql.Int:
		x, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return 0, err
		}
		y, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			return 0, err
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case sql.Float:
		x, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, err
		}
		y, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return 0, err
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case sql.Bool:
		x, err := strconv.ParseBool(a)
		if err != nil {
			return 0, err
		}
		y, err := strconv.ParseBool(b)
		if err != nil {
			return 0, err
		}
		switch {
		case !x && y:
			return -1, nil
		case x && !y:
			return 1, nil
		}
		return 0, nil
	default:
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	}
}

func checkType(typ sql.ColumnType, v string) error {
	switch typ.Kind {
	case sql.Int:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return errors.Errorf("invalid INT %q", v)
		}
	case sql.Float:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return errors.Errorf("invalid FLOAT %q", v)
		}
	case sql.Bool:
		if _, err := strconv.ParseBool(v); err != nil {
			return errors.Errorf("invalid BOOL %q", v)
		}
	case sql.Varchar:
		if typ.Len > 0 && len(v) > typ.Len {
			return errors.Errorf("value %q exceeds VARCHAR(%d)", v, typ.Len)
		}
	}
	return nil
}

func stopwatch(times sql.QueryTimes, stage string) func() {
	start := time.Now()
	return func() {
		times[stage] = time.Since(start)
	}
}
