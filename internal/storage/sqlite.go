package storage

import (
	stdsql "database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/kevin-cantwell/relsql/internal/engine"
	"github.com/kevin-cantwell/relsql/internal/sql"
)

// SQLite is a storage engine backed by an in-memory SQLite database. The
// catalog metadata (schema order, primary key, index kinds) lives here;
// rows, indexes, and scans live in SQLite. Residual predicates are applied
// row-wise in Go so both engines share comparator semantics.
type SQLite struct {
	db     *stdsql.DB
	tables map[string]*schema
	order  []string
}

var _ engine.Engine = (*SQLite)(nil)

func OpenSQLite() (*SQLite, error) {
	db, err := stdsql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// sqlite does not support concurrent write access, and :memory: databases
	// vanish per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(-1)

	return &SQLite{
		db:     db,
		tables: make(map[string]*schema),
	}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) IsTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

func (s *SQLite) TableNames() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

func (s *SQLite) table(name string) (*schema, error) {
	sc, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrapf(engine.ErrTableNotFound, "%q", name)
	}
	return sc, nil
}

func (s *SQLite) TableAttributes(name string) ([]string, error) {
	sc, err := s.table(name)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(sc.cols))
	copy(cols, sc.cols)
	return cols, nil
}

func (s *SQLite) SortAttributes(name string, cols []string) ([]string, error) {
	sc, err := s.table(name)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(cols))
	for _, col := range cols {
		requested[col] = true
	}

	sorted := make([]string, 0, len(cols))
	for _, col := range sc.cols {
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

func (s *SQLite) IndexNames(name string) ([]string, error) {
	sc, err := s.table(name)
	if err != nil {
		return nil, err
	}
	var indexed []string
	for _, col := range sc.cols {
		if col == sc.primary {
			indexed = append(indexed, col)
			continue
		}
		if _, ok := sc.indexes[col]; ok {
			indexed = append(indexed, col)
		}
	}
	return indexed, nil
}

func (s *SQLite) Comparator(name string, op sql.CompOp, column, value string) (sql.Predicate, error) {
	sc, err := s.table(name)
	if err != nil {
		return nil, err
	}
	pos, typ, err := sc.column(column)
	if err != nil {
		return nil, err
	}

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

func (s *SQLite) CreateTable(name, primaryKey string, types []sql.ColumnType, names []string) error {
	if s.IsTable(name) {
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

	defs := make([]string, len(names))
	for i, col := range names {
		defs[i] = quoteIdent(col) + " " + sqliteType(types[i])
		if col == primaryKey {
			defs[i] += " PRIMARY KEY"
		}
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := s.db.Exec(createSQL); err != nil {
		return errors.Wrapf(err, "create table %q", name)
	}

	s.tables[name] = &schema{
		name:    name,
		primary: primaryKey,
		cols:    append([]string(nil), names...),
		types:   append([]sql.ColumnType(nil), types...),
		indexes: make(map[string]sql.IndexKind),
	}
	s.order = append(s.order, name)
	return nil
}

func (s *SQLite) CreateIndex(name, column string, kind sql.IndexKind) error {
	sc, err := s.table(name)
	if err != nil {
		return err
	}
	if _, _, err := sc.column(column); err != nil {
		return err
	}
	if _, ok := sc.indexes[column]; ok || column == sc.primary {
		return errors.Wrapf(ErrIndexExists, "%s.%s", name, column)
	}

	// SQLite picks the physical structure itself; the declared kind is kept
	// as catalog metadata.
	indexSQL := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		quoteIdent("idx_"+name+"_"+column), quoteIdent(name), quoteIdent(column))
	if _, err := s.db.Exec(indexSQL); err != nil {
		return errors.Wrapf(err, "create index on %s.%s", name, column)
	}
	sc.indexes[column] = kind
	return nil
}

func (s *SQLite) Load(name string, cols []string, pred sql.Predicate) (sql.QueryResponse, error) {
	sc, err := s.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	times := make(sql.QueryTimes)
	defer stopwatch(times, fmt.Sprintf("load %s", name))()

	query := fmt.Sprintf("SELECT %s FROM %s", selectList(sc), quoteIdent(name))
	records, err := s.scanRows(sc, query, nil, pred, cols)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (s *SQLite) Search(name string, key sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error) {
	sc, err := s.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	times := make(sql.QueryTimes)
	defer stopwatch(times, fmt.Sprintf("search %s", name))()

	_, typ, err := sc.column(key.Name)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	arg, err := toSQL(typ, key.Value)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", selectList(sc), quoteIdent(name), quoteIdent(key.Name))
	records, err := s.scanRows(sc, query, []interface{}{arg}, pred, cols)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (s *SQLite) RangeSearch(name string, lo, hi sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error) {
	sc, err := s.table(name)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	times := make(sql.QueryTimes)
	defer stopwatch(times, fmt.Sprintf("range search %s", name))()

	column := lo.Name
	if lo == sql.KeyMin {
		column = hi.Name
	}
	_, typ, err := sc.column(column)
	if err != nil {
		return sql.QueryResponse{}, err
	}

	var (
		conds []string
		args  []interface{}
	)
	if lo != sql.KeyMin {
		arg, err := toSQL(typ, lo.Value)
		if err != nil {
			return sql.QueryResponse{}, err
		}
		conds = append(conds, quoteIdent(column)+" >= ?")
		args = append(args, arg)
	}
	if hi != sql.KeyMax {
		arg, err := toSQL(typ, hi.Value)
		if err != nil {
			return sql.QueryResponse{}, err
		}
		conds = append(conds, quoteIdent(column)+" <= ?")
		args = append(args, arg)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", selectList(sc), quoteIdent(name))
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + quoteIdent(column)

	records, err := s.scanRows(sc, query, args, pred, cols)
	if err != nil {
		return sql.QueryResponse{}, err
	}
	return sql.QueryResponse{Records: records, Times: times}, nil
}

func (s *SQLite) Add(name string, values []string) error {
	sc, err := s.table(name)
	if err != nil {
		return err
	}
	if len(values) != len(sc.cols) {
		return errors.Wrapf(ErrValueCount, "%d values for %d columns", len(values), len(sc.cols))
	}

	args := make([]interface{}, len(values))
	placeholders := make([]string, len(values))
	for i, v := range values {
		arg, err := toSQL(sc.types[i], v)
		if err != nil {
			return errors.Wrapf(err, "column %q", sc.cols[i])
		}
		args[i] = arg
		placeholders[i] = "?"
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), selectList(sc), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(insertSQL, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return errors.Wrapf(ErrDuplicateKey, "%s", sc.primary)
		}
		return errors.Wrapf(err, "insert into %q", name)
	}
	return nil
}

func (s *SQLite) Remove(name string, key sql.Attribute) error {
	sc, err := s.table(name)
	if err != nil {
		return err
	}
	_, typ, err := sc.column(key.Name)
	if err != nil {
		return err
	}
	arg, err := toSQL(typ, key.Value)
	if err != nil {
		return err
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(name), quoteIdent(key.Name))
	if _, err := s.db.Exec(deleteSQL, arg); err != nil {
		return errors.Wrapf(err, "delete from %q", name)
	}
	return nil
}

func (s *SQLite) DropTable(name string) error {
	if _, err := s.table(name); err != nil {
		return err
	}
	if _, err := s.db.Exec("DROP TABLE " + quoteIdent(name)); err != nil {
		return errors.Wrapf(err, "drop table %q", name)
	}
	delete(s.tables, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// CSVInsert bulk-loads a headerless CSV whose fields are in schema order.
func (s *SQLite) CSVInsert(name, path string) error {
	return csvInsert(s, name, path)
}

// scanRows runs a query selecting all schema columns, applies the residual
// predicate to each full row, and projects the requested columns.
func (s *SQLite) scanRows(sc *schema, query string, args []interface{}, pred sql.Predicate, cols []string) ([]sql.Record, error) {
	positions, err := sc.positions(cols)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %q", sc.name)
	}
	defer rows.Close()

	var records []sql.Record
	for rows.Next() {
		vals := make([]interface{}, len(sc.cols))
		ptrs := make([]interface{}, len(sc.cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(sql.Record, len(sc.cols))
		for i := range vals {
			row[i] = fromSQL(sc.types[i], vals[i])
		}
		if pred != nil && !pred(row) {
			continue
		}
		records = append(records, project(row, positions))
	}
	return records, rows.Err()
}

func selectList(sc *schema) string {
	quoted := make([]string, len(sc.cols))
	for i, col := range sc.cols {
		quoted[i] = quoteIdent(col)
	}
	return strings.Join(quoted, ", ")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqliteType(typ sql.ColumnType) string {
	switch typ.Kind {
	case sql.Int, sql.Bool:
		return "INTEGER"
	case sql.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}

// toSQL converts field text to a typed driver argument.
func toSQL(typ sql.ColumnType, v string) (interface{}, error) {
	switch typ.Kind {
	case sql.Int:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid INT %q", v)
		}
		return i, nil
	case sql.Float:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Errorf("invalid FLOAT %q", v)
		}
		return f, nil
	case sql.Bool:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Errorf("invalid BOOL %q", v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		if typ.Len > 0 && len(v) > typ.Len {
			return nil, errors.Errorf("value %q exceeds VARCHAR(%d)", v, typ.Len)
		}
		return v, nil
	}
}

// fromSQL renders a scanned value back to field text.
func fromSQL(typ sql.ColumnType, v interface{}) string {
	switch typ.Kind {
	case sql.Bool:
		switch x := v.(type) {
		case int64:
			return strconv.FormatBool(x != 0)
		case bool:
			return strconv.FormatBool(x)
		}
	case sql.Float:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case sql.Int:
		if i, ok := v.(int64); ok {
			return strconv.FormatInt(i, 10)
		}
	}
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
