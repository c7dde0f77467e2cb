package engine

import "github.com/kevin-cantwell/relsql/internal/sql"

// Engine is the narrow contract the executor requires from a storage engine.
// Implementations live in internal/storage; tests substitute mocks.
type Engine interface {
	// IsTable reports whether the named table exists.
	IsTable(table string) bool

	// TableNames returns the names of all tables, in creation order.
	TableNames() []string

	// TableAttributes returns the table's column names in schema order.
	TableAttributes(table string) ([]string, error)

	// SortAttributes returns the given subset of columns reordered to schema
	// order. Columns unknown to the table are appended after the known ones;
	// membership checking is the executor's job.
	SortAttributes(table string, cols []string) ([]string, error)

	// IndexNames returns the names of the table's indexed columns.
	IndexNames(table string) ([]string, error)

	// Comparator returns a row predicate evaluating "column op value" with
	// the column's declared type. The predicate captures value by value and
	// outlives the call.
	Comparator(table string, op sql.CompOp, column, value string) (sql.Predicate, error)

	// CreateTable creates a table with the given primary key and columns,
	// types and names in schema order. The engine is the authority on name
	// collisions and type legality.
	CreateTable(table, primaryKey string, types []sql.ColumnType, names []string) error

	// CreateIndex builds a secondary index of the given kind over a column.
	CreateIndex(table, column string, kind sql.IndexKind) error

	// Load performs a full scan, optionally filtered by pred (nil means no
	// filter), projecting the given columns.
	Load(table string, cols []string, pred sql.Predicate) (sql.QueryResponse, error)

	// Search performs a point lookup on an indexed column.
	Search(table string, key sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error)

	// RangeSearch scans an indexed column between lo and hi inclusive.
	// KeyMin and KeyMax denote open endpoints.
	RangeSearch(table string, lo, hi sql.Attribute, pred sql.Predicate, cols []string) (sql.QueryResponse, error)

	// Add inserts one row; values are in schema order.
	Add(table string, values []string) error

	// CSVInsert bulk-loads rows from a CSV file whose fields are in schema
	// order.
	CSVInsert(table, path string) error

	// Remove deletes rows matching a single key attribute.
	Remove(table string, key sql.Attribute) error

	// DropTable removes the table and its indexes.
	DropTable(table string) error
}
