package ast

import "github.com/kevin-cantwell/relsql/internal/sql"

// Statement is a single parsed SQL statement.
type Statement interface {
	stmtNode()
}

// CreateTable represents CREATE TABLE t (col TYPE [PRIMARY KEY], ...).
type CreateTable struct {
	Table   string
	Columns []sql.ColumnSpec
}

func (*CreateTable) stmtNode() {}

// CreateIndex represents CREATE INDEX ON t (col) USING kind.
type CreateIndex struct {
	Table  string
	Column string
	Using  sql.IndexKind
}

func (*CreateIndex) stmtNode() {}

// Select represents SELECT cols FROM t [WHERE dnf]. Star means all columns
// were requested; Columns is nil in that case. Where is nil-length when no
// WHERE clause was present.
type Select struct {
	Table   string
	Columns []string
	Star    bool
	Where   sql.Constraint
}

func (*Select) stmtNode() {}

// SelectBetween represents SELECT cols FROM t WHERE key BETWEEN low AND high.
type SelectBetween struct {
	Table   string
	Columns []string
	Star    bool
	Key     string
	Low     string
	High    string
}

func (*SelectBetween) stmtNode() {}

// Insert represents INSERT INTO t VALUES (...).
//
// Values holds the literals in REVERSE of their textual order. This mirrors
// the right-recursive value list of the original grammar; the executor
// reverses again to restore schema order. Both halves of the contract are
// load-bearing.
type Insert struct {
	Table  string
	Values []string
}

func (*Insert) stmtNode() {}

// InsertFromFile represents INSERT INTO t FROM FILE 'path'.
// Path retains its surrounding quote bytes; the executor strips them.
type InsertFromFile struct {
	Table string
	Path  string
}

func (*InsertFromFile) stmtNode() {}

// Delete represents DELETE FROM t WHERE dnf.
type Delete struct {
	Table string
	Where sql.Constraint
}

func (*Delete) stmtNode() {}

// DropTable represents DROP TABLE t.
type DropTable struct {
	Table string
}

func (*DropTable) stmtNode() {}
