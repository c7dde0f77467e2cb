package engine

import (
	"fmt"
	"io"

	"github.com/kevin-cantwell/relsql/internal/sql"
)

// Response is the externally visible result of a parse call: the most
// recent query's records and columns, the catalog's table names, per-stage
// timings, and an HTTP-like status code.
type Response struct {
	Records     []sql.Record
	ColumnNames []string
	TableNames  []string
	QueryTimes  sql.QueryTimes
	Error       string
	Code        int
}

// Failed reports whether the last parse call ended in an error.
func (r *Response) Failed() bool { return r.Code != 200 }

// Clear resets all collections but leaves the code untouched.
func (r *Response) Clear() {
	r.Records = nil
	r.ColumnNames = nil
	r.TableNames = nil
	r.QueryTimes = nil
}

// Display writes a diagnostic dump of table names and timing stages.
func (r *Response) Display(w io.Writer) {
	for _, table := range r.TableNames {
		fmt.Fprintln(w, table)
	}
	for stage, d := range r.QueryTimes {
		fmt.Fprintf(w, "%s: %s\n", stage, d)
	}
}

func (r *Response) fail(err error) {
	r.Error = err.Error()
	r.Code = codeFor(err)
}

func (r *Response) ok() {
	r.Error = ""
	r.Code = 200
}
