package engine

import (
	stderrors "errors"

	"github.com/kevin-cantwell/relsql/internal/ast"
)

var (
	ErrTableNotFound  = stderrors.New("Table does not exist")
	ErrColumnNotFound = stderrors.New("Column does not exist")
)

// codeFor maps an execution error to the HTTP-like code carried by the
// response: 400 for grammar rejections, 404 for missing tables or columns,
// 500 for anything the engine raised.
func codeFor(err error) int {
	var perr *ast.ParseError
	switch {
	case err == nil:
		return 200
	case stderrors.As(err, &perr):
		return 400
	case stderrors.Is(err, ErrTableNotFound), stderrors.Is(err, ErrColumnNotFound):
		return 404
	default:
		return 500
	}
}
