package storage

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/relsql/internal/engine"
)

// CSVInsert bulk-loads rows from a CSV file. Fields are positional and must
// match the table's schema order; there is no header row. Each row passes
// through Add, so typing and key constraints apply as for single inserts.
func (m *Memory) CSVInsert(name, path string) error {
	return csvInsert(m, name, path)
}

func csvInsert(eng engine.Engine, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %q", path)
		}
		if err := eng.Add(name, row); err != nil {
			return err
		}
	}
}
