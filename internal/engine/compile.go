package engine

import "github.com/kevin-cantwell/relsql/internal/sql"

// conjunctPlan is the compiled form of one AND-group: an optional index
// driver plus the residual row filter for everything the driver does not
// satisfy.
type conjunctPlan struct {
	key      *sql.Condition
	residual sql.Predicate
}

// compileConjunct selects the index driver and builds the residual predicate
// for a conjunction of conditions. The driver is the first condition in
// source order whose column is indexed; every other condition, including
// later indexed ones, becomes part of the residual.
func compileConjunct(eng Engine, table string, conj []sql.Condition, indexed []string) (conjunctPlan, error) {
	var (
		key     *sql.Condition
		filters []sql.Predicate
	)

	for i, cond := range conj {
		if key == nil && contains(indexed, cond.Column) {
			c := conj[i]
			key = &c
			continue
		}
		comp, err := eng.Comparator(table, cond.Op, cond.Column, cond.Value)
		if err != nil {
			return conjunctPlan{}, err
		}
		filters = append(filters, comp)
	}

	return conjunctPlan{key: key, residual: and(filters)}, nil
}

// and folds a list of predicates into a single conjunction. An empty list
// yields the constant-true predicate.
func and(filters []sql.Predicate) sql.Predicate {
	if len(filters) == 0 {
		return sql.True
	}
	return func(rec sql.Record) bool {
		for _, f := range filters {
			if !f(rec) {
				return false
			}
		}
		return true
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
