package domain

import (
	"strings"

	"gorm.io/gorm/clause"
)

// Spec is an immutable conjunction of filter conditions over entities of type T.
// The zero value matches every row.
type Spec[T any] struct {
	exprs []clause.Expression
}

// True returns the spec that matches every row.
func True[T any]() Spec[T] {
	return Spec[T]{}
}

// Where returns a spec holding the given conditions.
func Where[T any](exprs ...clause.Expression) Spec[T] {
	return True[T]().Where(exprs...)
}

// And combines specs into their conjunction. None of the inputs is modified.
func And[T any](specs ...Spec[T]) Spec[T] {
	var out Spec[T]
	for _, s := range specs {
		out = out.And(s)
	}
	return out
}

// And returns the conjunction of s and other backed by a fresh slice.
func (s Spec[T]) And(other Spec[T]) Spec[T] {
	return s.Where(other.exprs...)
}

// Where returns s narrowed by the given conditions.
func (s Spec[T]) Where(exprs ...clause.Expression) Spec[T] {
	if len(exprs) == 0 {
		return s
	}
	merged := make([]clause.Expression, 0, len(s.exprs)+len(exprs))
	merged = append(merged, s.exprs...)
	for _, e := range exprs {
		if e != nil {
			merged = append(merged, e)
		}
	}
	return Spec[T]{exprs: merged}
}

// IsTrue reports whether s carries no conditions.
func (s Spec[T]) IsTrue() bool {
	return len(s.exprs) == 0
}

// Expressions returns a copy of the conditions held by s.
func (s Spec[T]) Expressions() []clause.Expression {
	if len(s.exprs) == 0 {
		return nil
	}
	out := make([]clause.Expression, len(s.exprs))
	copy(out, s.exprs)
	return out
}

// Column names a column of the queried table.
func Column(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

// NotDeleted is the standing condition excluding soft-deleted rows.
func NotDeleted() clause.Expression {
	return clause.Eq{Column: Column("is_deleted"), Value: false}
}

// OnlyDeleted matches soft-deleted rows only.
func OnlyDeleted() clause.Expression {
	return clause.Eq{Column: Column("is_deleted"), Value: true}
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) clause.Expression {
	return clause.Eq{Column: Column(column), Value: value}
}

// Not matches rows whose column differs from value.
func Not(column string, value any) clause.Expression {
	return clause.Neq{Column: Column(column), Value: value}
}

// Gte matches rows whose column is greater than or equal to value.
func Gte(column string, value any) clause.Expression {
	return clause.Gte{Column: Column(column), Value: value}
}

// Lte matches rows whose column is less than or equal to value.
func Lte(column string, value any) clause.Expression {
	return clause.Lte{Column: Column(column), Value: value}
}

// EqualFold matches rows whose column equals value ignoring case.
func EqualFold(column, value string) clause.Expression {
	return clause.Expr{
		SQL:  "LOWER(?) = ?",
		Vars: []any{Column(column), strings.ToLower(value)},
	}
}

// likeEscaper escapes LIKE wildcards so user input is matched literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains matches rows whose column contains value as a substring, ignoring case.
func Contains(column, value string) clause.Expression {
	return clause.Expr{
		SQL:  `LOWER(?) LIKE ? ESCAPE '\'`,
		Vars: []any{Column(column), "%" + likeEscaper.Replace(strings.ToLower(value)) + "%"},
	}
}
