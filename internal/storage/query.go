package storage

import "strings"

// Op is a comparison operator understood by every repository backend.
type Op int

const (
	OpEq Op = iota
	OpContains
	OpGte
	OpLte
	OpLt
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpContains:
		return "contains"
	case OpGte:
		return "gte"
	case OpLte:
		return "lte"
	case OpLt:
		return "lt"
	default:
		return "unknown"
	}
}

// Condition compares one column against a value. Field is the column name of
// the queried entity, or "Relation.column" for a column of a belongs-to
// relation.
type Condition struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Contains matches a substring of a text column.
func Contains(field, value string) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

func Gte(field string, value any) Condition {
	return Condition{Field: field, Op: OpGte, Value: value}
}

func Lte(field string, value any) Condition {
	return Condition{Field: field, Op: OpLte, Value: value}
}

func LessThan(field string, value any) Condition {
	return Condition{Field: field, Op: OpLt, Value: value}
}

// Order sorts by one column; Field follows the same rules as Condition.Field.
type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Query describes a filtered, ordered read with eager-loaded relations.
// The zero value selects every row in store order.
type Query struct {
	Where   []Condition
	OrderBy []Order
	Include []string
}

// Filter returns a query matching all conditions.
func Filter(conditions ...Condition) Query {
	return Query{Where: conditions}
}

// Sorted returns a copy of q with order appended.
func (q Query) Sorted(order ...Order) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), order...)
	return q
}

// Including returns a copy of q that eager-loads the named relations.
func (q Query) Including(relations ...string) Query {
	q.Include = append(append([]string(nil), q.Include...), relations...)
	return q
}

// SplitField splits "Relation.column" into its parts. A plain column returns
// an empty relation.
func SplitField(field string) (relation, column string) {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i], field[i+1:]
	}
	return "", field
}
