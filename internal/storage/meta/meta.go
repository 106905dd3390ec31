// Package meta resolves storage.Query field names against GORM model schemas.
package meta

import (
	"fmt"
	"sync"

	"github.com/Togather-Foundation/eventhub/internal/storage"
	"gorm.io/gorm/schema"
)

var (
	cache sync.Map
	namer = schema.NamingStrategy{}
)

// Naming is the naming strategy every backend uses for tables and columns.
func Naming() schema.Namer { return namer }

// Parse returns the cached schema of model.
func Parse(model any) (*schema.Schema, error) {
	s, err := schema.Parse(model, &cache, namer)
	if err != nil {
		return nil, fmt.Errorf("parse schema %T: %w", model, err)
	}
	return s, nil
}

// MustParse is Parse for models already validated at startup.
func MustParse(model any) *schema.Schema {
	s, err := Parse(model)
	if err != nil {
		panic(err)
	}
	return s
}

// Column is a resolved query field. Relation is nil for a column of the
// queried entity itself.
type Column struct {
	Relation *schema.Relationship
	Field    *schema.Field
}

// Table is the table or join alias the column is read from.
func (c Column) Table(s *schema.Schema) string {
	if c.Relation != nil {
		return c.Relation.Name
	}
	return s.Table
}

// Resolve looks up a storage field name ("column" or "Relation.column").
// Only belongs-to relations can be referenced.
func Resolve(s *schema.Schema, name string) (Column, error) {
	relName, column := storage.SplitField(name)
	if relName == "" {
		field, ok := s.FieldsByDBName[column]
		if !ok {
			return Column{}, fmt.Errorf("%w: %s.%s", storage.ErrUnknownField, s.Table, column)
		}
		return Column{Field: field}, nil
	}

	rel, err := BelongsTo(s, relName)
	if err != nil {
		return Column{}, err
	}
	field, ok := rel.FieldSchema.FieldsByDBName[column]
	if !ok {
		return Column{}, fmt.Errorf("%w: %s.%s", storage.ErrUnknownField, relName, column)
	}
	return Column{Relation: rel, Field: field}, nil
}

// BelongsTo returns the named belongs-to relationship of s.
func BelongsTo(s *schema.Schema, name string) (*schema.Relationship, error) {
	rel, ok := s.Relationships.Relations[name]
	if !ok || rel.Type != schema.BelongsTo {
		return nil, fmt.Errorf("%w: relation %s on %s", storage.ErrUnknownField, name, s.Table)
	}
	return rel, nil
}

// Validate checks every field and relation named by q.
func Validate(s *schema.Schema, q storage.Query) error {
	for _, c := range q.Where {
		if _, err := Resolve(s, c.Field); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if _, err := Resolve(s, o.Field); err != nil {
			return err
		}
	}
	for _, inc := range q.Include {
		if _, err := BelongsTo(s, inc); err != nil {
			return err
		}
	}
	return nil
}

// Joins lists, in first-use order, the relations referenced by conditions or
// ordering of q.
func Joins(q storage.Query) []string {
	var joins []string
	seen := map[string]bool{}
	add := func(field string) {
		rel, _ := storage.SplitField(field)
		if rel != "" && !seen[rel] {
			seen[rel] = true
			joins = append(joins, rel)
		}
	}
	for _, c := range q.Where {
		add(c.Field)
	}
	for _, o := range q.OrderBy {
		add(o.Field)
	}
	return joins
}
