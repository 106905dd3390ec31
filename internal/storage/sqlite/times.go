package sqlite

import (
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var timeType = reflect.TypeFor[time.Time]()

// SQLite keeps timestamps as text and compares them as strings, so every
// stored time must carry the same offset.
func registerTimeCallbacks(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("eventhub:utc_times", utcTimes); err != nil {
		return fmt.Errorf("register create callback: %w", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register("eventhub:utc_times", utcTimes); err != nil {
		return fmt.Errorf("register update callback: %w", err)
	}
	return nil
}

func utcTimes(db *gorm.DB) {
	stmt := db.Statement
	if stmt.Schema == nil {
		return
	}
	rv := reflect.Indirect(stmt.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			utcFields(db, stmt.Schema, reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		utcFields(db, stmt.Schema, rv)
	}
}

func utcFields(db *gorm.DB, s *schema.Schema, rv reflect.Value) {
	ctx := db.Statement.Context
	for _, field := range s.Fields {
		if field.FieldType != timeType {
			continue
		}
		v, zero := field.ValueOf(ctx, rv)
		if zero {
			continue
		}
		if t, ok := v.(time.Time); ok && t.Location() != time.UTC {
			if err := field.Set(ctx, rv, t.UTC()); err != nil {
				_ = db.AddError(err)
			}
		}
	}
}
