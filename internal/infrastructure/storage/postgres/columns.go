package postgres

import (
	"reflect"
	"slices"
	"sync"
)

var columnCache sync.Map // reflect.Type -> []string

// ExtractDBColumns lists the "db" tags of T in field order, descending into
// embedded structs such as entity.Identity. Results are cached per type.
//
// Usage:
//
//	var fileColumns = postgres.ExtractDBColumns[files.File]()
//	// ["id", "public_id", "file_name", ...]
func ExtractDBColumns[T any]() []string {
	t := reflect.TypeFor[T]()
	if cached, ok := columnCache.Load(t); ok {
		return slices.Clone(cached.([]string))
	}
	cols := extractColumnsFromType(t)
	columnCache.Store(t, cols)
	return slices.Clone(cols)
}

func extractColumnsFromType(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			cols = append(cols, extractColumnsFromType(field.Type)...)
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}
	return cols
}

// Qualify prefixes each column with a table alias.
func Qualify(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
