package db

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// Rows represents reader for objects.
type Rows[T any] interface {
	// Next should read next object and return true if object exists.
	Next() bool
	// Row should return current object.
	Row() T
	// Close should close reader.
	Close() error
	// Err should return error that occurred during reading.
	Err() error
}

type rows[T any] struct {
	typ  reflect.Type
	rows *sql.Rows
	err  error
	row  T
}

func (r *rows[T]) Next() bool {
	if !r.rows.Next() {
		return false
	}
	var v any
	v, r.err = scanRow(r.typ, r.rows)
	if r.err == nil {
		r.row = v.(T)
	}
	return r.err == nil
}

func (r *rows[T]) Row() T {
	return r.row
}

func (r *rows[T]) Close() error {
	return r.rows.Close()
}

func (r *rows[T]) Err() error {
	if err := r.rows.Err(); err != nil {
		return err
	}
	return r.err
}

func cloneRow(row any) reflect.Value {
	clone := reflect.New(reflect.TypeOf(row)).Elem()
	var recursive func(row, clone reflect.Value)
	recursive = func(row, clone reflect.Value) {
		t := row.Type()
		for i := 0; i < t.NumField(); i++ {
			if _, ok := t.Field(i).Tag.Lookup("db"); ok {
				clone.Field(i).Set(row.Field(i))
			} else if t.Field(i).Anonymous {
				recursive(row.Field(i), clone.Field(i))
			}
		}
	}
	recursive(reflect.ValueOf(row), clone)
	return clone
}

func scanRow(typ reflect.Type, rows *sql.Rows) (any, error) {
	value := reflect.New(typ).Elem()
	var fields []any
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if _, ok := t.Field(i).Tag.Lookup("db"); ok {
				fields = append(fields, v.Field(i).Addr().Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(value)
	err := rows.Scan(fields...)
	return value.Interface(), err
}

func checkColumns(typ reflect.Type, rows *sql.Rows) error {
	cols := prepareNames(typ)
	rowCols, err := rows.Columns()
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(cols, rowCols) {
		return fmt.Errorf("result has invalid column sequence")
	}
	return nil
}

func prepareNames(typ reflect.Type) []string {
	var cols []string
	var recursive func(reflect.Type)
	recursive = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				cols = append(cols, name)
			} else if t.Field(i).Anonymous {
				recursive(t.Field(i).Type)
			}
		}
	}
	recursive(typ)
	return cols
}

func prepareSelect(typ reflect.Type) string {
	var cols strings.Builder
	for _, name := range prepareNames(typ) {
		if cols.Len() > 0 {
			cols.WriteRune(',')
		}
		cols.WriteString(fmt.Sprintf("%q", name))
	}
	return cols.String()
}

func prepareInsert(
	value reflect.Value, id string,
) (string, string, []any, *int64) {
	var cols strings.Builder
	var keys strings.Builder
	var vals []any
	var idPtr *int64
	var it int
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				if name == id {
					idPtr = v.Field(i).Addr().Interface().(*int64)
					continue
				}
				if it > 0 {
					cols.WriteRune(',')
					keys.WriteRune(',')
				}
				it++
				cols.WriteString(fmt.Sprintf("%q", name))
				keys.WriteString(fmt.Sprintf("$%d", it))
				vals = append(vals, v.Field(i).Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(value)
	return cols.String(), keys.String(), vals, idPtr
}

func prepareUpdate(value reflect.Value, id string) (string, []any) {
	var sets strings.Builder
	var vals []any
	var idValue any
	var it int
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				if name == id {
					idValue = v.Field(i).Interface()
					continue
				}
				if it > 0 {
					sets.WriteRune(',')
				}
				it++
				sets.WriteString(fmt.Sprintf("%q = $%d", name, it))
				vals = append(vals, v.Field(i).Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(value)
	vals = append(vals, idValue)
	return sets.String(), vals
}
