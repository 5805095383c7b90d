package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"
)

// Table is tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Tabular is implemented by results that lay themselves out as a table.
type Tabular interface {
	Table() *Table
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table aligned with tabwriter.
func (t *Table) Render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// TableFormatter formats data as a table. It accepts *Table, Tabular, a
// slice of structs, or a single struct; anything else is written as JSON.
type TableFormatter struct {
	NoHeaders bool
}

// Format implements Formatter.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch d := data.(type) {
	case nil:
		return nil
	case *Table:
		return d.Render(w, f.NoHeaders)
	case Tabular:
		return d.Table().Render(w, f.NoHeaders)
	}

	t, ok := reflectTable(reflect.ValueOf(data))
	if !ok {
		return (&JSONFormatter{}).Format(w, data)
	}
	return t.Render(w, f.NoHeaders)
}

func reflectTable(v reflect.Value) (*Table, bool) {
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		cols := columns(v.Type())
		for _, c := range cols {
			t.AddRow(c.name, cell(v.Field(c.index)))
		}
		return t, true
	case reflect.Slice, reflect.Array:
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return nil, false
		}
		cols := columns(elem)
		t := &Table{}
		for _, c := range cols {
			t.Headers = append(t.Headers, strings.ToUpper(c.name))
		}
		for i := 0; i < v.Len(); i++ {
			row := v.Index(i)
			if row.Kind() == reflect.Pointer {
				row = row.Elem()
			}
			cells := make([]string, len(cols))
			for j, c := range cols {
				cells[j] = cell(row.Field(c.index))
			}
			t.AddRow(cells...)
		}
		return t, true
	}
	return nil, false
}

type column struct {
	name  string
	index int
}

func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("table") == "-" {
			continue
		}
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func cell(v reflect.Value) string {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	if t, ok := v.Interface().(time.Time); ok {
		if t.IsZero() {
			return "-"
		}
		return t.Format(time.RFC3339)
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = cell(v.Index(i))
		}
		if len(parts) == 0 {
			return "-"
		}
		return strings.Join(parts, ",")
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	}
	return fmt.Sprint(v.Interface())
}
