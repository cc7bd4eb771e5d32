package table

import (
	"bytes"
	"reflect"
	"testing"
)

func TestNew_RejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := New([]string{"a", "a"}, nil); err == nil {
		t.Fatal("duplicate column accepted")
	}
	if _, err := New([]string{"a", "b"}, [][]Value{{1}}); err == nil {
		t.Fatal("short row accepted")
	}
	tb, err := New([]string{"a"}, nil)
	if err != nil {
		t.Fatalf("empty table: %v", err)
	}
	if tb.Len() != 0 || tb.Width() != 1 {
		t.Fatalf("Len=%d Width=%d", tb.Len(), tb.Width())
	}
}

func TestTable_AccessorsCopy(t *testing.T) {
	t.Parallel()

	tb := MustNew([]string{"ID", "v"}, []Value{"x", int64(1)}, []Value{"y", nil})

	cols := tb.Columns()
	cols[0] = "mutated"
	if tb.Columns()[0] != "ID" {
		t.Fatal("Columns() exposed internal slice")
	}

	row := tb.Row(0)
	row[0] = "mutated"
	if tb.At(0, 0) != "x" {
		t.Fatal("Row() exposed internal slice")
	}

	col, ok := tb.Column("v")
	if !ok || !reflect.DeepEqual(col, []Value{int64(1), nil}) {
		t.Fatalf("Column(v)=%v,%v", col, ok)
	}
	if _, ok := tb.Column("missing"); ok {
		t.Fatal("Column(missing) ok")
	}
	if v, ok := tb.Get(1, "ID"); !ok || v != "y" {
		t.Fatalf("Get=%v,%v", v, ok)
	}
}

func TestTable_EqualIsTypeSensitive(t *testing.T) {
	t.Parallel()

	a := MustNew([]string{"v"}, []Value{int64(1)})
	b := MustNew([]string{"v"}, []Value{float64(1)})
	c := MustNew([]string{"v"}, []Value{int64(1)})
	if a.Equal(b) {
		t.Fatal("int64(1) and float64(1) compared equal")
	}
	if !a.Equal(c) {
		t.Fatal("identical tables not equal")
	}
	if a.Equal(MustNew([]string{"w"}, []Value{int64(1)})) {
		t.Fatal("different column names compared equal")
	}
}

func TestInfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Value
	}{
		{"", nil},
		{"   ", nil},
		{"42", int64(42)},
		{" -7 ", int64(-7)},
		{"6.7", 6.7},
		{"1e3", 1000.0},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"NH3 Total", "NH3 Total"},
	}
	for _, tc := range tests {
		if got := Infer(tc.in); got != tc.want {
			t.Errorf("Infer(%q)=%#v; want %#v", tc.in, got, tc.want)
		}
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Value
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{int64(1990), "1990"},
		{100.0, "100"},
		{12.5, "12.5"},
		{true, "true"},
	}
	for _, tc := range tests {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%#v)=%q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestUniqueHeaders(t *testing.T) {
	t.Parallel()

	got := UniqueHeaders([]string{"a", "", "a", "a.1", "a", " b "})
	want := []string{"a", "Unnamed: 1", "a.1", "a.1.1", "a.2", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UniqueHeaders=%q; want %q", got, want)
	}
}

func TestMarshalCSV(t *testing.T) {
	t.Parallel()

	tb := MustNew([]string{"Year", "Pollutant", "Value"},
		[]Value{int64(1990), "NH3", 100.0},
		[]Value{int64(1991), "NOx, total", nil},
	)
	b, err := MarshalCSV(tb)
	if err != nil {
		t.Fatalf("MarshalCSV: %v", err)
	}
	want := "Year,Pollutant,Value\n1990,NH3,100\n1991,\"NOx, total\",\n"
	if string(b) != want {
		t.Fatalf("csv=%q; want %q", b, want)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, MustNew([]string{"Year"})); err != nil || buf.String() != "Year\n" {
		t.Fatalf("empty table csv=%q err=%v", buf.String(), err)
	}
}
