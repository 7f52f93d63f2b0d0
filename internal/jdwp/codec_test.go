package jdwp

import (
	"errors"
	"testing"
)

func TestCodecPrimitives(t *testing.T) {
	sizes := DefaultIDSizes()
	e := NewEncoder(sizes).
		Byte(0x42).
		Bool(true).
		Int(-5).
		Long(1 << 40).
		String("jdwp").
		String("")

	d := NewDecoder(sizes, e.Bytes())
	if got := d.Byte(); got != 0x42 {
		t.Errorf("Byte = %#x, want 0x42", got)
	}
	if got := d.Bool(); !got {
		t.Error("Bool = false, want true")
	}
	if got := d.Int(); got != -5 {
		t.Errorf("Int = %d, want -5", got)
	}
	if got := d.Long(); got != 1<<40 {
		t.Errorf("Long = %d, want %d", got, int64(1)<<40)
	}
	if got := d.String(); got != "jdwp" {
		t.Errorf("String = %q, want %q", got, "jdwp")
	}
	if got := d.String(); got != "" {
		t.Errorf("empty String = %q", got)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
	if rem := d.Remaining(); rem != 0 {
		t.Errorf("Remaining = %d, want 0", rem)
	}
}

func TestCodecIdentifierWidths(t *testing.T) {
	// A VM is free to report narrower ids than the 8-byte default.
	sizes := IDSizes{FieldID: 4, MethodID: 4, ObjectID: 8, ReferenceTypeID: 8, FrameID: 8}

	e := NewEncoder(sizes).
		ObjectID(0xCAFEBABE01).
		FieldID(0x1234).
		MethodID(0xABCD).
		RefTypeID(42).
		FrameID(7)

	want := 8 + 4 + 4 + 8 + 8
	if got := len(e.Bytes()); got != want {
		t.Fatalf("encoded length = %d, want %d", got, want)
	}

	d := NewDecoder(sizes, e.Bytes())
	if got := d.ObjectID(); got != 0xCAFEBABE01 {
		t.Errorf("ObjectID = %#x", got)
	}
	if got := d.FieldID(); got != 0x1234 {
		t.Errorf("FieldID = %#x", got)
	}
	if got := d.MethodID(); got != 0xABCD {
		t.Errorf("MethodID = %#x", got)
	}
	if got := d.RefTypeID(); got != 42 {
		t.Errorf("RefTypeID = %d", got)
	}
	if got := d.FrameID(); got != 7 {
		t.Errorf("FrameID = %d", got)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestCodecValues(t *testing.T) {
	sizes := DefaultIDSizes()
	tests := []struct {
		name string
		v    Value
	}{
		{name: "boolean", v: Value{Tag: TagBoolean, Int: 1}},
		{name: "byte", v: Value{Tag: TagByte, Int: 200}},
		{name: "char", v: Value{Tag: TagChar, Int: 'x'}},
		{name: "negative short", v: Value{Tag: TagShort, Int: -300}},
		{name: "int", v: Value{Tag: TagInt, Int: -42}},
		{name: "long", v: Value{Tag: TagLong, Int: 1 << 50}},
		{name: "float", v: Value{Tag: TagFloat, Float: 1.5}},
		{name: "double", v: Value{Tag: TagDouble, Float: -2.25}},
		{name: "object", v: Value{Tag: TagObject, Object: 26886}},
		{name: "null", v: Value{Tag: TagObject}},
		{name: "string ref", v: Value{Tag: TagString, Object: 99}},
		{name: "array ref", v: Value{Tag: TagArray, Object: 7}},
		{name: "void", v: Value{Tag: TagVoid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(sizes).Value(tt.v)
			d := NewDecoder(sizes, e.Bytes())
			got := d.Value()
			if err := d.Err(); err != nil {
				t.Fatalf("Err = %v", err)
			}
			if got != tt.v {
				t.Errorf("round trip = %+v, want %+v", got, tt.v)
			}
		})
	}
}

func TestCodecUntaggedRegion(t *testing.T) {
	sizes := DefaultIDSizes()
	values := []Value{
		{Tag: TagInt, Int: 1},
		{Tag: TagInt, Int: -2},
		{Tag: TagInt, Int: 3},
	}

	e := NewEncoder(sizes)
	for _, v := range values {
		e.UntaggedValue(v)
	}
	if got := len(e.Bytes()); got != 12 {
		t.Fatalf("untagged int region = %d bytes, want 12", got)
	}

	d := NewDecoder(sizes, e.Bytes())
	for i, want := range values {
		if got := d.UntaggedValue(TagInt); got != want {
			t.Errorf("value %d = %+v, want %+v", i, got, want)
		}
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestCodecLocation(t *testing.T) {
	sizes := DefaultIDSizes()
	loc := Location{TypeTag: TypeTagClass, ClassID: 100, MethodID: 200, Index: 12}

	e := NewEncoder(sizes).Byte(loc.TypeTag).RefTypeID(loc.ClassID).MethodID(loc.MethodID).Long(int64(loc.Index))
	d := NewDecoder(sizes, e.Bytes())
	if got := d.Location(); got != loc {
		t.Errorf("Location = %+v, want %+v", got, loc)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestDecoderStickyError(t *testing.T) {
	d := NewDecoder(DefaultIDSizes(), []byte{0, 0})

	if got := d.Int(); got != 0 {
		t.Errorf("truncated Int = %d, want 0", got)
	}
	if err := d.Err(); !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("Err = %v, want ErrMalformedPacket", err)
	}
	// Every later read keeps returning zero values.
	if got := d.Long(); got != 0 {
		t.Errorf("Long after error = %d", got)
	}
	if got := d.String(); got != "" {
		t.Errorf("String after error = %q", got)
	}
}

func TestDecoderRejectsNegativeStringLength(t *testing.T) {
	e := NewEncoder(DefaultIDSizes()).Int(-1)
	d := NewDecoder(DefaultIDSizes(), e.Bytes())
	_ = d.String()
	if err := d.Err(); !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("Err = %v, want ErrMalformedPacket", err)
	}
}

func TestValueKindPredicates(t *testing.T) {
	tests := []struct {
		v        Value
		isObject bool
		isNull   bool
	}{
		{Value{Tag: TagInt, Int: 0}, false, false},
		{Value{Tag: TagObject, Object: 5}, true, false},
		{Value{Tag: TagObject}, true, true},
		{Value{Tag: TagString}, true, true},
		{Value{Tag: TagThread, Object: 15}, true, false},
		{Value{Tag: TagVoid}, false, false},
	}
	for _, tt := range tests {
		if got := tt.v.IsObject(); got != tt.isObject {
			t.Errorf("IsObject(%+v) = %t, want %t", tt.v, got, tt.isObject)
		}
		if got := tt.v.IsNull(); got != tt.isNull {
			t.Errorf("IsNull(%+v) = %t, want %t", tt.v, got, tt.isNull)
		}
	}
}
