package protocol

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
)

const tagName = "wire"

type field struct {
	index int
	name  string
	tag   string
}

var layouts sync.Map // reflect.Type → []field

// Marshaler is implemented by packets whose layout depends on their own
// field values and so cannot be described by tags alone.
type Marshaler interface {
	MarshalWire(buf *bytes.Buffer) error
}

// Unmarshaler is the decoding counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalWire(r *bytes.Reader) error
}

// layout returns the tagged fields of t in declaration order.
func layout(t reflect.Type) []field {
	if l, ok := layouts.Load(t); ok {
		return l.([]field)
	}
	var fields []field
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagName)
		if tag == "" || tag == "-" {
			continue
		}
		fields = append(fields, field{index: i, name: f.Name, tag: tag})
	}
	l, _ := layouts.LoadOrStore(t, fields)
	return l.([]field)
}

// Marshal encodes a Packet struct into bytes using wire struct tags.
func Marshal(p Packet) ([]byte, error) {
	if m, ok := p.(Marshaler); ok {
		var buf bytes.Buffer
		if err := m.MarshalWire(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	v := reflect.ValueOf(p)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("marshal: expected struct, got %s", v.Kind())
	}

	var buf bytes.Buffer
	for _, f := range layout(v.Type()) {
		if err := WriteField(&buf, f.tag, v.Field(f.index).Interface()); err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", f.name, err)
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes into a Packet struct using wire struct tags.
func Unmarshal(data []byte, p Packet) error {
	if u, ok := p.(Unmarshaler); ok {
		r := bytes.NewReader(data)
		if err := u.UnmarshalWire(r); err != nil {
			return err
		}
		if r.Len() != 0 {
			return fmt.Errorf("unmarshal: %d trailing bytes", r.Len())
		}
		return nil
	}

	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("unmarshal: expected non-nil pointer, got %T", p)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal: expected pointer to struct, got pointer to %s", v.Kind())
	}

	r := bytes.NewReader(data)
	for _, f := range layout(v.Type()) {
		val, err := ReadField(r, f.tag)
		if err != nil {
			return fmt.Errorf("unmarshal field %s: %w", f.name, err)
		}

		fv := v.Field(f.index)
		rv := reflect.ValueOf(val)
		if !rv.Type().AssignableTo(fv.Type()) {
			return fmt.Errorf("unmarshal field %s: cannot assign %s to %s", f.name, rv.Type(), fv.Type())
		}
		fv.Set(rv)
	}
	if r.Len() != 0 {
		return fmt.Errorf("unmarshal: %d trailing bytes", r.Len())
	}
	return nil
}
