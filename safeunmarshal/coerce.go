package safeunmarshal

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type jsonKind int

const (
	jsonInvalid jsonKind = iota
	jsonNull
	jsonString
	jsonNumber
	jsonBool
	jsonArray
	jsonObject
)

func kindOf(data []byte) jsonKind {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return jsonInvalid
	}
	switch data[0] {
	case '"':
		return jsonString
	case '[':
		return jsonArray
	case '{':
		return jsonObject
	case 't', 'f':
		return jsonBool
	case 'n':
		return jsonNull
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return jsonNumber
	}
	return jsonInvalid
}

// coerce rewrites data so that its scalars match the kinds of t. Values that
// cannot be converted are returned unchanged and left for encoding/json to
// reject.
func coerce(data []byte, t reflect.Type) []byte {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	data = bytes.TrimSpace(data)
	kind := kindOf(data)
	if kind == jsonNull || kind == jsonInvalid {
		return data
	}

	switch t.Kind() {
	case reflect.Struct:
		if kind == jsonObject {
			return coerceObject(data, t)
		}

	case reflect.Map:
		if kind == jsonObject && t.Key().Kind() == reflect.String {
			return coerceMap(data, t.Elem())
		}

	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return data
		}
		return coerceList(data, kind, t.Elem())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return coerceInteger(data, kind)

	case reflect.Float32, reflect.Float64:
		if kind == jsonString {
			s := unquote(data)
			if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				return []byte(strconv.FormatFloat(f, 'g', -1, 64))
			}
		}

	case reflect.Bool:
		var s string
		switch kind {
		case jsonString:
			s = unquote(data)
		case jsonNumber:
			s = string(data)
		default:
			return data
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return []byte(strconv.FormatBool(b))
		}

	case reflect.String:
		if kind == jsonNumber || kind == jsonBool {
			quoted, err := json.Marshal(string(data))
			if err == nil {
				return quoted
			}
		}
	}

	return data
}

func coerceObject(data []byte, t reflect.Type) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return data
	}

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := fieldName(f)
		if name == "" {
			continue
		}
		// encoding/json matches keys case-insensitively, so coercion does too.
		for key, value := range fields {
			if strings.EqualFold(key, name) {
				fields[key] = coerce(value, f.Type)
			}
		}
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return data
	}
	return out
}

func coerceMap(data []byte, elem reflect.Type) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return data
	}
	for key, value := range fields {
		fields[key] = coerce(value, elem)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return data
	}
	return out
}

func coerceList(data []byte, kind jsonKind, elem reflect.Type) []byte {
	var items []json.RawMessage

	switch kind {
	case jsonArray:
		if err := json.Unmarshal(data, &items); err != nil {
			return data
		}
		for i := range items {
			items[i] = coerce(items[i], elem)
		}

	case jsonString:
		if !isScalar(elem) {
			return data
		}
		for _, part := range strings.Split(unquote(data), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			quoted, err := json.Marshal(part)
			if err != nil {
				return data
			}
			items = append(items, coerce(quoted, elem))
		}

	case jsonNumber, jsonBool:
		if !isScalar(elem) {
			return data
		}
		items = []json.RawMessage{coerce(data, elem)}

	default:
		return data
	}

	if items == nil {
		items = []json.RawMessage{}
	}
	out, err := json.Marshal(items)
	if err != nil {
		return data
	}
	return out
}

func coerceInteger(data []byte, kind jsonKind) []byte {
	var s string
	switch kind {
	case jsonString:
		s = unquote(data)
	case jsonNumber:
		s = string(data)
	default:
		return data
	}

	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return []byte(s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return []byte(strconv.FormatInt(int64(f), 10))
	}
	return data
}

func isScalar(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func unquote(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
