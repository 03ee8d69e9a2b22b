package target

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// keyword is SQL text emitted verbatim. It is unexported so values decoded
// from remote records can never take this path.
type keyword string

const (
	// Now is the server-side current timestamp.
	Now keyword = "NOW()"
	// Null is the SQL null keyword.
	Null keyword = "NULL"
)

// jsonNumber is the JSON number grammar. ParseFloat alone would also let
// NaN, Infinity, hex floats and underscores through unquoted.
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Literal renders v as a PostgreSQL literal. It is the only place remote
// content is turned into statement text.
//
// nil is NULL, booleans are TRUE/FALSE, numbers are unquoted decimals,
// strings are single-quoted with ' and \ doubled (E'' form when a backslash
// is present), and maps, slices, structs and json.RawMessage are compacted
// to JSON and then quoted as text. Anything else is quoted via fmt.Sprint.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return string(Null)
	case keyword:
		return string(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case json.Number:
		if !jsonNumber.MatchString(string(x)) {
			return QuoteText(string(x))
		}
		return x.String()
	case string:
		return QuoteText(x)
	case json.RawMessage:
		return rawJSONLiteral(x)
	case []byte:
		return QuoteText(string(x))
	case time.Time:
		return QuoteText(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return QuoteText(x.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return string(Null)
		}
		return Literal(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return string(Null)
		}
		return jsonLiteral(v)
	case reflect.Array, reflect.Struct:
		return jsonLiteral(v)
	}
	return QuoteText(fmt.Sprint(v))
}

// QuoteText quotes s as a string literal. Single quotes and backslashes are
// both doubled; they are independent substitutions so neither pass can
// re-escape the other's output.
func QuoteText(s string) string {
	return strings.TrimPrefix(pq.QuoteLiteral(s), " ")
}

// JSONText renders raw as a JSON literal, falling back to def when the
// field was absent from the source record. An explicit JSON null is NULL.
func JSONText(raw json.RawMessage, def string) string {
	if raw == nil {
		return QuoteText(def)
	}
	return rawJSONLiteral(raw)
}

// rawJSONLiteral renders objects and arrays as compact JSON text. A top-level
// scalar is rendered as the value it holds, so a JSON string becomes its
// text rather than its quoted JSON encoding.
func rawJSONLiteral(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return string(Null)
	}
	if c := trimmed[0]; c != '{' && c != '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil || dec.More() {
			return QuoteText(string(raw))
		}
		return Literal(v)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return QuoteText(string(raw))
	}
	return QuoteText(buf.String())
}

func jsonLiteral(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return QuoteText(fmt.Sprint(v))
	}
	return QuoteText(strings.TrimSuffix(buf.String(), "\n"))
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return QuoteText("NaN")
	case math.IsInf(f, 1):
		return QuoteText("Infinity")
	case math.IsInf(f, -1):
		return QuoteText("-Infinity")
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
