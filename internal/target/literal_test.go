package target

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unquote reads a literal back the way PostgreSQL's lexer does for
// standard ('...') and escape (E'...') string constants.
func unquote(t *testing.T, lit string) string {
	t.Helper()

	escape := false
	switch {
	case strings.HasPrefix(lit, "E'"):
		escape = true
		lit = lit[1:]
	case strings.HasPrefix(lit, "'"):
	default:
		t.Fatalf("not a string literal: %s", lit)
	}
	require.True(t, strings.HasSuffix(lit, "'") && len(lit) >= 2, "unterminated literal %s", lit)
	body := lit[1 : len(lit)-1]

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'':
			require.True(t, i+1 < len(body) && body[i+1] == '\'', "bare quote at %d in %s", i, lit)
			sb.WriteByte('\'')
			i++
		case c == '\\' && escape:
			require.True(t, i+1 < len(body), "dangling backslash in %s", lit)
			switch body[i+1] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(body[i+1])
			}
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func TestLiteralScalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "NULL"},
		{"true", true, "TRUE"},
		{"false", false, "FALSE"},
		{"int", 42, "42"},
		{"negative int64", int64(-7), "-7"},
		{"uint8", uint8(255), "255"},
		{"float", 1.5, "1.5"},
		{"float32", float32(0.25), "0.25"},
		{"whole float", float64(3), "3"},
		{"json number", json.Number("12.50"), "12.50"},
		{"bogus json number", json.Number("1; DROP TABLE x"), "'1; DROP TABLE x'"},
		{"json number exponent", json.Number("-1.5e+3"), "-1.5e+3"},
		{"json number nan", json.Number("NaN"), "'NaN'"},
		{"json number infinity", json.Number("Infinity"), "'Infinity'"},
		{"json number hex float", json.Number("0x1p-2"), "'0x1p-2'"},
		{"json number underscore", json.Number("1_0"), "'1_0'"},
		{"json number leading plus", json.Number("+1"), "'+1'"},
		{"nan", math.NaN(), "'NaN'"},
		{"inf", math.Inf(1), "'Infinity'"},
		{"plain string", "hello", "'hello'"},
		{"empty string", "", "''"},
		{"quote", "it's", "'it''s'"},
		{"backslash", `a\b`, `E'a\\b'`},
		{"both", `it's a\b`, `E'it''s a\\b'`},
		{"now keyword", Now, "NOW()"},
		{"null keyword", Null, "NULL"},
		{"injection", "x'); DROP TABLE threads; --", "'x''); DROP TABLE threads; --'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Literal(tt.in))
		})
	}
}

func TestLiteralPointers(t *testing.T) {
	var nilStr *string
	s := "o'k"
	b := false

	assert.Equal(t, "NULL", Literal(nilStr))
	assert.Equal(t, "'o''k'", Literal(&s))
	assert.Equal(t, "FALSE", Literal(&b))
}

func TestLiteralStructured(t *testing.T) {
	m := map[string]any{"b": []any{1, "x'y"}, "a": nil}
	assert.Equal(t, `'{"a":null,"b":[1,"x''y"]}'`, Literal(m))

	assert.Equal(t, "'[]'", Literal([]string{}))
	assert.Equal(t, "NULL", Literal([]string(nil)))

	// HTML characters are kept as-is, not \u003c escaped
	assert.Equal(t, `'{"html":"<b>&</b>"}'`, Literal(map[string]string{"html": "<b>&</b>"}))
}

func TestLiteralRawJSON(t *testing.T) {
	raw := json.RawMessage(`{ "role": "assistant",
		"content": "line1\nline2 \"quoted\" it's" }`)

	lit := Literal(raw)
	require.True(t, strings.HasPrefix(lit, "E'"), "JSON escapes contain backslashes: %s", lit)

	back := unquote(t, lit)
	assert.JSONEq(t, string(raw), back)
	assert.NotContains(t, back, "\n\t\t", "whitespace should be compacted")

	assert.Equal(t, "NULL", Literal(json.RawMessage("null")))
	assert.Equal(t, "NULL", Literal(json.RawMessage(nil)))
	assert.Equal(t, "'not json'", Literal(json.RawMessage("not json")))
}

func TestLiteralRawJSONScalars(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"plain"`, "'plain'"},
		{"string holding json", `"it's {\"role\":\"user\"}"`, `'it''s {"role":"user"}'`},
		{"string with backslash", `"a\\b"`, `E'a\\b'`},
		{"number", `12.5`, "12.5"},
		{"bool", `true`, "TRUE"},
		{"trailing garbage", `"a" "b"`, `'"a" "b"'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Literal(json.RawMessage(tt.raw)))
		})
	}
}

func TestJSONText(t *testing.T) {
	assert.Equal(t, "'{}'", JSONText(nil, "{}"))
	assert.Equal(t, "'[]'", JSONText(nil, "[]"))
	assert.Equal(t, "NULL", JSONText(json.RawMessage("null"), "{}"))
	assert.Equal(t, `'[1,2]'`, JSONText(json.RawMessage("[1, 2]"), "[]"))
}

func TestLiteralOtherTypes(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "'2025-01-02T03:04:05Z'", Literal(ts))

	id := uuid.MustParse("2fbf0552-87d6-4d12-be25-d54f435bc493")
	assert.Equal(t, "'2fbf0552-87d6-4d12-be25-d54f435bc493'", Literal(id))

	type status string
	assert.Equal(t, "'done'", Literal(status("done")))
	assert.Equal(t, "'[98 99]'", Literal(fmt.Sprint([]byte("bc"))))
}

func TestQuoteTextRoundTrip(t *testing.T) {
	// Every interleaving of quote, backslash and a plain character up to
	// length five must read back unchanged.
	alphabet := []string{`'`, `\`, "a"}
	var inputs []string
	var build func(prefix string, depth int)
	build = func(prefix string, depth int) {
		inputs = append(inputs, prefix)
		if depth == 0 {
			return
		}
		for _, c := range alphabet {
			build(prefix+c, depth-1)
		}
	}
	build("", 5)

	for _, in := range inputs {
		lit := QuoteText(in)
		assert.Equal(t, in, unquote(t, lit), "round trip of %q via %s", in, lit)
		assert.False(t, strings.HasPrefix(lit, " "), "literal must not start with a space: %q", lit)
	}

	extra := []string{`\'`, `'\`, `\\''`, `C:\path\to\it's`, "multi\nline", "ünïcødé ✓"}
	for _, in := range extra {
		assert.Equal(t, in, unquote(t, QuoteText(in)))
	}
}
