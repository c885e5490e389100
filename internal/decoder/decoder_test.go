package decoder

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/jacoelho/feedjson/internal/jsonerr"
	"github.com/jacoelho/feedjson/internal/keytrie"
	"github.com/jacoelho/feedjson/internal/value"
)

const statusLine = `{"created_at":"Wed Aug 27 13:08:45 +0000 2008","id":852,"id_str":"852",` +
	`"text":"\"Hello\" ！ café 😀","truncated":false,"favorited":False,` +
	`"in_reply_to_status_id":null,"in_reply_to_user_id":null,"geo":null,"coordinates":null,` +
	`"entities":{"urls":[{"url":"http:\/\/t.co\/x","expanded_url":null,"indices":[0,19]}],` +
	`"hashtags":[],"user_mentions":[]},"retweet_count":+3,"possibly_sensitive":TRUE,` +
	`"user":{"id":6253282,"id_str":"6253282","name":"API","followers_count":1.2345e6}}`

var validDocs = map[string]string{
	"status":  statusLine,
	"delete":  `{"delete":{"status":{"id":1234,"id_str":"1234","user_id":3,"user_id_str":"3"}}}`,
	"event":   `{"event":"favorite","created_at":"Sat Sep 04 16:10:54 +0000 2010","target":{"id":1},"source":{"id":2},"target_object":{}}`,
	"friends": `{"friends":[1497,169686021,790205,15211564]}`,
	"limit":   `{"limit":{"track":1234}}`,
	"nested":  ` [ [ ], { }, [1, -2.5, 3e2, "x"], {"a": {"b": {"c": [true, false, null]}}} ] `,
	"scalar":  `"just a string"`,
	"long":    `{"description":"` + strings.Repeat("abcdefghij", 40) + `\n` + strings.Repeat("z", 90) + `"}`,
	"numbers": `[0, -0, 1234567890, 9007199254740993, -9223372036854775808, 0.5, 1.2345, 1234567890e0]`,
}

func parseAll(t *testing.T, doc string) *value.Value {
	t.Helper()
	v, err := New().ParseString(doc)
	require.NoError(t, err)
	return v
}

func TestNumericPrecision(t *testing.T) {
	v := parseAll(t, "1234567890e0")
	require.False(t, v.IsInteger())
	require.Equal(t, 1234567890.0, v.AsFloat64())

	v = parseAll(t, "1.2345")
	require.Equal(t, 1.2345, v.AsFloat64())

	v = parseAll(t, "-543.21e-4")
	require.InDelta(t, -0.054321, v.AsFloat64(), 1e-7)

	v = parseAll(t, "9007199254740993")
	require.True(t, v.IsInteger())
	require.Equal(t, int64(9007199254740993), v.AsInt64())

	v = parseAll(t, "+42")
	require.True(t, v.Equal(42))
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `"abc"`, want: "abc"},
		{name: "empty", input: `""`, want: ""},
		{name: "simple escapes", input: `"\"q\" \\ \/ \b\f\n\r\t"`, want: "\"q\" \\ / \b\f\n\r\t"},
		{name: "full width", input: `"！？"`, want: "！？"},
		{name: "raw utf8", input: `"café ！"`, want: "café ！"},
		{name: "surrogate pair", input: `"\ud83d\ude00"`, want: "😀"},
		{name: "escaped bmp", input: `"\uff01\u00E9"`, want: "！é"},
		{name: "lone high surrogate", input: `"\ud83dx"`, want: "�x"},
		{name: "lone low surrogate", input: `"\ude00"`, want: "�"},
		{name: "high surrogate before raw text", input: `"\ud83d😀"`, want: "�😀"},
		{name: "unknown escape", input: `"a\qb"`, want: `a\qb`},
		{name: "unknown escape before quote", input: `"a\'"`, want: `a\'`},
		{name: "short unicode escape", input: `"\u12G4"`, want: `\u12G4`},
		{name: "unicode escape without digits", input: `"\u"`, want: `\u`},
		{name: "long", input: `"` + strings.Repeat("0123456789", 30) + `\t"`, want: strings.Repeat("0123456789", 30) + "\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := parseAll(t, tt.input)
			require.Equal(t, value.KindString, v.Kind())
			require.Equal(t, tt.want, v.AsString())
		})
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  *value.Value
	}{
		{"true", value.True},
		{"TRUE", value.True},
		{"tRuE", value.True},
		{"false", value.False},
		{"False", value.False},
		{"null", value.Null},
		{"NULL", value.Null},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Same(t, tt.want, parseAll(t, tt.input))
		})
	}
}

func TestReadFalseReturnsFalse(t *testing.T) {
	v := parseAll(t, `[false]`)
	require.Same(t, value.False, v.Index(0))
	require.NotSame(t, value.True, v.Index(0))
	require.False(t, v.Index(0).AsBool())
}

func TestNullEquivalence(t *testing.T) {
	v := parseAll(t, `{"geo":null}`)
	require.True(t, v.Get("geo").Equal(nil))
	require.True(t, v.Get("geo").IsNull())
	require.False(t, v.Get("geo").Equal(value.EmptyObject))
	require.True(t, v.Get("missing").Equal(nil))
}

func TestEmptyContainers(t *testing.T) {
	require.Same(t, value.EmptyArray, parseAll(t, "[]"))
	require.Same(t, value.EmptyArray, parseAll(t, "[ \n\t]"))
	require.Same(t, value.EmptyObject, parseAll(t, "{}"))
	require.Same(t, value.EmptyObject, parseAll(t, " { } "))
}

func TestStatus(t *testing.T) {
	v := parseAll(t, statusLine)

	require.Equal(t, "852", v.Get("id_str").AsString())
	require.Equal(t, int64(852), v.Get("id").AsInt64())
	require.Equal(t, `"Hello" ！ café 😀`, v.Get("text").AsString())
	require.Same(t, value.False, v.Get("truncated"))
	require.Same(t, value.False, v.Get("favorited"))
	require.Same(t, value.True, v.Get("possibly_sensitive"))
	require.Equal(t, int64(3), v.Get("retweet_count").AsInt64())
	require.Equal(t, "http://t.co/x", v.Get("entities").Get("urls").Index(0).Get("url").AsString())
	require.Equal(t, 19, v.Get("entities").Get("urls").Index(0).Get("indices").Index(1).AsInt())
	require.Same(t, value.EmptyArray, v.Get("entities").Get("hashtags"))
	require.Equal(t, 1234500.0, v.Get("user").Get("followers_count").AsFloat64())
	require.True(t, v.Get("in_reply_to_status_id").IsNull())
	require.False(t, v.ContainsKey("place"))
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		msg    string
		offset int64
	}{
		{name: "empty", input: "", msg: "unexpected end of input, value expected", offset: 0},
		{name: "blank", input: "  \n", msg: "unexpected end of input, value expected", offset: 3},
		{name: "invalid token", input: "@", msg: "invalid token found: '@'", offset: 0},
		{name: "unterminated object", input: `{"a":`, msg: "unexpected end of input, value expected", offset: 5},
		{name: "object without close", input: `{"a":1`, msg: "object is not closed", offset: 6},
		{name: "open brace", input: `{`, msg: "object is not closed", offset: 1},
		{name: "unterminated string", input: `"abc`, msg: "string is not closed", offset: 4},
		{name: "unterminated key", input: `{"ab`, msg: "string is not closed", offset: 4},
		{name: "unterminated escape", input: `"ab\`, msg: "string is not closed", offset: 4},
		{name: "unterminated unicode", input: `"\u12`, msg: "string is not closed", offset: 5},
		{name: "array without close", input: `[1,2`, msg: "array is not closed", offset: 4},
		{name: "open bracket", input: `[`, msg: "array is not closed", offset: 1},
		{name: "missing comma", input: `[1 2]`, msg: "',' or ']' expected in array", offset: 3},
		{name: "trailing comma in array", input: `[1,]`, msg: "invalid token found: ']'", offset: 3},
		{name: "unquoted key", input: `{a:1}`, msg: `'"' expected for object key`, offset: 1},
		{name: "trailing comma in object", input: `{"a":1,}`, msg: `'"' expected for object key`, offset: 7},
		{name: "missing colon", input: `{"a" 1}`, msg: "':' expected after object key", offset: 5},
		{name: "missing object comma", input: `{"a":1 "b":2}`, msg: "',' or '}' expected in object", offset: 7},
		{name: "duplicate key", input: `{"a":1,"a":2}`, msg: `duplicated key detected: "a"`, offset: 10},
		{name: "sign only", input: `-`, msg: "number is required after the sign", offset: 1},
		{name: "sign then letter", input: `+x`, msg: "number is required after the sign", offset: 1},
		{name: "decimal point only", input: `1.`, msg: "number is required after the decimal point", offset: 2},
		{name: "exponent only", input: `1e`, msg: "number is required in the exponent", offset: 2},
		{name: "signed exponent only", input: `1e+`, msg: "number is required in the exponent", offset: 3},
		{name: "truncated literal", input: `tru`, msg: `unexpected end of input in "true"`, offset: 3},
		{name: "wrong literal", input: `nul1`, msg: `invalid literal, "null" expected`, offset: 3},
		{name: "trailing content", input: `123 456`, msg: "unexpected content after the end of the value", offset: 4},
		{name: "trailing literal", input: `truex`, msg: "unexpected content after the end of the value", offset: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New().ParseString(tt.input)
			require.Nil(t, v)
			require.ErrorIs(t, err, jsonerr.ErrSyntax)

			var syntaxErr *jsonerr.SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			require.Equal(t, tt.msg, syntaxErr.Msg)
			require.Equal(t, tt.offset, syntaxErr.Offset)
		})
	}
}

func TestSyntaxErrorRendering(t *testing.T) {
	_, err := New().ParseString(`{"text":tru}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid literal, "true" expected at offset 11`)
	require.Contains(t, err.Error(), "\n\":tru}\n     ^")
}

func TestStreamMatchesString(t *testing.T) {
	readers := map[string]func(string) io.Reader{
		"one byte": func(s string) io.Reader { return iotest.OneByteReader(strings.NewReader(s)) },
		"half":     func(s string) io.Reader { return iotest.HalfReader(strings.NewReader(s)) },
		"data err": func(s string) io.Reader { return iotest.DataErrReader(strings.NewReader(s)) },
	}
	sizes := []int{1, 3, 7, 64, DefaultBufferSize}

	for name, doc := range validDocs {
		want := parseAll(t, doc)

		for readerName, newReader := range readers {
			for _, size := range sizes {
				got, err := New(WithBufferSize(size)).ParseReader(newReader(doc))
				require.NoError(t, err, "%s via %s, buffer %d", name, readerName, size)
				require.True(t, value.DeepEqual(want, got), "%s via %s, buffer %d", name, readerName, size)
			}
		}
	}
}

func TestStreamErrorsMatchString(t *testing.T) {
	invalid := []string{
		`{"a":1,"a":2}`,
		`{"text":"abc`,
		`[1, 2, 3 4]`,
		`{"id": 12, "user": {"name": "x"}} trailing`,
		`{"n": 1.e5}`,
		`{"in_reply_to_status_id":1,"in_reply_to_status_id":2}`,
	}

	for _, doc := range invalid {
		_, wantErr := New().ParseString(doc)
		require.Error(t, wantErr)
		var want *jsonerr.SyntaxError
		require.ErrorAs(t, wantErr, &want)

		for _, size := range []int{1, 2, 5} {
			_, gotErr := New(WithBufferSize(size)).ParseReader(strings.NewReader(doc))
			var got *jsonerr.SyntaxError
			require.ErrorAs(t, gotErr, &got, doc)
			require.Equal(t, want.Msg, got.Msg, doc)
			require.Equal(t, want.Offset, got.Offset, doc)
		}
	}
}

func TestReadErrors(t *testing.T) {
	errBoom := errors.New("connection reset")

	_, err := New().ParseReader(io.MultiReader(strings.NewReader(`{"a":`), iotest.ErrReader(errBoom)))
	require.ErrorIs(t, err, errBoom)
	require.ErrorIs(t, err, jsonerr.ErrSyntax)
	require.Contains(t, err.Error(), "caused by: connection reset")

	_, err = New().ParseReader(io.MultiReader(strings.NewReader(`{"a":1}`), iotest.ErrReader(errBoom)))
	require.ErrorIs(t, err, errBoom)

	var syntaxErr *jsonerr.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Equal(t, "input read failed", syntaxErr.Msg)
}

func TestKeyInterning(t *testing.T) {
	d := New()

	for range 2 {
		v, err := d.ParseString(`{"text":"a","user":{"text":"b"}}`)
		require.NoError(t, err)
		require.Equal(t, "b", v.Get("user").Get("text").AsString())
	}

	require.Equal(t, Stats{Hits: 4, Misses: 2}, d.Stats())
	require.Equal(t, 2, d.Digger().Count())
}

func TestKeyPrefixesAndDivergence(t *testing.T) {
	d := New()

	_, err := d.ParseString(`{"in_reply_to_status_id":1}`)
	require.NoError(t, err)

	v, err := d.ParseString(`{"in_reply":2}`)
	require.NoError(t, err)
	require.Equal(t, []string{"in_reply"}, v.Keys())
	require.Equal(t, uint64(1), d.Stats().Prefixes)

	v, err = d.ParseString(`{"in_reply_to_user_id":3}`)
	require.NoError(t, err)
	require.Equal(t, int64(3), v.Get("in_reply_to_user_id").AsInt64())

	v, err = d.ParseString(`{"in_reply_to_status_id_str":"4","in_reply":5}`)
	require.NoError(t, err)
	require.Equal(t, "4", v.Get("in_reply_to_status_id_str").AsString())
	require.Equal(t, int64(5), v.Get("in_reply").AsInt64())

	trie := d.Digger().Trie()
	for _, key := range []string{"in_reply_to_status_id", "in_reply", "in_reply_to_user_id", "in_reply_to_status_id_str"} {
		require.True(t, interned(trie, key), key)
	}
	require.Equal(t, 4, trie.Count())
}

func interned(trie *keytrie.Trie, key string) bool {
	d := trie.NewDigger()
	d.Initialize()
	for i := 0; i < len(key); i++ {
		if !d.DigNextChar(key[i]) {
			return false
		}
	}
	d.Complete()
	item, ok := d.PointingItem()
	return ok && item == key && d.ItemValidLength() == len(key)
}

func TestEscapedKeys(t *testing.T) {
	d := New()

	_, err := d.ParseString(`{"text":1}`)
	require.NoError(t, err)

	v, err := d.ParseString(`{"te\u0078t":2,"t\u0065xt2":3}`)
	require.NoError(t, err)
	require.Equal(t, []string{"text", "text2"}, v.Keys())
	require.Equal(t, int64(2), v.Get("text").AsInt64())
	require.Equal(t, uint64(3), d.Stats().Misses)

	_, err = d.ParseString(`{"text":1,"te\u0078t":2}`)
	require.ErrorContains(t, err, `duplicated key detected: "text"`)
}

func TestWithoutInterning(t *testing.T) {
	d := New(WithoutInterning())
	require.Nil(t, d.Digger())

	v, err := d.ParseString(statusLine)
	require.NoError(t, err)
	require.True(t, value.DeepEqual(parseAll(t, statusLine), v))
	require.Equal(t, Stats{}, d.Stats())
}

func TestSharedKeyCache(t *testing.T) {
	shared := keytrie.NewShared()
	want := parseAll(t, statusLine)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := New(WithKeyCache(shared))
			for range 50 {
				v, err := d.ParseString(statusLine)
				if err != nil || !value.DeepEqual(want, v) {
					t.Errorf("shared decode mismatch: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, parsedKeyCount(want), shared.Count())
}

// parsedKeyCount counts the distinct object keys in v.
func parsedKeyCount(v *value.Value) int {
	seen := map[string]struct{}{}
	var walk func(*value.Value)
	walk = func(v *value.Value) {
		switch v.Kind() {
		case value.KindObject:
			for _, k := range v.Keys() {
				seen[k] = struct{}{}
				walk(v.Get(k))
			}
		case value.KindArray:
			for _, item := range v.Items() {
				walk(item)
			}
		}
	}
	walk(v)
	return len(seen)
}

func TestDecoderReuseAfterError(t *testing.T) {
	d := New()

	_, err := d.ParseString(`{"user":{"id":`)
	require.Error(t, err)

	v, err := d.ParseString(`{"user":{"id":7}}`)
	require.NoError(t, err)
	require.Equal(t, int64(7), v.Get("user").Get("id").AsInt64())
}

func TestParseBytesDoesNotRetainInput(t *testing.T) {
	b := []byte(`{"key":"value"}`)
	v, err := New().ParseBytes(b)
	require.NoError(t, err)

	copy(b, strings.Repeat("x", len(b)))
	require.Equal(t, "value", v.Get("key").AsString())
	require.Equal(t, []string{"key"}, v.Keys())
}

func TestDeepNesting(t *testing.T) {
	depth := jsonerr.MaxDepth
	doc := strings.Repeat(`[`, depth) + strings.Repeat(`]`, depth)

	v, err := New().ParseString(doc)
	require.NoError(t, err)
	require.Equal(t, 1, v.Len())
}

func TestNestingLimit(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		offset int64
	}{
		{
			name:   "arrays",
			doc:    strings.Repeat(`[`, jsonerr.MaxDepth+1) + strings.Repeat(`]`, jsonerr.MaxDepth+1),
			offset: jsonerr.MaxDepth,
		},
		{
			name:   "objects",
			doc:    strings.Repeat(`{"a":`, jsonerr.MaxDepth+1) + `1` + strings.Repeat(`}`, jsonerr.MaxDepth+1),
			offset: 5 * jsonerr.MaxDepth,
		},
		{
			name:   "empty container past the limit",
			doc:    strings.Repeat(`[`, jsonerr.MaxDepth) + `{}` + strings.Repeat(`]`, jsonerr.MaxDepth),
			offset: jsonerr.MaxDepth,
		},
		{
			name:   "line of brackets",
			doc:    strings.Repeat(`[`, 4<<20),
			offset: jsonerr.MaxDepth,
		},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, parse := range []func(string) (*value.Value, error){
				d.ParseString,
				func(s string) (*value.Value, error) {
					return New(WithBufferSize(3)).ParseReader(strings.NewReader(s))
				},
			} {
				_, err := parse(tt.doc)

				var syntaxErr *jsonerr.SyntaxError
				require.ErrorAs(t, err, &syntaxErr)
				require.Equal(t, jsonerr.TooDeep, syntaxErr.Msg)
				require.Equal(t, tt.offset, syntaxErr.Offset)
			}
		})
	}

	v, err := d.ParseString(`[[1]]`)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Index(0).Index(0).AsInt64())
}

func TestPackageHelpers(t *testing.T) {
	v, err := ParseString(`{"a":[1,2]}`)
	require.NoError(t, err)
	require.Equal(t, 2, v.Get("a").Len())

	v, err = ParseBytes([]byte(`"x"`))
	require.NoError(t, err)
	require.Equal(t, "x", v.AsString())

	v, err = ParseReader(strings.NewReader(` null `))
	require.NoError(t, err)
	require.True(t, v.IsNull())

	_, err = ParseString(`[`)
	require.ErrorIs(t, err, jsonerr.ErrSyntax)
}

func TestPooledTrieIsBounded(t *testing.T) {
	d := New()
	for i := range pooledKeyLimit + 1 {
		d.Digger().Add("id_" + strconv.Itoa(i))
	}
	require.Greater(t, d.Digger().Count(), pooledKeyLimit)

	release(d)
	require.Equal(t, 0, d.Digger().Count())
}
