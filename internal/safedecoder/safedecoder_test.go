package safedecoder

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/jacoelho/feedjson/internal/decoder"
	"github.com/jacoelho/feedjson/internal/jsonerr"
	"github.com/jacoelho/feedjson/internal/value"
)

var corpus = []string{
	`{"created_at":"Wed Aug 27 13:08:45 +0000 2008","id":852,"id_str":"852","text":"\"Hello\" ！ é 😀","truncated":false,` +
		`"entities":{"urls":[{"url":"http:\/\/t.co\/x","indices":[0,19]}],"hashtags":[],"user_mentions":[]},` +
		`"in_reply_to_status_id":null,"retweet_count":+3,"possibly_sensitive":TRUE,"user":{"id":6253282,"id_str":"6253282","followers_count":1.2345e6}}`,
	`{"delete":{"status":{"id":1234,"id_str":"1234","user_id":3,"user_id_str":"3"}}}`,
	`{"scrub_geo":{"user_id":14090452,"user_id_str":"14090452","up_to_status_id":23260136625,"up_to_status_id_str":"23260136625"}}`,
	`{"limit":{"track":1234}}`,
	`{"event":"follow","created_at":"Sat Sep 04 16:10:54 +0000 2010","target":{"id":1},"source":{"id":2},"target_object":null}`,
	`{"friends":[1497,169686021,790205,15211564]}`,
	`{"status_withheld":{"id":1,"user_id":2,"withheld_in_countries":["DE","AR"]}}`,
	`{"disconnect":{"code":4,"stream_name":"<name>","reason":"<reason>"}}`,
	`{"warning":{"code":"FALLING_BEHIND","message":"Your connection is falling behind","percent_full":60}}`,
	` [ [], {}, [1, -2.5, 3e2, "x", nUlL], {"a": {"b": {"c": [true, FALSE, null]}}} ] `,
	`"\q \u12G4 \ud83dx \ude00"`,
	`[0, -0, 9007199254740993, -9223372036854775808, 9223372036854775808, 0.5, 1234567890e0, -543.21e-4, 1E400]`,
	`{"description":"` + strings.Repeat("abcdefghij", 40) + `"}`,
	// invalid
	``,
	`   `,
	`@`,
	`{"a":`,
	`{"a":1`,
	`"abc`,
	`"ab\`,
	`"\u12`,
	`[1,2`,
	`[1 2]`,
	`[1,]`,
	`{a:1}`,
	`{"a":1,}`,
	`{"a" 1}`,
	`{"a":1 "b":2}`,
	`{"a":1,"a":2}`,
	`{"user":{"id":1,"id":2}}`,
	`-`,
	`+x`,
	`1.`,
	`1e`,
	`1e+`,
	`tru`,
	`nul1`,
	`123 456`,
	`{"id":1} {"id":2}`,
	`[[[[[`,
	`{"a":[{"b":}]}`,
	strings.Repeat(`[`, jsonerr.MaxDepth) + strings.Repeat(`]`, jsonerr.MaxDepth),
	strings.Repeat(`[`, jsonerr.MaxDepth+1) + strings.Repeat(`]`, jsonerr.MaxDepth+1),
	strings.Repeat(`{"a":[`, jsonerr.MaxDepth/2) + `{}` + strings.Repeat(`]}`, jsonerr.MaxDepth/2),
	strings.Repeat(`{"a":[`, jsonerr.MaxDepth/2) + `7` + strings.Repeat(`]}`, jsonerr.MaxDepth/2),
}

func TestMatchesDecoder(t *testing.T) {
	for _, doc := range corpus {
		want, wantErr := decoder.New().ParseString(doc)
		got, gotErr := New().ParseString(doc)

		if wantErr != nil {
			require.Error(t, gotErr, doc)

			var wantSyntax, gotSyntax *jsonerr.SyntaxError
			require.ErrorAs(t, wantErr, &wantSyntax, doc)
			require.ErrorAs(t, gotErr, &gotSyntax, doc)
			require.Equal(t, wantSyntax.Msg, gotSyntax.Msg, doc)
			require.Equal(t, wantSyntax.Offset, gotSyntax.Offset, doc)
			continue
		}

		require.NoError(t, gotErr, doc)
		require.True(t, value.DeepEqual(want, got), doc)
	}
}

func TestReaderMatchesString(t *testing.T) {
	for _, doc := range corpus {
		want, wantErr := New().ParseString(doc)
		got, gotErr := New().ParseReader(iotest.OneByteReader(strings.NewReader(doc)))

		if wantErr != nil {
			var wantSyntax, gotSyntax *jsonerr.SyntaxError
			require.ErrorAs(t, wantErr, &wantSyntax, doc)
			require.ErrorAs(t, gotErr, &gotSyntax, doc)
			require.Equal(t, wantSyntax.Msg, gotSyntax.Msg, doc)
			require.Equal(t, wantSyntax.Offset, gotSyntax.Offset, doc)
			continue
		}

		require.NoError(t, gotErr, doc)
		require.True(t, value.DeepEqual(want, got), doc)
	}
}

func TestFalseLiteral(t *testing.T) {
	v, err := ParseString(`false`)
	require.NoError(t, err)
	require.Same(t, value.False, v)
}

func TestEmptyContainers(t *testing.T) {
	v, err := ParseString(`[]`)
	require.NoError(t, err)
	require.Same(t, value.EmptyArray, v)

	v, err = ParseString(`{ }`)
	require.NoError(t, err)
	require.Same(t, value.EmptyObject, v)
}

func TestDeepNestingIsIterative(t *testing.T) {
	depth := jsonerr.MaxDepth / 2
	doc := strings.Repeat(`[{"a":`, depth) + `1` + strings.Repeat(`}]`, depth)

	v, err := ParseString(doc)
	require.NoError(t, err)

	for range depth {
		v = v.Index(0).Get("a")
	}
	require.Equal(t, int64(1), v.AsInt64())
}

func TestNestingLimit(t *testing.T) {
	_, err := ParseString(strings.Repeat(`[`, 4<<20))

	var syntaxErr *jsonerr.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Equal(t, jsonerr.TooDeep, syntaxErr.Msg)
	require.Equal(t, int64(jsonerr.MaxDepth), syntaxErr.Offset)
}

func TestParseBytesCopiesInput(t *testing.T) {
	b := []byte(`{"key":"value"}`)
	v, err := ParseBytes(b)
	require.NoError(t, err)

	copy(b, strings.Repeat("x", len(b)))
	require.Equal(t, "value", v.Get("key").AsString())
}

func TestReaderGrowsBuffer(t *testing.T) {
	text := strings.Repeat("0123456789", 500)
	v, err := ParseReader(strings.NewReader(`{"text":"` + text + `"}`))
	require.NoError(t, err)
	require.Equal(t, text, v.Get("text").AsString())
}

func TestReadErrors(t *testing.T) {
	errBoom := errors.New("connection reset")

	_, err := ParseReader(io.MultiReader(strings.NewReader(`[1,`), iotest.ErrReader(errBoom)))
	require.ErrorIs(t, err, errBoom)
	require.ErrorIs(t, err, jsonerr.ErrSyntax)

	_, err = ParseReader(io.MultiReader(strings.NewReader(`[1]`), iotest.ErrReader(errBoom)))
	var syntaxErr *jsonerr.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Equal(t, "input read failed", syntaxErr.Msg)
	require.ErrorIs(t, err, errBoom)
}

func TestDecoderReuse(t *testing.T) {
	d := New()

	_, err := d.ParseString(`[{"a":[1,`)
	require.Error(t, err)

	v, err := d.ParseString(`{"a":[1,2]}`)
	require.NoError(t, err)
	require.Equal(t, 2, v.Get("a").Len())
}
