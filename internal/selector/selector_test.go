package selector

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jacoelho/feedjson/internal/decoder"
	"github.com/jacoelho/feedjson/internal/value"
)

const statusJSON = `{
	"id_str": "852",
	"text": "just setting up",
	"user": {"id": 6253282, "screen_name": "api", "verified": true},
	"entities": {"hashtags": [{"text": "go"}, {"text": "json"}], "urls": []}
}`

func parse(t *testing.T, doc string) *value.Value {
	t.Helper()
	v, err := decoder.ParseString(doc)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return v
}

func TestApply(t *testing.T) {
	s, err := New([]Field{
		{Name: "id", Path: "$.id_str"},
		{Name: "user", Path: "$.user.screen_name"},
		{Name: "user_id", Path: "$.user.id"},
		{Name: "tags", Path: "$.entities.hashtags[*].text", All: true},
		{Name: "first_tag", Path: "$..hashtags[0].text"},
		{Name: "go_tag", Path: "$.entities.hashtags[?@.text == 'go'].text"},
		{Name: "place", Path: "$.place.name"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", s.Len())
	}

	got := s.Apply(parse(t, statusJSON))
	want := []Result{
		{Name: "id", Value: "852", Found: true},
		{Name: "user", Value: "api", Found: true},
		{Name: "user_id", Value: int64(6253282), Found: true},
		{Name: "tags", Value: []any{"go", "json"}, Found: true},
		{Name: "first_tag", Value: "go", Found: true},
		{Name: "go_tag", Value: "go", Found: true},
		{Name: "place", Value: nil, Found: false},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %#v, want %#v", got, want)
	}
}

func TestApplyWithoutFields(t *testing.T) {
	var s *Selector
	if got := s.Apply(parse(t, statusJSON)); got != nil {
		t.Errorf("Apply() on nil selector = %v, want nil", got)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   error
	}{
		{name: "empty name", fields: []Field{{Path: "$.a"}}, want: ErrInvalidInput},
		{name: "duplicate name", fields: []Field{{Name: "a", Path: "$.a"}, {Name: "a", Path: "$.b"}}, want: ErrInvalidInput},
		{name: "empty path", fields: []Field{{Name: "a"}}, want: ErrInvalidInput},
		{name: "bad path", fields: []Field{{Name: "a", Path: "$.[[["}}, want: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fields)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}
