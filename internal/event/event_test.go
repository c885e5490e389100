package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacoelho/feedjson/internal/decoder"
	"github.com/jacoelho/feedjson/internal/value"
)

func classify(t *testing.T, line string) Event {
	t.Helper()
	v, err := decoder.ParseString(line)
	require.NoError(t, err)
	return Classify(v)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		kind     Kind
		id       string
		userID   string
		eventTag string
	}{
		{
			name:   "status",
			line:   `{"id":852,"id_str":"852","text":"hi","user":{"id":6253282,"id_str":"6253282"}}`,
			kind:   KindStatus,
			id:     "852",
			userID: "6253282",
		},
		{
			name:   "status without string ids",
			line:   `{"id":852,"text":"hi","user":{"id":7}}`,
			kind:   KindStatus,
			id:     "852",
			userID: "7",
		},
		{
			name:   "delete",
			line:   `{"delete":{"status":{"id":1234,"id_str":"1234","user_id":3,"user_id_str":"3"}}}`,
			kind:   KindDelete,
			id:     "1234",
			userID: "3",
		},
		{
			name:   "scrub geo",
			line:   `{"scrub_geo":{"user_id":14090452,"user_id_str":"14090452","up_to_status_id":23260136625,"up_to_status_id_str":"23260136625"}}`,
			kind:   KindScrubGeo,
			id:     "23260136625",
			userID: "14090452",
		},
		{
			name: "limit",
			line: `{"limit":{"track":1234}}`,
			kind: KindLimit,
		},
		{
			name:   "status withheld",
			line:   `{"status_withheld":{"id":1,"user_id":2,"withheld_in_countries":["DE","AR"]}}`,
			kind:   KindStatusWithheld,
			id:     "1",
			userID: "2",
		},
		{
			name:   "user withheld",
			line:   `{"user_withheld":{"id":2,"withheld_in_countries":["DE"]}}`,
			kind:   KindUserWithheld,
			userID: "2",
		},
		{
			name: "disconnect",
			line: `{"disconnect":{"code":4,"stream_name":"sample","reason":"duplicate stream"}}`,
			kind: KindDisconnect,
		},
		{
			name: "warning",
			line: `{"warning":{"code":"FALLING_BEHIND","message":"falling behind","percent_full":60}}`,
			kind: KindWarning,
		},
		{
			name: "friends",
			line: `{"friends":[1497,169686021]}`,
			kind: KindFriends,
		},
		{
			name:     "account event",
			line:     `{"event":"favorite","source":{"id_str":"9"},"target":{"id_str":"10"},"target_object":{"id_str":"11","text":"x"}}`,
			kind:     KindEvent,
			id:       "11",
			userID:   "9",
			eventTag: "favorite",
		},
		{
			name:   "direct message",
			line:   `{"direct_message":{"id_str":"55","text":"psst","sender_id":8}}`,
			kind:   KindDirectMessage,
			id:     "55",
			userID: "8",
		},
		{
			name: "unknown object",
			line: `{"hello":"world"}`,
			kind: KindUnknown,
		},
		{
			name: "array",
			line: `[1,2]`,
			kind: KindUnknown,
		},
		{
			name: "wrapper with wrong payload",
			line: `{"delete":true}`,
			kind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classify(t, tt.line)
			require.Equal(t, tt.kind, e.Kind)
			require.Equal(t, tt.id, e.ID())
			require.Equal(t, tt.userID, e.UserID())
			require.Equal(t, tt.eventTag, e.Name)
		})
	}
}

func TestAccessors(t *testing.T) {
	require.Equal(t, int64(1234), classify(t, `{"limit":{"track":1234}}`).Track())

	disconnect := classify(t, `{"disconnect":{"code":4,"reason":"duplicate stream"}}`)
	require.Equal(t, "4", disconnect.Code())
	require.Equal(t, "duplicate stream", disconnect.Reason())

	warning := classify(t, `{"warning":{"code":"FALLING_BEHIND","message":"falling behind"}}`)
	require.Equal(t, "FALLING_BEHIND", warning.Code())
	require.Equal(t, "falling behind", warning.Reason())

	require.Equal(t, []string{"1497", "169686021"}, classify(t, `{"friends":[1497,169686021]}`).Friends())
	require.Equal(t, []string{"1", "2"}, classify(t, `{"friends_str":["1","2"]}`).Friends())

	withheld := classify(t, `{"status_withheld":{"id":1,"user_id":2,"withheld_in_countries":["DE","AR"]}}`)
	require.Equal(t, []string{"DE", "AR"}, withheld.Countries())

	status := classify(t, `{"id_str":"1","text":"short","full_text":"the long one","user":{}}`)
	require.Equal(t, "the long one", status.Text())
}

func TestAccessorsOnWrongKind(t *testing.T) {
	e := classify(t, `{"limit":{"track":1}}`)

	require.Empty(t, e.Text())
	require.Empty(t, e.Code())
	require.Empty(t, e.Reason())
	require.Nil(t, e.Friends())
	require.Nil(t, e.Countries())
	require.Empty(t, e.ID())
	require.Zero(t, Classify(value.Null).Track())
}

func TestKinds(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	_, err := ParseKind("retweet")
	require.True(t, errors.Is(err, ErrUnknownKind))
	require.Equal(t, "Kind(99)", Kind(99).String())
}
