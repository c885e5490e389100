package decoder

import (
	"io"
	"sync"

	"github.com/jacoelho/feedjson/internal/value"
)

// pooledKeyLimit bounds the private trie of a pooled decoder. Feeds that use ids
// as object keys would otherwise grow it without end.
const pooledKeyLimit = 1 << 14

var decoders = sync.Pool{
	New: func() any { return New() },
}

func borrow() *Decoder {
	return decoders.Get().(*Decoder)
}

func release(d *Decoder) {
	if dg := d.digger; dg != nil && dg.Count() > pooledKeyLimit {
		dg.Clear()
	}
	decoders.Put(d)
}

// ParseString parses s with a pooled Decoder.
func ParseString(s string) (*value.Value, error) {
	d := borrow()
	defer release(d)
	return d.ParseString(s)
}

// ParseBytes parses b with a pooled Decoder.
func ParseBytes(b []byte) (*value.Value, error) {
	d := borrow()
	defer release(d)
	return d.ParseBytes(b)
}

// ParseReader parses one document from r with a pooled Decoder.
func ParseReader(r io.Reader) (*value.Value, error) {
	d := borrow()
	defer release(d)
	return d.ParseReader(r)
}
