package pipeline

import (
	"errors"

	"github.com/jacoelho/feedjson/internal/decoder"
	"github.com/jacoelho/feedjson/internal/jsonerr"
	"github.com/jacoelho/feedjson/internal/keytrie"
	"github.com/jacoelho/feedjson/internal/safedecoder"
	"github.com/jacoelho/feedjson/internal/value"
)

// worker holds the decoders of one pool slot. Only the engines in use are built.
type worker struct {
	fast *decoder.Decoder
	safe *safedecoder.Decoder
}

func (p *Pipeline) newWorker() *worker {
	w := &worker{}
	if p.cfg.Engine == EngineFast || p.cfg.Verify {
		switch p.cfg.Intern {
		case InternShared:
			w.fast = decoder.New(decoder.WithKeyCache(p.shared))
		case InternOff:
			w.fast = decoder.New(decoder.WithoutInterning())
		default:
			trie := keytrie.New()
			p.track(trie)
			w.fast = decoder.New(decoder.WithKeyCache(trie))
		}
	}
	if p.cfg.Engine == EngineSafe || p.cfg.Verify {
		w.safe = safedecoder.New()
	}
	return w
}

func (w *worker) decode(p *Pipeline, data []byte) (*value.Value, error) {
	var (
		fast, safe       *value.Value
		fastErr, safeErr error
	)

	if w.fast != nil {
		before := w.fast.Stats()
		fast, fastErr = w.fast.ParseBytes(data)
		after := w.fast.Stats()
		p.keyHits.Add(after.Hits - before.Hits)
		p.keyPrefixes.Add(after.Prefixes - before.Prefixes)
		p.keyMisses.Add(after.Misses - before.Misses)

		if digger := w.fast.Digger(); digger != nil && digger.Count() > p.cfg.MaxKeys {
			p.keyAdds.Add(digger.Clear())
			p.keyClears.Add(1)
			p.logger.Debug("key cache cleared", "limit", p.cfg.MaxKeys)
		}
	}
	if w.safe != nil {
		safe, safeErr = w.safe.ParseBytes(data)
	}

	if p.cfg.Verify && !agree(fast, fastErr, safe, safeErr) {
		p.mismatches.Add(1)
		p.logger.Warn("decoders disagree", "fast_error", fastErr, "safe_error", safeErr)
	}

	if p.cfg.Engine == EngineSafe {
		return safe, safeErr
	}
	return fast, fastErr
}

// agree reports whether both decoders produced equal values, or failed with the
// same message at the same offset.
func agree(a *value.Value, aErr error, b *value.Value, bErr error) bool {
	if aErr != nil || bErr != nil {
		var aSyntax, bSyntax *jsonerr.SyntaxError
		if !errors.As(aErr, &aSyntax) || !errors.As(bErr, &bSyntax) {
			return false
		}
		return aSyntax.Msg == bSyntax.Msg && aSyntax.Offset == bSyntax.Offset
	}
	return value.DeepEqual(a, b)
}
