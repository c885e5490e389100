package decoder

import "unicode/utf8"

const smallTextSize = 64

// textBuffer collects the bytes of one string. Short strings stay in the fixed
// array; longer ones spill into a slice that is kept and reused by later strings.
type textBuffer struct {
	small   [smallTextSize]byte
	n       int
	spill   []byte
	spilled bool

	// pendingHigh holds a UTF-16 high surrogate waiting for its low half.
	pendingHigh rune
}

func (t *textBuffer) reset() {
	t.n = 0
	t.spill = t.spill[:0]
	t.spilled = false
	t.pendingHigh = 0
}

func (t *textBuffer) flushSurrogate() {
	if t.pendingHigh != 0 {
		t.pendingHigh = 0
		t.appendRune(utf8.RuneError)
	}
}

func (t *textBuffer) spillOver(extra int) {
	if cap(t.spill) < t.n+extra {
		t.spill = make([]byte, 0, max(2*cap(t.spill), t.n+extra, 2*smallTextSize))
	}
	t.spill = append(t.spill[:0], t.small[:t.n]...)
	t.spilled = true
}

func (t *textBuffer) writeByte(c byte) {
	if t.pendingHigh != 0 {
		t.flushSurrogate()
	}
	if !t.spilled {
		if t.n < len(t.small) {
			t.small[t.n] = c
			t.n++
			return
		}
		t.spillOver(1)
	}
	t.spill = append(t.spill, c)
}

func (t *textBuffer) write(p []byte) {
	if t.pendingHigh != 0 {
		t.flushSurrogate()
	}
	if !t.spilled {
		if t.n+len(p) <= len(t.small) {
			t.n += copy(t.small[t.n:], p)
			return
		}
		t.spillOver(len(p))
	}
	t.spill = append(t.spill, p...)
}

func (t *textBuffer) writeString(s string) {
	if !t.spilled && t.pendingHigh == 0 && t.n+len(s) <= len(t.small) {
		t.n += copy(t.small[t.n:], s)
		return
	}
	for i := 0; i < len(s); i++ {
		t.writeByte(s[i])
	}
}

func (t *textBuffer) appendRune(r rune) {
	var enc [utf8.UTFMax]byte
	n := utf8.EncodeRune(enc[:], r)
	t.write(enc[:n])
}

// writeUnit appends one UTF-16 code unit decoded from a \uXXXX escape. A high
// surrogate is held until the next unit; unpaired halves become U+FFFD.
func (t *textBuffer) writeUnit(u rune) {
	if t.pendingHigh != 0 {
		high := t.pendingHigh
		t.pendingHigh = 0
		if u >= 0xDC00 && u <= 0xDFFF {
			t.appendRune(0x10000 + (high-0xD800)<<10 + (u - 0xDC00))
			return
		}
		t.appendRune(utf8.RuneError)
	}

	switch {
	case u >= 0xD800 && u <= 0xDBFF:
		t.pendingHigh = u
	case u >= 0xDC00 && u <= 0xDFFF:
		t.appendRune(utf8.RuneError)
	default:
		t.appendRune(u)
	}
}

func (t *textBuffer) bytes() []byte {
	t.flushSurrogate()
	if t.spilled {
		return t.spill
	}
	return t.small[:t.n]
}

func (t *textBuffer) String() string {
	return string(t.bytes())
}
