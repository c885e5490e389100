package keytrie

// Digger walks a Trie one input byte at a time. It is either standing on a node or,
// once it has left the materialized nodes, matching the remaining bytes of a tail key.
type Digger struct {
	trie *Trie

	node   *node
	tail   string
	inTail bool
	depth  int
	missed bool

	item     string
	hasItem  bool
	validLen int
}

// NewDigger returns a cursor over t. Each goroutine needs its own Digger.
func (t *Trie) NewDigger() *Digger {
	d := &Digger{trie: t}
	d.Initialize()
	return d
}

// Trie returns the trie the digger walks.
func (d *Digger) Trie() *Trie { return d.trie }

// Initialize moves the cursor back to the root and forgets the previous walk.
func (d *Digger) Initialize() {
	d.trie.rlock()
	d.node = d.trie.root
	d.trie.runlock()

	d.tail = ""
	d.inTail = false
	d.depth = 0
	d.missed = false
	d.item = ""
	d.hasItem = false
	d.validLen = 0
}

// DigNextChar consumes c. It returns false at the first byte that no known key
// continues with, and keeps returning false until the next Initialize.
func (d *Digger) DigNextChar(c byte) bool {
	if d.missed {
		return false
	}

	pos := d.depth
	d.depth++

	if d.inTail {
		if pos < len(d.tail) && d.tail[pos] == c {
			return true
		}
		d.miss(d.tail, true)
		return false
	}

	d.trie.rlock()
	defer d.trie.runlock()

	if child := d.node.child(c); child != nil {
		d.node = child
		return true
	}

	if tail := d.node.tail; tail != "" && tail[pos] == c {
		d.tail = tail
		d.inTail = true
		return true
	}

	item, ok := d.node.candidate()
	d.miss(item, ok)
	return false
}

func (d *Digger) miss(item string, ok bool) {
	d.missed = true
	d.item = item
	d.hasItem = ok
	d.validLen = d.depth
}

// Complete finalizes the walk so PointingItem and ItemValidLength describe it.
// After a miss it changes nothing.
func (d *Digger) Complete() {
	if d.missed {
		return
	}

	d.validLen = d.depth
	if d.inTail {
		d.item, d.hasItem = d.tail, true
		return
	}

	d.trie.rlock()
	d.item, d.hasItem = d.node.candidate()
	d.trie.runlock()
}

// PointingItem returns the canonical key the walk reached, or the best stored key
// sharing the matched prefix. It reports false when no stored key was reached.
func (d *Digger) PointingItem() (string, bool) {
	return d.item, d.hasItem
}

// ItemValidLength returns how many input bytes the walk consumed, including the
// byte that missed.
func (d *Digger) ItemValidLength() int {
	return d.validLen
}

// Confirmed returns how many leading bytes of PointingItem matched the input.
func (d *Digger) Confirmed() int {
	n := d.validLen
	if d.missed {
		n--
	}
	if !d.hasItem {
		return 0
	}
	return min(n, len(d.item))
}

// Add registers key in the underlying trie.
func (d *Digger) Add(key string) {
	d.trie.Add(key)
}

// Count returns the number of distinct keys in the underlying trie.
func (d *Digger) Count() int {
	return d.trie.Count()
}

// Clear empties the underlying trie and re-initializes the cursor. It returns
// the add requests the trie had counted.
func (d *Digger) Clear() uint64 {
	adds := d.trie.Clear()
	d.Initialize()
	return adds
}
