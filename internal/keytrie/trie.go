// Package keytrie interns JSON object keys.
//
// Keys in a feed come from a small vocabulary repeated millions of times. The trie
// lets the decoder recognise a key byte by byte while scanning it and hand back the
// canonical string it stored earlier, so a repeated key costs no allocation.
//
// Chains without branches are not expanded into nodes: a node may carry a tail key
// whose remaining bytes are compared directly. A tail is pushed down one node at a
// time only when a newly added key diverges from it.
package keytrie

import "sync"

type edge struct {
	label byte
	child *node
}

type node struct {
	edges []edge

	// key is set when a complete key ends at this node.
	key      string
	terminal bool

	// tail is a key longer than this node's depth whose remaining bytes have no
	// nodes yet. tail[depth] never equals an edge label of this node.
	tail string

	// first is some key passing through this node.
	first    string
	hasFirst bool
}

func (n *node) child(c byte) *node {
	for i := range n.edges {
		if n.edges[i].label == c {
			return n.edges[i].child
		}
	}
	return nil
}

func (n *node) addChild(c byte, through string) *node {
	child := &node{first: through, hasFirst: true}
	n.edges = append(n.edges, edge{label: c, child: child})
	return child
}

// candidate returns a key that passes through n, preferring one that ends here.
func (n *node) candidate() (string, bool) {
	if n.terminal {
		return n.key, true
	}
	if n.tail != "" {
		return n.tail, true
	}
	return n.first, n.hasFirst
}

// Trie stores canonical keys. A Trie from New must be used by one goroutine at a
// time; NewShared returns one that diggers on different goroutines may share.
type Trie struct {
	mu    *sync.RWMutex
	root  *node
	count int
	nodes int
	adds  uint64
}

// New returns an unsynchronized trie.
func New() *Trie {
	return &Trie{root: &node{}, nodes: 1}
}

// NewShared returns a trie guarded by a read-write mutex. Every digger step takes
// the read lock, so sharing trades per-byte lock traffic for a common vocabulary.
func NewShared() *Trie {
	t := New()
	t.mu = &sync.RWMutex{}
	return t
}

func (t *Trie) rlock() {
	if t.mu != nil {
		t.mu.RLock()
	}
}

func (t *Trie) runlock() {
	if t.mu != nil {
		t.mu.RUnlock()
	}
}

func (t *Trie) lock() {
	if t.mu != nil {
		t.mu.Lock()
	}
}

func (t *Trie) unlock() {
	if t.mu != nil {
		t.mu.Unlock()
	}
}

// Add inserts key unless it is already present. Every call counts as an add request.
func (t *Trie) Add(key string) {
	t.lock()
	defer t.unlock()

	t.adds++
	n := t.root
	if !n.hasFirst {
		n.first, n.hasFirst = key, true
	}

	for depth := 0; ; depth++ {
		if depth == len(key) {
			if !n.terminal {
				n.terminal = true
				n.key = key
				t.count++
			}
			return
		}

		c := key[depth]
		if child := n.child(c); child != nil {
			n = child
			continue
		}

		if n.tail == "" {
			n.tail = key
			t.count++
			return
		}

		if n.tail == key {
			return
		}

		if n.tail[depth] == c {
			// push the tail one node down and keep walking with it
			tail := n.tail
			n.tail = ""
			n = t.grow(n, c, tail, depth+1)
			continue
		}

		t.grow(n, c, key, depth+1)
		t.count++
		return
	}
}

// grow adds a child of n for c that carries key, either as its terminal key or as
// its tail.
func (t *Trie) grow(n *node, c byte, key string, depth int) *node {
	child := n.addChild(c, key)
	t.nodes++
	if len(key) == depth {
		child.terminal = true
		child.key = key
	} else {
		child.tail = key
	}
	return child
}

// Clear drops every key and resets the statistics. It returns the add requests
// counted since the previous Clear.
func (t *Trie) Clear() uint64 {
	t.lock()
	defer t.unlock()

	adds := t.adds
	t.root = &node{}
	t.count = 0
	t.nodes = 1
	t.adds = 0
	return adds
}

// Count returns the number of distinct keys.
func (t *Trie) Count() int {
	t.rlock()
	defer t.runlock()
	return t.count
}

// Nodes returns the number of materialized nodes, root included.
func (t *Trie) Nodes() int {
	t.rlock()
	defer t.runlock()
	return t.nodes
}

// AddRequests returns how many times Add was called since the last Clear.
func (t *Trie) AddRequests() uint64 {
	t.rlock()
	defer t.runlock()
	return t.adds
}
