package decoder

// readKey reads an object key whose opening quote was consumed, walking the digger
// over each byte. A key the trie already holds comes back as the stored string.
// Any other key is read as an ordinary string, prefixed with the bytes the trie
// confirmed, and added to the trie.
func (d *Decoder) readKey() (string, error) {
	dg := d.digger
	if dg == nil {
		return d.readString()
	}

	dg.Initialize()
	for {
		if !d.more() {
			return "", d.fail("string is not closed")
		}

		c := d.buf[d.pos]
		switch c {
		case '"':
			d.pos++
			dg.Complete()
			item, ok := dg.PointingItem()
			n := dg.ItemValidLength()
			if ok && n == len(item) {
				d.stats.Hits++
				return item, nil
			}
			key := item[:n]
			d.stats.Prefixes++
			dg.Add(key)
			return key, nil

		case '\\':
			dg.Complete()
			return d.finishKey(dg.Confirmed())

		default:
			if dg.DigNextChar(c) {
				d.pos++
				continue
			}
			return d.finishKey(dg.Confirmed())
		}
	}
}

// finishKey reads the rest of a key the trie does not hold, starting at the
// current byte, after the first confirmed bytes of the digger's item.
func (d *Decoder) finishKey(confirmed int) (string, error) {
	item, _ := d.digger.PointingItem()

	d.text.reset()
	d.text.writeString(item[:confirmed])
	key, err := d.readStringBody()
	if err != nil {
		return "", err
	}

	d.stats.Misses++
	d.digger.Add(key)
	return key, nil
}
