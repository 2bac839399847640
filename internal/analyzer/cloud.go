package analyzer

// keywordCloud accumulates keyword counts under a fixed size cap. When a
// new keyword would exceed the cap, the entry with the lowest count is
// evicted; among equal counts the least-recently-seen entry goes first.
type keywordCloud struct {
	cap      int
	counts   map[string]int
	lastSeen map[string]int
}

func newKeywordCloud(cap int) *keywordCloud {
	return &keywordCloud{
		cap:      cap,
		counts:   make(map[string]int),
		lastSeen: make(map[string]int),
	}
}

// add merges one keyword occurrence. seq is the turn index, used as the
// recency marker for eviction tie-breaks.
func (c *keywordCloud) add(text string, weight, seq int) {
	if _, known := c.counts[text]; !known && len(c.counts) >= c.cap {
		c.evict()
	}
	c.counts[text] += weight
	c.lastSeen[text] = seq
}

func (c *keywordCloud) evict() {
	victim := ""
	for text := range c.counts {
		if victim == "" {
			victim = text
			continue
		}
		switch {
		case c.counts[text] < c.counts[victim]:
			victim = text
		case c.counts[text] == c.counts[victim] && c.lastSeen[text] < c.lastSeen[victim]:
			victim = text
		case c.counts[text] == c.counts[victim] && c.lastSeen[text] == c.lastSeen[victim] && text < victim:
			victim = text
		}
	}
	delete(c.counts, victim)
	delete(c.lastSeen, victim)
}
