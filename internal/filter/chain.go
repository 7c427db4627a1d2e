package filter

import (
	"slices"

	"firestige.xyz/ngcap/pkg/pcapng"
)

// FilterChain runs packets through filters in order and hands the survivors
// to the handler. Each filter receives the chain positioned after itself.
type FilterChain struct {
	filters []Filter
	handler func(p *pcapng.Packet)
	next    int
}

func NewFilterChain(handler func(p *pcapng.Packet), filters []Filter) *FilterChain {
	return &FilterChain{filters: slices.Clone(filters), handler: handler}
}

// Filter passes p to the next filter, or to the handler once none is left.
func (c *FilterChain) Filter(p *pcapng.Packet) {
	if c.next >= len(c.filters) {
		c.handler(p)
		return
	}
	rest := &FilterChain{filters: c.filters, handler: c.handler, next: c.next + 1}
	c.filters[c.next].Filter(p, rest)
}

// Len is the number of filters a packet still has to pass.
func (c *FilterChain) Len() int {
	return len(c.filters) - c.next
}
