// Package filter selects the packets copied between capture files.
package filter

import (
	"fmt"
	"sync"

	"golang.org/x/net/bpf"

	"firestige.xyz/ngcap/pkg/pcapng"
)

// Filter passes a packet on by calling chain.Filter; not calling it drops
// the packet.
type Filter interface {
	Filter(p *pcapng.Packet, chain *FilterChain)
}

// CounterFilter counts the packets that reach it.
type CounterFilter struct {
	count int
}

func (f *CounterFilter) Filter(p *pcapng.Packet, chain *FilterChain) {
	f.count++
	chain.Filter(p)
}

func NewCounterFilter() *CounterFilter {
	return &CounterFilter{count: 0}
}

func (f *CounterFilter) GetCount() int {
	return f.count
}

// BPFFilter keeps packets matching a tcpdump-style expression. Programs are
// compiled lazily per link type since interfaces of one file may differ.
type BPFFilter struct {
	expr    string
	snapLen int

	mu       sync.Mutex
	programs map[uint16]*bpf.VM
	dropped  int
}

// NewBPFFilter checks expr against Ethernet so that syntax errors surface
// before any packet is read.
func NewBPFFilter(expr string) (*BPFFilter, error) {
	f := newBPFFilter(expr)
	if _, err := f.program(pcapng.LinkTypeEthernet); err != nil {
		return nil, err
	}
	return f, nil
}

func newBPFFilter(expr string) *BPFFilter {
	return &BPFFilter{
		expr:     expr,
		snapLen:  pcapng.MaxPacketSize,
		programs: make(map[uint16]*bpf.VM),
	}
}

func (f *BPFFilter) program(linkType uint16) (*bpf.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if vm, ok := f.programs[linkType]; ok {
		return vm, nil
	}
	raw, err := CompileBpf(f.expr, linkType, f.snapLen)
	if err != nil {
		return nil, err
	}
	vm, err := newVM(raw)
	if err != nil {
		return nil, err
	}
	f.programs[linkType] = vm
	return vm, nil
}

// Match runs the program for the packet's link type over the frame as
// libpcap sees it, pseudo-header included.
func (f *BPFFilter) Match(p *pcapng.Packet) (bool, error) {
	if p.Interface == nil {
		return false, fmt.Errorf("packet at offset %d has no interface", p.Offset)
	}
	vm, err := f.program(p.Interface.LinkType)
	if err != nil {
		return false, err
	}
	n, err := vm.Run(frame(p))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func frame(p *pcapng.Packet) []byte {
	if len(p.PseudoHeader) == 0 {
		return p.Data
	}
	return append(append(make([]byte, 0, len(p.PseudoHeader)+len(p.Data)), p.PseudoHeader...), p.Data...)
}

func (f *BPFFilter) Filter(p *pcapng.Packet, chain *FilterChain) {
	if ok, err := f.Match(p); err != nil || !ok {
		f.dropped++
		return
	}
	chain.Filter(p)
}

// Dropped is the number of packets the expression rejected.
func (f *BPFFilter) Dropped() int {
	return f.dropped
}
