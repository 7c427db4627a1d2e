package filter

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// CompileBpf compiles a tcpdump-style expression for packets of linkType.
func CompileBpf(filter string, linkType uint16, snapLen int) ([]bpf.RawInstruction, error) {
	if linkType > 0xFF {
		return nil, fmt.Errorf("link type %d has no BPF compiler support", linkType)
	}
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkType(linkType), snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter: %w", err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// newVM loads compiled instructions into a BPF interpreter.
func newVM(raw []bpf.RawInstruction) (*bpf.VM, error) {
	insts, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("BPF program contains instructions the interpreter cannot run")
	}
	return bpf.NewVM(insts)
}
