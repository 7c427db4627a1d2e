package pcapng

import (
	"fmt"
	"sync"
)

// Block is one decoded pcapng block.
type Block interface {
	BlockType() uint32
}

// BlockKind tells the Reader whether a block is absorbed or returned.
type BlockKind int

const (
	// KindAdministrative blocks update reader state and are not returned by Next.
	KindAdministrative BlockKind = iota
	// KindPacket blocks carry packet records and are returned by Next.
	KindPacket
	// KindEvent blocks are returned by Next but carry no packet.
	KindEvent
)

type (
	// BlockReadFunc decodes the block content available through d.
	BlockReadFunc func(d *Decoder) (Block, error)
	// BlockSizeFunc returns the encoded content length of b, a multiple of 4.
	BlockSizeFunc func(e *Encoder, b Block) (int, error)
	// BlockWriteFunc encodes the content of b; it must write exactly the size reported by BlockSizeFunc.
	BlockWriteFunc func(e *Encoder, b Block) error
	// BlockProcessFunc absorbs a block read sequentially into reader state.
	BlockProcessFunc func(r *Reader, b Block) error
	// BlockSplitFunc divides b into blocks whose total length does not exceed limit.
	BlockSplitFunc func(e *Encoder, b Block, limit int) ([]Block, error)
)

// BlockHandler binds a block type to its codec.
type BlockHandler struct {
	Name      string
	Kind      BlockKind
	MinLength uint32
	Read      BlockReadFunc
	Size      BlockSizeFunc
	Write     BlockWriteFunc
	Process   BlockProcessFunc
	Split     BlockSplitFunc
}

type optionKey struct {
	blockType uint32
	code      uint16
}

type registryImpl struct {
	mu          sync.RWMutex
	blocks      map[uint32]*BlockHandler
	options     map[optionKey]*OptionCodec
	enterprises map[uint32]*EnterpriseHandler
	pseudo      map[uint16]int
}

var registry = &registryImpl{
	blocks:      make(map[uint32]*BlockHandler),
	options:     make(map[optionKey]*OptionCodec),
	enterprises: make(map[uint32]*EnterpriseHandler),
	pseudo:      make(map[uint16]int),
}

// RegisterBlock installs the handler for a block type. Registering the same
// name again replaces the handler; a different name for a taken type fails.
func RegisterBlock(blockType uint32, h BlockHandler) error {
	if h.Read == nil || h.Size == nil || h.Write == nil {
		return fmt.Errorf("pcapng: block handler %q for type 0x%08X needs Read, Size and Write", h.Name, blockType)
	}
	if h.MinLength < minBlockLength {
		h.MinLength = minBlockLength
	}
	if h.MinLength%4 != 0 {
		return fmt.Errorf("pcapng: block handler %q minimum length %d is not a multiple of 4", h.Name, h.MinLength)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if existing, exists := registry.blocks[blockType]; exists && existing.Name != h.Name {
		return fmt.Errorf("pcapng: block type 0x%08X already registered as '%s'", blockType, existing.Name)
	}
	registry.blocks[blockType] = &h
	return nil
}

// RegisterOption installs the codec for an option code of one block type.
// The reserved codes (end of options, comment, custom) cannot be overridden.
func RegisterOption(blockType uint32, code uint16, c OptionCodec) error {
	if isReservedOption(code) {
		return fmt.Errorf("pcapng: option code %d is reserved", code)
	}
	if c.Parse == nil || c.Size == nil || c.Write == nil {
		return fmt.Errorf("pcapng: option codec %q needs Parse, Size and Write", c.Name)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	key := optionKey{blockType: blockType, code: code}
	if existing, exists := registry.options[key]; exists && existing.Name != c.Name {
		return fmt.Errorf("pcapng: option %d of block type 0x%08X already registered as '%s'", code, blockType, existing.Name)
	}
	registry.options[key] = &c
	return nil
}

// RegisterEnterprise installs the interpreter for custom blocks and options
// qualified by a private enterprise number.
func RegisterEnterprise(pen uint32, h EnterpriseHandler) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if existing, exists := registry.enterprises[pen]; exists && existing.Name != h.Name {
		return fmt.Errorf("pcapng: enterprise %d already registered as '%s'", pen, existing.Name)
	}
	registry.enterprises[pen] = &h
	return nil
}

// RegisterPseudoHeader declares that packets of linkType start with a fixed
// length pseudo-header that is split off into Packet.PseudoHeader.
func RegisterPseudoHeader(linkType uint16, length int) error {
	if length <= 0 || length > MaxPacketSize {
		return fmt.Errorf("pcapng: invalid pseudo-header length %d for link type %d", length, linkType)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.pseudo[linkType] = length
	return nil
}

func lookupBlock(blockType uint32) (*BlockHandler, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	h, ok := registry.blocks[blockType]
	return h, ok
}

func lookupOption(blockType uint32, code uint16) (*OptionCodec, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	c, ok := registry.options[optionKey{blockType: blockType, code: code}]
	return c, ok
}

func lookupEnterprise(pen uint32) (*EnterpriseHandler, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	h, ok := registry.enterprises[pen]
	return h, ok
}

func pseudoHeaderLen(linkType uint16) int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	return registry.pseudo[linkType]
}

// handlerFor returns the handler for a block type, falling back to the raw
// copy-through handler for unregistered types.
func handlerFor(blockType uint32) (*BlockHandler, bool) {
	if h, ok := lookupBlock(blockType); ok {
		return h, true
	}
	return &rawHandler, false
}
