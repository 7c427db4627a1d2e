package pcapng

import "fmt"

// Block types.
const (
	BlockTypeSectionHeader        uint32 = 0x0A0D0D0A
	BlockTypeInterfaceDescription uint32 = 0x00000001
	BlockTypePacket               uint32 = 0x00000002 // obsolete
	BlockTypeSimplePacket         uint32 = 0x00000003
	BlockTypeNameResolution       uint32 = 0x00000004
	BlockTypeInterfaceStatistics  uint32 = 0x00000005
	BlockTypeEnhancedPacket       uint32 = 0x00000006
	BlockTypeSystemdJournalExport uint32 = 0x00000009
	BlockTypeDecryptionSecrets    uint32 = 0x0000000A
	BlockTypeCustomCopy           uint32 = 0x00000BAD
	BlockTypeCustomNoCopy         uint32 = 0x40000BAD
)

// ByteOrderMagic is the section header magic as written by the producer.
const ByteOrderMagic uint32 = 0x1A2B3C4D

const (
	blockHeaderLen  = 8
	blockTrailerLen = 4
	blockOverhead   = blockHeaderLen + blockTrailerLen
)

// Minimum total lengths per block kind, header and trailer included.
const (
	minBlockLength   = blockOverhead
	minSHBLength     = blockOverhead + 16
	minIDBLength     = blockOverhead + 8
	minPBLength      = blockOverhead + 20
	minSPBLength     = blockOverhead + 4
	minNRBLength     = blockOverhead
	minISBLength     = blockOverhead + 12
	minEPBLength     = blockOverhead + 20
	minDSBLength     = blockOverhead + 8
	minCustomLength  = blockOverhead + 4
	optionHeaderLen  = 4
	nrbRecordHdrLen  = 4
	maxOptionValue   = 0xFFFF
	maxNRBRecordSize = 0xFFFF
)

// Size limits.
const (
	// MaxPacketSize is the largest captured length accepted for most link types.
	MaxPacketSize = 262144
	// MaxPacketSizeDBus is the largest captured length accepted for D-Bus captures.
	MaxPacketSizeDBus = 128 * 1024 * 1024
	// MaxPacketSizeEBHSCR is the largest captured length accepted for EBHSCR captures.
	MaxPacketSizeEBHSCR = 8 * 1024 * 1024

	// MaxBlockSize bounds every block read or written. It fits the largest
	// packet of any link type plus room for options.
	MaxBlockSize = minEPBLength + MaxPacketSizeDBus + 131072

	// MaxSecretsLength bounds the payload of a decryption secrets block.
	MaxSecretsLength = 16 * 1024 * 1024

	// DefaultMaxNRBSize is the largest name resolution block the writer
	// emits before splitting the name table across several blocks.
	DefaultMaxNRBSize = MaxPacketSize*4 + 16
)

// Link types with special handling.
const (
	LinkTypeEthernet uint16 = 1
	LinkTypeSunATM   uint16 = 123
	LinkTypeMTP2PHDR uint16 = 139
	LinkTypeH4PHDR   uint16 = 201
	LinkTypePPPDir   uint16 = 204
	LinkTypeI2CLinux uint16 = 209
	LinkTypeDBus     uint16 = 231
	LinkTypeEBHSCR   uint16 = 279

	// LinkTypePerPacket marks a file whose interfaces disagree on link type.
	LinkTypePerPacket uint16 = 0xFFFF
)

// MaxSnapLenFor returns the largest captured length accepted for a link type.
func MaxSnapLenFor(linkType uint16) uint32 {
	switch linkType {
	case LinkTypeDBus:
		return MaxPacketSizeDBus
	case LinkTypeEBHSCR:
		return MaxPacketSizeEBHSCR
	default:
		return MaxPacketSize
	}
}

var blockTypeNames = map[uint32]string{
	BlockTypeSectionHeader:        "SHB",
	BlockTypeInterfaceDescription: "IDB",
	BlockTypePacket:               "PB",
	BlockTypeSimplePacket:         "SPB",
	BlockTypeNameResolution:       "NRB",
	BlockTypeInterfaceStatistics:  "ISB",
	BlockTypeEnhancedPacket:       "EPB",
	BlockTypeSystemdJournalExport: "SJE",
	BlockTypeDecryptionSecrets:    "DSB",
	BlockTypeCustomCopy:           "CB",
	BlockTypeCustomNoCopy:         "CB-NOCOPY",
}

// BlockTypeName returns a short name for a block type, registered handlers first.
func BlockTypeName(blockType uint32) string {
	if h, ok := lookupBlock(blockType); ok && h.Name != "" {
		return h.Name
	}
	if name, ok := blockTypeNames[blockType]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", blockType)
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}

func padLen(n int) int {
	return (4 - n%4) % 4
}
