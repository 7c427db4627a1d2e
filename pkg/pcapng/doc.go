// Package pcapng reads and writes pcapng capture files.
//
// A pcapng file is a sequence of sections. Each section starts with a Section
// Header Block whose byte-order magic selects the byte order of every block
// that follows until the next section header. Blocks are length-prefixed,
// padded to 32 bits and may carry a list of typed options.
//
// Block and option kinds are dispatched through process-wide registries that
// are populated in init(). Additional kinds can be registered with
// RegisterBlock, RegisterOption, RegisterEnterprise and RegisterPseudoHeader;
// all registration must complete before the first Reader or Writer is used.
// Unregistered block types are skipped (or copied through as RawBlock) and
// unregistered option codes or enterprise numbers are kept as opaque bytes, so
// a file survives a read/write round trip even when parts of it are not
// understood.
//
// Reader is a pull iterator: Next absorbs administrative blocks (section
// headers, interface descriptions, name resolution, statistics and secrets)
// into reader state and returns packet and custom blocks to the caller.
// Reader also implements gopacket.PacketDataSource.
package pcapng
