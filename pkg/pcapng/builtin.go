package pcapng

func init() {
	registerBlocks()
	registerOptions()

	for linkType, n := range map[uint16]int{
		LinkTypeSunATM:   4,
		LinkTypeMTP2PHDR: 4,
		LinkTypePPPDir:   1,
		LinkTypeH4PHDR:   4,
		LinkTypeI2CLinux: 4,
	} {
		must(RegisterPseudoHeader(linkType, n))
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func registerBlocks() {
	must(RegisterBlock(BlockTypeSectionHeader, BlockHandler{
		Name:      "SHB",
		Kind:      KindAdministrative,
		MinLength: minSHBLength,
		Read:      readSectionHeader,
		Size:      sizeSectionHeader,
		Write:     writeSectionHeader,
		Process:   processSectionHeader,
	}))
	must(RegisterBlock(BlockTypeInterfaceDescription, BlockHandler{
		Name:      "IDB",
		Kind:      KindAdministrative,
		MinLength: minIDBLength,
		Read:      readInterfaceDescription,
		Size:      sizeInterfaceDescription,
		Write:     writeInterfaceDescription,
		Process:   processInterfaceDescription,
	}))
	must(RegisterBlock(BlockTypePacket, BlockHandler{
		Name:      "PB",
		Kind:      KindPacket,
		MinLength: minPBLength,
		Read:      readObsoletePacket,
		Size:      sizeObsoletePacket,
		Write:     writeObsoletePacket,
	}))
	must(RegisterBlock(BlockTypeSimplePacket, BlockHandler{
		Name:      "SPB",
		Kind:      KindPacket,
		MinLength: minSPBLength,
		Read:      readSimplePacket,
		Size:      sizeSimplePacket,
		Write:     writeSimplePacket,
	}))
	must(RegisterBlock(BlockTypeNameResolution, BlockHandler{
		Name:      "NRB",
		Kind:      KindAdministrative,
		MinLength: minNRBLength,
		Read:      readNameResolution,
		Size:      sizeNameResolution,
		Write:     writeNameResolution,
		Process:   processNameResolution,
		Split:     splitNameResolution,
	}))
	must(RegisterBlock(BlockTypeInterfaceStatistics, BlockHandler{
		Name:      "ISB",
		Kind:      KindAdministrative,
		MinLength: minISBLength,
		Read:      readInterfaceStatistics,
		Size:      sizeInterfaceStatistics,
		Write:     writeInterfaceStatistics,
		Process:   processInterfaceStatistics,
	}))
	must(RegisterBlock(BlockTypeEnhancedPacket, BlockHandler{
		Name:      "EPB",
		Kind:      KindPacket,
		MinLength: minEPBLength,
		Read:      readEnhancedPacket,
		Size:      sizeEnhancedPacket,
		Write:     writeEnhancedPacket,
	}))
	must(RegisterBlock(BlockTypeDecryptionSecrets, BlockHandler{
		Name:      "DSB",
		Kind:      KindAdministrative,
		MinLength: minDSBLength,
		Read:      readDecryptionSecrets,
		Size:      sizeDecryptionSecrets,
		Write:     writeDecryptionSecrets,
		Process:   processDecryptionSecrets,
	}))
	must(RegisterBlock(BlockTypeCustomCopy, BlockHandler{
		Name:      "CB",
		Kind:      KindEvent,
		MinLength: minCustomLength,
		Read:      readCustomBlock(true),
		Size:      sizeCustomBlock,
		Write:     writeCustomBlock,
	}))
	must(RegisterBlock(BlockTypeCustomNoCopy, BlockHandler{
		Name:      "CB-NOCOPY",
		Kind:      KindEvent,
		MinLength: minCustomLength,
		Read:      readCustomBlock(false),
		Size:      sizeCustomBlock,
		Write:     writeCustomBlock,
	}))

	// Journal entries are handed to the caller as raw blocks.
	sje := rawHandler
	sje.Name = "SJE"
	must(RegisterBlock(BlockTypeSystemdJournalExport, sje))
}

func registerOptions() {
	for code, c := range map[uint16]OptionCodec{
		OptSHBHardware: StringOption("shb_hardware", false),
		OptSHBOS:       StringOption("shb_os", false),
		OptSHBUserAppl: StringOption("shb_userappl", false),
	} {
		must(RegisterOption(BlockTypeSectionHeader, code, c))
	}

	for code, c := range map[uint16]OptionCodec{
		OptIfName:        StringOption("if_name", false),
		OptIfDescription: StringOption("if_description", false),
		OptIfIPv4Addr:    ipv4AddressOption(),
		OptIfIPv6Addr:    ipv6PrefixOption("if_IPv6addr"),
		OptIfMACAddr:     hardwareAddrOption("if_MACaddr", 6),
		OptIfEUIAddr:     hardwareAddrOption("if_EUIaddr", 8),
		OptIfSpeed:       Uint64Option("if_speed"),
		OptIfTSResol:     Uint8Option("if_tsresol"),
		OptIfTZone:       Uint32Option("if_tzone"),
		OptIfFilter:      filterOption(),
		OptIfOS:          StringOption("if_os", false),
		OptIfFCSLen:      Uint8Option("if_fcslen"),
		OptIfTSOffset:    Int64Option("if_tsoffset"),
		OptIfHardware:    StringOption("if_hardware", false),
		OptIfTxSpeed:     Uint64Option("if_txspeed"),
		OptIfRxSpeed:     Uint64Option("if_rxspeed"),
		OptIfIANATZName:  StringOption("if_iana_tzname", false),
	} {
		must(RegisterOption(BlockTypeInterfaceDescription, code, c))
	}

	for code, c := range map[uint16]OptionCodec{
		OptEPBFlags:     Uint32Option("epb_flags"),
		OptEPBHash:      BytesOption("epb_hash", false, 1),
		OptEPBDropCount: Uint64Option("epb_dropcount"),
		OptEPBPacketID:  Uint64Option("epb_packetid"),
		OptEPBQueue:     Uint32Option("epb_queue"),
		OptEPBVerdict:   BytesOption("epb_verdict", true, 1),
	} {
		must(RegisterOption(BlockTypeEnhancedPacket, code, c))
	}

	must(RegisterOption(BlockTypePacket, OptEPBFlags, Uint32Option("pack_flags")))
	must(RegisterOption(BlockTypePacket, OptEPBHash, BytesOption("pack_hash", false, 1)))

	must(RegisterOption(BlockTypeNameResolution, OptNSDNSName, StringOption("ns_dnsname", false)))
	must(RegisterOption(BlockTypeNameResolution, OptNSDNSIP4Addr, dnsAddrOption("ns_dnsIP4addr", 4)))
	must(RegisterOption(BlockTypeNameResolution, OptNSDNSIP6Addr, dnsAddrOption("ns_dnsIP6addr", 16)))

	for code, c := range map[uint16]OptionCodec{
		OptISBStartTime:    SplitTimeOption("isb_starttime"),
		OptISBEndTime:      SplitTimeOption("isb_endtime"),
		OptISBIfRecv:       Uint64Option("isb_ifrecv"),
		OptISBIfDrop:       Uint64Option("isb_ifdrop"),
		OptISBFilterAccept: Uint64Option("isb_filteraccept"),
		OptISBOSDrop:       Uint64Option("isb_osdrop"),
		OptISBUsrDeliv:     Uint64Option("isb_usrdeliv"),
	} {
		must(RegisterOption(BlockTypeInterfaceStatistics, code, c))
	}
}
