package pcapng

import "time"

// Interface statistics options. Counters are 64-bit, times are split
// timestamps in units of the interface resolution.
const (
	OptISBStartTime    uint16 = 2
	OptISBEndTime      uint16 = 3
	OptISBIfRecv       uint16 = 4
	OptISBIfDrop       uint16 = 5
	OptISBFilterAccept uint16 = 6
	OptISBOSDrop       uint16 = 7
	OptISBUsrDeliv     uint16 = 8
)

// InterfaceStatistics is an interface statistics block.
type InterfaceStatistics struct {
	InterfaceID    uint32
	TimestampUnits uint64
	Timestamp      time.Time
	Options        Options
	Offset         int64
}

func (*InterfaceStatistics) BlockType() uint32 { return BlockTypeInterfaceStatistics }

func (s *InterfaceStatistics) Received() (uint64, bool) { return s.Options.Uint64(OptISBIfRecv) }

func (s *InterfaceStatistics) Dropped() (uint64, bool) { return s.Options.Uint64(OptISBIfDrop) }

func (s *InterfaceStatistics) FilterAccepted() (uint64, bool) {
	return s.Options.Uint64(OptISBFilterAccept)
}

func (s *InterfaceStatistics) OSDropped() (uint64, bool) { return s.Options.Uint64(OptISBOSDrop) }

func (s *InterfaceStatistics) Delivered() (uint64, bool) { return s.Options.Uint64(OptISBUsrDeliv) }

// StartTime converts isb_starttime with the resolution of iface.
func (s *InterfaceStatistics) StartTime(iface *Interface) (time.Time, bool) {
	return s.splitTime(OptISBStartTime, iface)
}

// EndTime converts isb_endtime with the resolution of iface.
func (s *InterfaceStatistics) EndTime(iface *Interface) (time.Time, bool) {
	return s.splitTime(OptISBEndTime, iface)
}

func (s *InterfaceStatistics) splitTime(code uint16, iface *Interface) (time.Time, bool) {
	units, ok := s.Options.Uint64(code)
	if !ok || iface == nil {
		return time.Time{}, false
	}
	return UnitsToTime(units, iface.UnitsPerSecond, iface.TimeOffset), true
}

func readInterfaceStatistics(d *Decoder) (Block, error) {
	if err := d.Need(12, "interface statistics"); err != nil {
		return nil, err
	}
	s := &InterfaceStatistics{Offset: d.Offset()}
	s.InterfaceID = d.Uint32()
	hi := d.Uint32()
	lo := d.Uint32()
	s.TimestampUnits = joinUnits(hi, lo)

	iface, err := d.Interface(s.InterfaceID)
	if err != nil {
		return nil, err
	}
	s.Timestamp = UnitsToTime(s.TimestampUnits, iface.UnitsPerSecond, iface.TimeOffset)
	if s.Options, err = d.Options(); err != nil {
		return nil, err
	}
	return s, nil
}

func sizeInterfaceStatistics(e *Encoder, b Block) (int, error) {
	n, err := e.OptionsSize(BlockTypeInterfaceStatistics, b.(*InterfaceStatistics).Options)
	if err != nil {
		return 0, err
	}
	return 12 + n, nil
}

func writeInterfaceStatistics(e *Encoder, b Block) error {
	s := b.(*InterfaceStatistics)
	units := s.TimestampUnits
	if units == 0 && !s.Timestamp.IsZero() {
		iface, err := e.Interface(s.InterfaceID)
		if err != nil {
			return err
		}
		if units, err = TimeToUnits(s.Timestamp, iface.UnitsPerSecond, iface.TimeOffset); err != nil {
			return err
		}
	}
	hi, lo := splitUnits(units)
	e.PutUint32(s.InterfaceID)
	e.PutUint32(hi)
	e.PutUint32(lo)
	return e.PutOptions(BlockTypeInterfaceStatistics, s.Options)
}

func processInterfaceStatistics(r *Reader, b Block) error {
	s := b.(*InterfaceStatistics)
	iface, err := r.section.Interface(s.InterfaceID)
	if err != nil {
		return err
	}
	iface.Statistics = s
	r.stats = append(r.stats, s)
	return nil
}
