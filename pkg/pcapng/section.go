package pcapng

import (
	"fmt"
	"sort"
)

// Section is the state scoped by one section header block: its byte order
// and the interfaces described inside it.
type Section struct {
	Offset     int64
	ByteOrder  ByteOrder
	Header     *SectionHeader
	Interfaces []*Interface

	// Enterprise holds per-PEN state kept by enterprise handlers.
	Enterprise map[uint32]any

	skipped bool
}

func newSection(offset int64, order ByteOrder, shb *SectionHeader) *Section {
	return &Section{
		Offset:     offset,
		ByteOrder:  order,
		Header:     shb,
		Enterprise: make(map[uint32]any),
	}
}

// Interface returns the interface with index id.
func (s *Section) Interface(id uint32) (*Interface, error) {
	if uint64(id) >= uint64(len(s.Interfaces)) {
		return nil, fmt.Errorf("%w: %w %d, section at offset %d has %d", ErrMalformed, ErrUnknownInterface, id, s.Offset, len(s.Interfaces))
	}
	return s.Interfaces[id], nil
}

// Skipped reports whether the blocks of this section are ignored because
// its version is not understood.
func (s *Section) Skipped() bool { return s.skipped }

func (s *Section) addInterface(i *Interface) {
	i.Index = uint32(len(s.Interfaces))
	s.Interfaces = append(s.Interfaces, i)
}

// sectionTable keeps every section seen so far, ordered by file offset.
type sectionTable struct {
	sections []*Section
}

func (t *sectionTable) add(s *Section) {
	i := sort.Search(len(t.sections), func(i int) bool { return t.sections[i].Offset >= s.Offset })
	if i < len(t.sections) && t.sections[i].Offset == s.Offset {
		t.sections[i] = s
		return
	}
	t.sections = append(t.sections, nil)
	copy(t.sections[i+1:], t.sections[i:])
	t.sections[i] = s
}

// at returns the section governing offset: the last one starting at or
// before it.
func (t *sectionTable) at(offset int64) (*Section, bool) {
	i := sort.Search(len(t.sections), func(i int) bool { return t.sections[i].Offset > offset })
	if i == 0 {
		return nil, false
	}
	return t.sections[i-1], true
}

func (t *sectionTable) last() *Section {
	if len(t.sections) == 0 {
		return nil
	}
	return t.sections[len(t.sections)-1]
}

func (t *sectionTable) all() []*Section {
	out := make([]*Section, len(t.sections))
	copy(out, t.sections)
	return out
}
