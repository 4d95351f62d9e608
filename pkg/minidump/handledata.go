package minidump

// HandleDescriptorVariant identifies which of the three on-disk
// MINIDUMP_HANDLE_DESCRIPTOR layouts a HandleDataStream uses, distinguished
// by its declared SizeOfDescriptor (spec.md §4.1).
type HandleDescriptorVariant int

const (
	HandleVariantUnknown HandleDescriptorVariant = iota
	HandleVariant1
	HandleVariant2
	HandleVariant3
)

const (
	handleDescriptorSize1 = 28
	handleDescriptorSize2 = 32
	handleDescriptorSize3 = 40
)

// HandleDescriptor is normalized across all three on-disk variants; fields
// only variant 2/3 carry are zero when the stream used an earlier layout.
type HandleDescriptor struct {
	Handle     uint64
	TypeNameRVA uint32
	ObjectNameRVA uint32
	Attributes uint32
	GrantedAccess uint32
	HandleCount uint32
	PointerCount uint32 // variants 2 and 3 only
	ObjectInfoRVA uint32 // variant 3 only
}

// HandleDataStreamResult carries either the successfully decoded
// descriptors or, for an unrecognized SizeOfDescriptor, the stream's raw
// bytes — the reader never discards a stream it cannot fully interpret
// (spec.md §4.1).
type HandleDataStreamResult struct {
	Variant     HandleDescriptorVariant
	Descriptors []HandleDescriptor
	Raw         []byte // set only when Variant == HandleVariantUnknown
}

func parseHandleDataStream(buf []byte) (HandleDataStreamResult, error) {
	c := newCursor(buf)
	headerSize := c.u32()
	descriptorSize := c.u32()
	count := c.u32()
	c.skip(4) // reserved
	if c.err != nil {
		return HandleDataStreamResult{}, c.err
	}

	variant := HandleVariantUnknown
	switch descriptorSize {
	case handleDescriptorSize1:
		variant = HandleVariant1
	case handleDescriptorSize2:
		variant = HandleVariant2
	case handleDescriptorSize3:
		variant = HandleVariant3
	default:
		return HandleDataStreamResult{Variant: HandleVariantUnknown, Raw: append([]byte(nil), buf...)}, nil
	}

	c.seekTo(int(headerSize))
	out := make([]HandleDescriptor, count)
	for i := range out {
		entryStart := c.off
		d := HandleDescriptor{
			Handle:        c.u64(),
			TypeNameRVA:   c.u32(),
			ObjectNameRVA: c.u32(),
			Attributes:    c.u32(),
			GrantedAccess: c.u32(),
			HandleCount:   c.u32(),
		}
		if variant != HandleVariant1 {
			d.PointerCount = c.u32()
		}
		if variant == HandleVariant3 {
			d.ObjectInfoRVA = c.u32()
		}
		if c.err != nil {
			return HandleDataStreamResult{}, c.err
		}
		out[i] = d
		c.seekTo(entryStart + int(descriptorSize))
	}
	return HandleDataStreamResult{Variant: variant, Descriptors: out}, nil
}
