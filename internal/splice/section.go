package splice

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Comcast/gots/v2"
	"github.com/Comcast/gots/v2/scte35"
)

const (
	spliceTableID = 0xFC
	ptsClockRate  = 90000
	ptsModulus    = 1 << 33
)

// MaxBreakDuration is the longest break_duration the 33-bit field can carry.
const MaxBreakDuration = time.Duration(ptsModulus-1) * time.Second / ptsClockRate

// Kind distinguishes the two splice_insert flavours this package emits.
type Kind uint8

const (
	KindSpliceOut Kind = iota + 1
	KindSpliceIn
)

func (k Kind) String() string {
	switch k {
	case KindSpliceOut:
		return "splice_out"
	case KindSpliceIn:
		return "splice_in"
	default:
		return "unknown"
	}
}

// Event is the content of one splice_insert command. Duration is meaningful
// only when HasDuration is set; splice-in events never carry one.
type Event struct {
	Kind        Kind
	ID          EventID
	Time        time.Duration
	Duration    time.Duration
	HasDuration bool
}

// Section is an encoded splice_info_section ready for injection. Data starts
// at table_id and ends with CRC_32; it carries no pointer_field.
type Section struct {
	Event
	Data []byte
}

// SectionOptions carries the per-stream constants written into every section.
type SectionOptions struct {
	Tier            uint16
	UniqueProgramID uint16
	AutoReturn      bool
	// PTSOffset maps running time zero onto the stream's presentation
	// timeline.
	PTSOffset time.Duration
}

// DefaultSectionOptions returns unrestricted tier, auto-return breaks, and a
// zero PTS offset.
func DefaultSectionOptions() SectionOptions {
	return SectionOptions{Tier: 0x0FFF, AutoReturn: true}
}

// BuildSpliceOut encodes a splice-out for id at the given running time. A
// zero duration omits break_duration; a negative one fails with
// ErrInvalidDuration and one beyond MaxBreakDuration with ErrEncoding.
func BuildSpliceOut(id EventID, at, duration time.Duration, opts SectionOptions) (Section, error) {
	if duration < 0 {
		return Section{}, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}
	if ptsTicks(duration) >= ptsModulus {
		return Section{}, fmt.Errorf("%w: break_duration %s exceeds %s", ErrEncoding, duration, MaxBreakDuration)
	}
	ev := Event{
		Kind:        KindSpliceOut,
		ID:          id,
		Time:        at,
		Duration:    duration,
		HasDuration: duration > 0,
	}
	data, err := encodeInsert(ev, opts)
	if err != nil {
		return Section{}, err
	}
	return Section{Event: ev, Data: data}, nil
}

// BuildSpliceIn encodes the return-to-network splice for id at the given
// running time.
func BuildSpliceIn(id EventID, at time.Duration, opts SectionOptions) (Section, error) {
	ev := Event{Kind: KindSpliceIn, ID: id, Time: at}
	data, err := encodeInsert(ev, opts)
	if err != nil {
		return Section{}, err
	}
	return Section{Event: ev, Data: data}, nil
}

func encodeInsert(ev Event, opts SectionOptions) ([]byte, error) {
	msg := scte35.CreateSCTE35()
	msg.SetTier(opts.Tier & 0x0FFF)

	cmd := scte35.CreateSpliceInsertCommand()
	cmd.SetEventID(uint32(ev.ID))
	cmd.SetUniqueProgramId(opts.UniqueProgramID)
	cmd.SetIsEventCanceled(false)
	cmd.SetIsOut(ev.Kind == KindSpliceOut)
	cmd.SetSpliceImmediate(false)
	cmd.SetHasPTS(true)
	cmd.SetPTS(ToPTS(ev.Time + opts.PTSOffset))
	if ev.HasDuration {
		cmd.SetHasDuration(true)
		cmd.SetDuration(ToPTS(ev.Duration))
		cmd.SetIsAutoReturn(opts.AutoReturn)
	}
	msg.SetCommandInfo(cmd)

	return sectionBytes(msg.UpdateData())
}

// sectionBytes strips an optional pointer_field and checks the section
// framing against section_length.
func sectionBytes(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty section", ErrEncoding)
	}
	if raw[0] != spliceTableID {
		skip := int(raw[0]) + 1
		if skip >= len(raw) {
			return nil, fmt.Errorf("%w: pointer field %d exceeds payload", ErrEncoding, raw[0])
		}
		raw = raw[skip:]
	}
	if raw[0] != spliceTableID {
		return nil, fmt.Errorf("%w: table id 0x%02x", ErrEncoding, raw[0])
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("%w: truncated header", ErrEncoding)
	}
	total := 3 + int(binary.BigEndian.Uint16(raw[1:3])&0x0FFF)
	if len(raw) < total {
		return nil, fmt.Errorf("%w: section_length %d exceeds %d bytes", ErrEncoding, total-3, len(raw)-3)
	}
	out := make([]byte, total)
	copy(out, raw[:total])
	return out, nil
}

// DecodeSection parses a splice_insert section produced by this package or
// any other SCTE-35 encoder. The section may start with a pointer_field.
// Event.Time is the raw pts_time; any PTS offset is not removed.
func DecodeSection(data []byte) (Event, error) {
	if len(data) == 0 {
		return Event{}, fmt.Errorf("decode splice section: empty input")
	}
	payload := data
	if data[0] == spliceTableID {
		payload = make([]byte, len(data)+1)
		copy(payload[1:], data)
	}
	msg, err := scte35.NewSCTE35(payload)
	if err != nil {
		return Event{}, fmt.Errorf("decode splice section: %w", err)
	}
	if msg.Command() != scte35.SpliceInsert {
		return Event{}, fmt.Errorf("decode splice section: unsupported command type 0x%02x", uint8(msg.Command()))
	}
	insert, ok := msg.CommandInfo().(scte35.SpliceInsertCommand)
	if !ok {
		return Event{}, fmt.Errorf("decode splice section: splice_insert payload missing")
	}
	ev := Event{Kind: KindSpliceIn, ID: EventID(insert.EventID())}
	if insert.IsOut() {
		ev.Kind = KindSpliceOut
	}
	if insert.HasPTS() {
		ev.Time = FromPTS(insert.PTS())
	}
	if insert.HasDuration() {
		ev.HasDuration = true
		ev.Duration = FromPTS(insert.Duration())
	}
	return ev, nil
}

// ToPTS converts a running time to 90 kHz ticks wrapped to 33 bits.
func ToPTS(d time.Duration) gots.PTS {
	ticks := ptsTicks(d) % ptsModulus
	if ticks < 0 {
		ticks += ptsModulus
	}
	return gots.PTS(ticks)
}

func ptsTicks(d time.Duration) int64 {
	return int64(d/time.Second)*ptsClockRate + int64(d%time.Second)*ptsClockRate/int64(time.Second)
}

// FromPTS converts 90 kHz ticks back to a duration.
func FromPTS(p gots.PTS) time.Duration {
	ticks := uint64(p) % ptsModulus
	return time.Duration(ticks/ptsClockRate)*time.Second +
		time.Duration(ticks%ptsClockRate)*time.Second/ptsClockRate
}
