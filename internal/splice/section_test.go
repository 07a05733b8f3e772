package splice

import (
	"errors"
	"testing"
	"time"

	"github.com/Comcast/gots/v2"
)

func mpegCRC(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestBuildSpliceOutRoundTrip(t *testing.T) {
	sec, err := BuildSpliceOut(7, 100*time.Second, 30*time.Second, DefaultSectionOptions())
	if err != nil {
		t.Fatalf("BuildSpliceOut: %v", err)
	}
	if sec.Data[0] != spliceTableID {
		t.Fatalf("table id = 0x%02x, want 0xfc", sec.Data[0])
	}
	if mpegCRC(sec.Data) != 0 {
		t.Fatal("section CRC does not verify")
	}

	ev, err := DecodeSection(sec.Data)
	if err != nil {
		t.Fatalf("DecodeSection: %v", err)
	}
	if ev.Kind != KindSpliceOut || ev.ID != 7 {
		t.Fatalf("decoded %s id %d, want splice_out id 7", ev.Kind, ev.ID)
	}
	if ev.Time != 100*time.Second {
		t.Fatalf("decoded time %s, want 100s", ev.Time)
	}
	if !ev.HasDuration || ev.Duration != 30*time.Second {
		t.Fatalf("decoded duration %s (has=%v), want 30s", ev.Duration, ev.HasDuration)
	}
}

func TestBuildSpliceOutZeroDurationOmitsBreak(t *testing.T) {
	sec, err := BuildSpliceOut(1, time.Second, 0, DefaultSectionOptions())
	if err != nil {
		t.Fatalf("BuildSpliceOut: %v", err)
	}
	if sec.HasDuration {
		t.Fatal("expected no break_duration for zero duration")
	}
	ev, err := DecodeSection(sec.Data)
	if err != nil {
		t.Fatalf("DecodeSection: %v", err)
	}
	if ev.HasDuration {
		t.Fatal("decoded section carries break_duration")
	}
}

func TestBuildSpliceOutRejectsNegativeDuration(t *testing.T) {
	_, err := BuildSpliceOut(1, time.Second, -time.Second, DefaultSectionOptions())
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
}

func TestBuildSpliceIn(t *testing.T) {
	sec, err := BuildSpliceIn(8, 110200*time.Millisecond, DefaultSectionOptions())
	if err != nil {
		t.Fatalf("BuildSpliceIn: %v", err)
	}
	ev, err := DecodeSection(sec.Data)
	if err != nil {
		t.Fatalf("DecodeSection: %v", err)
	}
	if ev.Kind != KindSpliceIn || ev.ID != 8 {
		t.Fatalf("decoded %s id %d, want splice_in id 8", ev.Kind, ev.ID)
	}
	if ev.Time != 110200*time.Millisecond {
		t.Fatalf("decoded time %s, want 110.2s", ev.Time)
	}
	if ev.HasDuration {
		t.Fatal("splice-in must not carry break_duration")
	}
}

func TestSectionPTSOffsetShiftsTimeOnly(t *testing.T) {
	opts := DefaultSectionOptions()
	opts.PTSOffset = 10 * time.Second
	sec, err := BuildSpliceOut(2, 5*time.Second, 20*time.Second, opts)
	if err != nil {
		t.Fatalf("BuildSpliceOut: %v", err)
	}
	if sec.Time != 5*time.Second {
		t.Fatalf("event time %s, want running time 5s", sec.Time)
	}
	ev, err := DecodeSection(sec.Data)
	if err != nil {
		t.Fatalf("DecodeSection: %v", err)
	}
	if ev.Time != 15*time.Second {
		t.Fatalf("pts_time %s, want 15s", ev.Time)
	}
	if ev.Duration != 20*time.Second {
		t.Fatalf("duration %s, want 20s", ev.Duration)
	}
}

func TestDecodeSectionAcceptsPointerField(t *testing.T) {
	sec, err := BuildSpliceIn(3, time.Second, DefaultSectionOptions())
	if err != nil {
		t.Fatalf("BuildSpliceIn: %v", err)
	}
	withPointer := append([]byte{0x00}, sec.Data...)
	ev, err := DecodeSection(withPointer)
	if err != nil {
		t.Fatalf("DecodeSection: %v", err)
	}
	if ev.ID != 3 {
		t.Fatalf("id = %d, want 3", ev.ID)
	}
}

func TestBuildSpliceOutRejectsOverlongBreak(t *testing.T) {
	for _, d := range []time.Duration{30 * time.Hour, MaxBreakDuration + time.Millisecond} {
		if _, err := BuildSpliceOut(1, 10*time.Second, d, DefaultSectionOptions()); !errors.Is(err, ErrEncoding) {
			t.Fatalf("duration %s: err = %v, want ErrEncoding", d, err)
		}
	}

	sec, err := BuildSpliceOut(1, 10*time.Second, MaxBreakDuration, DefaultSectionOptions())
	if err != nil {
		t.Fatalf("BuildSpliceOut at limit: %v", err)
	}
	ev, err := DecodeSection(sec.Data)
	if err != nil {
		t.Fatalf("DecodeSection: %v", err)
	}
	if diff := MaxBreakDuration - ev.Duration; diff < 0 || diff > time.Millisecond {
		t.Fatalf("decoded duration = %s, want about %s", ev.Duration, MaxBreakDuration)
	}
}

func TestDecodeSectionRejectsEmpty(t *testing.T) {
	if _, err := DecodeSection(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestSectionBytesValidatesFraming(t *testing.T) {
	if _, err := sectionBytes(nil); !errors.Is(err, ErrEncoding) {
		t.Fatalf("empty: err = %v, want ErrEncoding", err)
	}
	if _, err := sectionBytes([]byte{0x00, 0x42, 0x00, 0x00}); !errors.Is(err, ErrEncoding) {
		t.Fatalf("wrong table id: err = %v, want ErrEncoding", err)
	}
	if _, err := sectionBytes([]byte{spliceTableID, 0x30, 0x20, 0x00}); !errors.Is(err, ErrEncoding) {
		t.Fatalf("short section: err = %v, want ErrEncoding", err)
	}
	got, err := sectionBytes([]byte{0x00, spliceTableID, 0x30, 0x01, 0xAA, 0xFF, 0xFF})
	if err != nil {
		t.Fatalf("sectionBytes: %v", err)
	}
	if len(got) != 4 || got[3] != 0xAA {
		t.Fatalf("sectionBytes = % x, want fc 30 01 aa", got)
	}
}

func TestPTSConversion(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want gots.PTS
	}{
		{name: "zero", in: 0, want: 0},
		{name: "one second", in: time.Second, want: 90000},
		{name: "sub second", in: 1500 * time.Millisecond, want: 135000},
		{name: "wraps at 33 bits", in: time.Duration(ptsModulus/ptsClockRate)*time.Second + time.Second, want: 25408},
		{name: "negative wraps", in: -time.Second, want: ptsModulus - 90000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToPTS(tt.in); got != tt.want {
				t.Fatalf("ToPTS(%s) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
	if got := FromPTS(135000); got != 1500*time.Millisecond {
		t.Fatalf("FromPTS(135000) = %s, want 1.5s", got)
	}
}

func TestKindString(t *testing.T) {
	if KindSpliceOut.String() != "splice_out" || KindSpliceIn.String() != "splice_in" {
		t.Fatalf("unexpected kind names %q %q", KindSpliceOut, KindSpliceIn)
	}
	if Kind(0).String() != "unknown" {
		t.Fatalf("zero kind = %q, want unknown", Kind(0))
	}
}
