package formats

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// createLightMaskV1 builds a v1.00 light mask file.
func createLightMaskV1(minres, maxres uint8, flags []uint16) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("PLTA0100")
	buf.WriteByte(minres)
	buf.WriteByte(maxres)
	binary.Write(buf, binary.LittleEndian, uint16(len(flags)))
	for _, f := range flags {
		binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

// createLightMaskV0 builds a pre-v1.00 light mask file. The flag count is
// implied by the resolution range.
func createLightMaskV0(minres, maxres uint8, flags []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(minres)
	buf.WriteByte(maxres)
	buf.Write(flags)
	return buf.Bytes()
}

func TestParseLightMask_V1(t *testing.T) {
	flags := []uint16{1, 3, 7, 4}
	data := createLightMaskV1(5, 5, flags)

	lm, err := ParseLightMask(data)
	if err != nil {
		t.Fatalf("ParseLightMask failed: %v", err)
	}
	if lm.MinRes != 5 || lm.MaxRes != 5 {
		t.Errorf("expected res range 5..5, got %d..%d", lm.MinRes, lm.MaxRes)
	}
	if len(lm.Flags) != 4 {
		t.Fatalf("expected 4 flags, got %d", len(lm.Flags))
	}
	for i, want := range flags {
		if lm.Flags[i] != want {
			t.Errorf("flag %d: got %d, want %d", i, lm.Flags[i], want)
		}
	}
}

func TestParseLightMask_OldStyle(t *testing.T) {
	// minres=1, maxres=8 covers all 501 base patches.
	npatch := PatchIdx[8] - PatchIdx[0]
	flags := make([]byte, npatch)
	for i := range flags {
		flags[i] = byte(i % 8)
	}
	data := createLightMaskV0(1, 8, flags)

	lm, err := ParseLightMask(data)
	if err != nil {
		t.Fatalf("ParseLightMask failed: %v", err)
	}
	if len(lm.Flags) != npatch {
		t.Fatalf("expected %d flags, got %d", npatch, len(lm.Flags))
	}
	// The in-memory flag for base tile i equals the i-th byte of the file.
	for i := range flags {
		if lm.Flags[i] != uint16(flags[i]) {
			t.Errorf("flag %d: got %d, want %d", i, lm.Flags[i], flags[i])
		}
	}
}

func TestParseLightMask_Truncated(t *testing.T) {
	data := createLightMaskV0(1, 8, make([]byte, 100)) // needs 501
	if _, err := ParseLightMask(data); err == nil {
		t.Error("expected error for truncated old-style mask")
	}

	data = createLightMaskV1(5, 5, []uint16{1, 2, 3})
	if _, err := ParseLightMask(data[:len(data)-2]); err == nil {
		t.Error("expected error for truncated v1.00 mask")
	}
}

func TestParseLightMask_BadRange(t *testing.T) {
	if _, err := ParseLightMask(createLightMaskV0(0, 8, nil)); err == nil {
		t.Error("expected error for minres=0")
	}
	if _, err := ParseLightMask(createLightMaskV0(6, 3, nil)); err == nil {
		t.Error("expected error for minres > maxres")
	}
}
