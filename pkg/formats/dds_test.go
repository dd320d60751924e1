package formats

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// createDDS builds a DDS blob with the given format and payload.
func createDDS(fourCC string, width, height uint32, payload []byte) []byte {
	hdr := make([]byte, 124)
	binary.LittleEndian.PutUint32(hdr[0:], 124)            // dwSize
	binary.LittleEndian.PutUint32(hdr[4:], ddsdLinearSize) // dwFlags
	binary.LittleEndian.PutUint32(hdr[8:], height)
	binary.LittleEndian.PutUint32(hdr[12:], width)
	binary.LittleEndian.PutUint32(hdr[16:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[72:], 32) // ddpf.dwSize
	copy(hdr[80:84], fourCC)

	buf := new(bytes.Buffer)
	buf.WriteString("DDS ")
	buf.Write(hdr)
	buf.Write(payload)
	return buf.Bytes()
}

func TestParseDDSHeader(t *testing.T) {
	payload := make([]byte, 32896-128)
	data := createDDS("DXT1", 256, 256, payload)

	h, err := ParseDDSHeader(data)
	if err != nil {
		t.Fatalf("ParseDDSHeader failed: %v", err)
	}
	if h.Width != 256 || h.Height != 256 {
		t.Errorf("dimensions: got %dx%d, want 256x256", h.Width, h.Height)
	}
	if h.Format != DXT1 {
		t.Errorf("format: got %s, want DXT1", h.Format)
	}
	if h.LinearSize != uint32(len(payload)) {
		t.Errorf("linear size: got %d, want %d", h.LinearSize, len(payload))
	}
}

func TestParseDDSHeader_BadMagic(t *testing.T) {
	data := createDDS("DXT5", 16, 16, make([]byte, 256))
	data[0] = 'X'
	if _, err := ParseDDSHeader(data); err != ErrInvalidDDSMagic {
		t.Errorf("expected ErrInvalidDDSMagic, got %v", err)
	}
}

func TestParseDDSHeader_BadFourCC(t *testing.T) {
	data := createDDS("RGBA", 16, 16, make([]byte, 256))
	if _, err := ParseDDSHeader(data); err == nil {
		t.Error("expected error for unsupported fourCC")
	}
}

func TestReadDDS_Sequential(t *testing.T) {
	// Two surfaces back to back, as in a base texture archive.
	p1 := bytes.Repeat([]byte{0xAA}, 64)
	p2 := bytes.Repeat([]byte{0xBB}, 128)
	blob := append(createDDS("DXT1", 16, 16, p1), createDDS("DXT5", 32, 32, p2)...)

	r := bytes.NewReader(blob)
	h1, b1, n1, err := ReadDDS(r)
	if err != nil {
		t.Fatalf("first ReadDDS failed: %v", err)
	}
	if h1.Format != DXT1 || !bytes.Equal(b1, p1) {
		t.Error("first surface payload mismatch")
	}
	if n1 != int64(128+len(p1)) {
		t.Errorf("first surface size: got %d, want %d", n1, 128+len(p1))
	}
	h2, b2, _, err := ReadDDS(r)
	if err != nil {
		t.Fatalf("second ReadDDS failed: %v", err)
	}
	if h2.Format != DXT5 || !bytes.Equal(b2, p2) {
		t.Error("second surface payload mismatch")
	}
}

func TestReadDDS_Truncated(t *testing.T) {
	data := createDDS("DXT3", 16, 16, make([]byte, 100))
	if _, _, _, err := ReadDDS(bytes.NewReader(data[:len(data)-10])); err == nil {
		t.Error("expected error for truncated payload")
	}
}
