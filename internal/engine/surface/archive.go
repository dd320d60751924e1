package surface

import (
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/pkg/formats"
)

// LoadArchiveTextures reads up to max DDS surfaces stored back to back
// in a texture archive and uploads each as a compressed texture. A short
// archive is not an error: the textures that were present are returned
// and the caller degrades. A missing file returns an error and no
// textures.
func LoadArchiveTextures(dev device.Device, path string, max int, managed bool) ([]device.Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening texture archive: %w", err)
	}
	defer f.Close()

	var texs []device.Texture
	for len(texs) < max {
		hdr, payload, _, err := formats.ReadDDS(f)
		if err != nil {
			if errors.Is(err, formats.ErrTruncatedDDS) {
				break // end of archive
			}
			releaseAll(texs)
			return nil, fmt.Errorf("surface %d of %s: %w", len(texs), path, err)
		}
		t, err := dev.CreateCompressedTexture(hdr.Width, hdr.Height, hdr.Format, payload, managed)
		if err != nil {
			releaseAll(texs)
			return nil, fmt.Errorf("uploading surface %d of %s: %w", len(texs), path, err)
		}
		texs = append(texs, t)
	}
	return texs, nil
}

// LoadSingleTexture reads the first DDS surface of a file.
func LoadSingleTexture(dev device.Device, path string, managed bool) (device.Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdr, payload, _, err := formats.ReadDDS(f)
	if err != nil {
		return nil, err
	}
	return dev.CreateCompressedTexture(hdr.Width, hdr.Height, hdr.Format, payload, managed)
}

func releaseAll(texs []device.Texture) {
	for _, t := range texs {
		if t != nil {
			t.Release()
		}
	}
}
