package imagedata_test

import (
	"bytes"
	"strings"
	"testing"

	"screensolve/internal/imagedata"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewSniffsMediaType(t *testing.T) {
	img := imagedata.New(pngHeader, "")
	if img.MediaType != imagedata.MediaTypePNG {
		t.Fatalf("expected png media type, got %q", img.MediaType)
	}
	if !img.IsImage() {
		t.Fatal("expected IsImage for sniffed png")
	}
}

func TestDataURLRoundTripKeepsBytes(t *testing.T) {
	img := imagedata.New([]byte{0xff, 0xd8, 0xff, 0x01, 0x02}, imagedata.MediaTypeJPEG)
	url := img.DataURL()
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data url prefix: %q", url)
	}
	parsed, err := imagedata.ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if parsed.MediaType != imagedata.MediaTypeJPEG {
		t.Fatalf("media type = %q", parsed.MediaType)
	}
	if !bytes.Equal(parsed.Data, img.Data) {
		t.Fatalf("payload mismatch: %v vs %v", parsed.Data, img.Data)
	}
}

func TestParseDataURLRejectsNonImages(t *testing.T) {
	for _, value := range []string{
		"",
		"not-a-data-url",
		"data:text/plain;base64,aGVsbG8=",
	} {
		if _, err := imagedata.ParseDataURL(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}
