// Package imagedata carries encoded images between contexts in their
// self-describing data URL form.
package imagedata

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypeWebP = "image/webp"
)

// ErrEmpty reports an image without payload bytes.
var ErrEmpty = errors.New("image payload is empty")

// Image is an encoded image together with its media type.
type Image struct {
	MediaType string
	Data      []byte
}

// New wraps raw bytes, sniffing the media type when mediaType is empty.
func New(data []byte, mediaType string) Image {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return Image{MediaType: mediaType, Data: data}
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool { return len(i.Data) == 0 }

// IsImage reports whether the media type is an image/* type.
func (i Image) IsImage() bool { return strings.HasPrefix(i.MediaType, "image/") }

// DataURL renders the image as a base64 data URL.
func (i Image) DataURL() string {
	return dataurl.New(i.Data, i.MediaType).String()
}

// ParseDataURL decodes a data URL into an Image. Only image/* payloads are accepted.
func ParseDataURL(value string) (Image, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "data:") {
		return Image{}, errors.New("not a data url")
	}
	decoded, err := dataurl.DecodeString(value)
	if err != nil {
		return Image{}, fmt.Errorf("decode data url: %w", err)
	}
	img := Image{MediaType: decoded.MediaType.ContentType(), Data: decoded.Data}
	if !img.IsImage() {
		return Image{}, fmt.Errorf("data url media type %q is not an image", img.MediaType)
	}
	if img.Empty() {
		return Image{}, ErrEmpty
	}
	return img, nil
}
