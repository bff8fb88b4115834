package meshreduce

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// jpegQuality is the re-encode quality for resized JPEG images.
const jpegQuality = 92

// ErrUnknownImageFormat reports bytes no registered decoder accepts.
var ErrUnknownImageFormat = errors.New("meshreduce: unknown image format")

// StdImageCodec decodes PNG, JPEG, WebP and BMP with the standard
// library and x/image, and resamples with a Catmull-Rom kernel.
type StdImageCodec struct{}

// NewStdImageCodec returns the bundled image codec.
func NewStdImageCodec() *StdImageCodec { return &StdImageCodec{} }

func (c *StdImageCodec) decode(data []byte, mime string) (image.Image, string, error) {
	switch mime {
	case "image/png":
		img, err := png.Decode(bytes.NewReader(data))
		return img, "png", err
	case "image/jpeg":
		img, err := jpeg.Decode(bytes.NewReader(data))
		return img, "jpeg", err
	case "image/webp":
		img, err := webp.Decode(bytes.NewReader(data))
		return img, "webp", err
	case "image/bmp":
		img, err := bmp.Decode(bytes.NewReader(data))
		return img, "bmp", err
	}
	// No usable mime type; sniff.
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnknownImageFormat, err)
	}
	return img, format, nil
}

// Decode returns tightly packed RGBA pixels.
func (c *StdImageCodec) Decode(data []byte, mime string) (*ImageData, error) {
	img, _, err := c.decode(data, mime)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &ImageData{Width: w, Height: h, RGBA: rgba.Pix}, nil
}

// Resize resamples to scale in (0,1) with Catmull-Rom and re-encodes to
// the source format (JPEG stays JPEG, everything else becomes PNG).
func (c *StdImageCodec) Resize(data []byte, mime string, scale float32) (*EncodedImage, error) {
	if scale <= 0 || scale >= 1 {
		return nil, fmt.Errorf("meshreduce: resize scale %v outside (0,1)", scale)
	}
	img, format, err := c.decode(data, mime)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	w := int(float32(bounds.Dx()) * scale)
	h := int(float32(bounds.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("meshreduce: re-encoding jpeg: %w", err)
		}
	} else {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("meshreduce: re-encoding png: %w", err)
		}
	}
	return &EncodedImage{Data: buf.Bytes(), Width: w, Height: h}, nil
}

// Dimensions decodes only the image config.
func (c *StdImageCodec) Dimensions(data []byte, mime string) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnknownImageFormat, err)
	}
	return cfg.Width, cfg.Height, nil
}

// decodeDataURI extracts the payload of a data: URI image, or nil.
func decodeDataURI(asset *gltf.Asset, index int) []byte {
	if index < 0 || index >= len(asset.Doc.Images) {
		return nil
	}
	uri := asset.Doc.Images[index].URI
	if !strings.HasPrefix(uri, "data:") {
		return nil
	}
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil
	}
	meta := uri[5:comma]
	payload := uri[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		out, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil
		}
		return out
	}
	return []byte(payload)
}
