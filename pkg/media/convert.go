// Package media handles generated-image post-processing and upload to the
// external media storage service.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Convert re-encodes image data into the given output format: webp, jpeg or
// png. Returns the converted bytes and the matching content type.
func Convert(data []byte, format string) ([]byte, string, error) {
	img, err := decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode generated image: %w", err)
	}

	var out bytes.Buffer
	switch format {
	case "webp":
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, 85)
		if err != nil {
			return nil, "", err
		}
		if err := webp.Encode(&out, img, opts); err != nil {
			return nil, "", fmt.Errorf("encode webp: %w", err)
		}
		return out.Bytes(), "image/webp", nil
	case "jpeg":
		if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return out.Bytes(), "image/jpeg", nil
	case "png":
		if err := png.Encode(&out, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return out.Bytes(), "image/png", nil
	default:
		return nil, "", fmt.Errorf("unsupported output format %q", format)
	}
}

// Extension returns the file extension for a supported output format.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	default:
		return ".webp"
	}
}

func decode(data []byte) (image.Image, error) {
	if isWEBP(data) {
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func isWEBP(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
