// Package imaging normalizes item photos for the storefront.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/jsonfile"
)

const (
	// MaxDimension bounds the longer side of a stored photo.
	MaxDimension = 1024
	JPEGQuality  = 85

	// MaxUploadBytes caps the raw input size.
	MaxUploadBytes = 10 << 20

	// AssetsPrefix is the storefront-relative directory item images live in.
	AssetsPrefix = "Assets"
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Process validates a JPEG or PNG by its leading bytes, shrinks it to fit
// MaxDimension and re-encodes it as JPEG.
func Process(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("unsupported image format: %s (only JPEG and PNG accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// AssetPath is the value stored in an item's image field.
func AssetPath(itemID string) string {
	return path.Join(AssetsPrefix, itemID+".jpg")
}

// SaveItemImage processes r and writes it to dir/<itemID>.jpg, returning
// the storefront-relative AssetPath and the local file path.
func SaveItemImage(dir, itemID string, r io.Reader) (asset, local string, err error) {
	if itemID == "" || strings.ContainsAny(itemID, `/\`) || strings.HasPrefix(itemID, ".") {
		return "", "", fmt.Errorf("invalid item id %q for image file", itemID)
	}
	data, err := Process(r)
	if err != nil {
		return "", "", err
	}
	local = filepath.Join(dir, itemID+".jpg")
	if err := jsonfile.WriteFile(local, data); err != nil {
		return "", "", fmt.Errorf("writing image: %w", err)
	}
	return AssetPath(itemID), local, nil
}

// fit scales img down with Catmull-Rom so neither side exceeds maxDim,
// keeping the aspect ratio. Smaller images are returned untouched.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	nw, nh := maxDim, maxDim
	if w > h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
