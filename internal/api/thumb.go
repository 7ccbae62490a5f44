package api

import (
	"bytes"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

const (
	thumbMaxSize = 400
	thumbQuality = 80
)

var thumbExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

// handleThumb renders a small JPEG preview of an image file for the
// grid view. Non-image paths are a plain 404 so the UI can fall back to
// an icon.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	abs, err := s.root.Resolve(r.URL.Query().Get("path"))
	if err != nil {
		s.sendOpError(w, r, err)
		return
	}

	if !thumbExts[strings.ToLower(filepath.Ext(abs))] {
		sendError(w, http.StatusNotFound, "not found")
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		sendError(w, http.StatusNotFound, "not found")
		return
	}
	defer f.Close()

	orientation := readOrientation(f)
	if _, err := f.Seek(0, 0); err != nil {
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	img, _, err := image.Decode(f)
	if err != nil {
		sendError(w, http.StatusNotFound, "not found")
		return
	}

	thumb := imaging.Fit(applyOrientation(img, orientation), thumbMaxSize, thumbMaxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbQuality}); err != nil {
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(buf.Bytes())
}

// readOrientation pulls the EXIF orientation tag; 1 (upright) when the
// file carries no usable EXIF.
func readOrientation(f *os.File) int {
	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation transforms an image according to EXIF orientation.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
