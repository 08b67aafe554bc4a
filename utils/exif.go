package utils

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// readOrientation safely extracts the EXIF orientation tag, defaulting to 1
// (upright) when the data carries no EXIF block or no orientation.
func readOrientation(rawImage []byte) int {
	exifData, err := exif.Decode(bytes.NewReader(rawImage))
	if err != nil {
		return 1
	}
	tag, err := exifData.Get(exif.Orientation)
	if err != nil || tag == nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// ApplyEXIFOrientation normalizes decoded pixels to upright according to the
// EXIF orientation carried in the original bytes. Phone uploads commonly
// store rotated sensor data; face detection needs upright input.
func ApplyEXIFOrientation(img image.Image, rawImage []byte) image.Image {
	switch readOrientation(rawImage) {
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
