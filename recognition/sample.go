package recognition

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// CropSample extracts the face region at rect from a grayscale Mat and
// resizes it to the canonical size x size sample dimension. The returned Mat
// is owned by the caller and must be Closed.
func CropSample(gray gocv.Mat, rect image.Rectangle, size int) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return gocv.Mat{}, fmt.Errorf("face region outside image bounds")
	}

	region := gray.Region(rect)
	defer region.Close()

	sample := gocv.NewMat()
	gocv.Resize(region, &sample, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	return sample, nil
}

// DecodeGray decodes raw image bytes straight to a grayscale Mat.
func DecodeGray(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to decode image as grayscale: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("failed to decode image as grayscale: %w", ErrInvalidImage)
	}
	return mat, nil
}

// ReadGrayFile reads an image file from disk as grayscale. An unreadable or
// non-image file yields an empty Mat error, not a panic.
func ReadGrayFile(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("failed to read image '%s': %w", path, ErrInvalidImage)
	}
	return mat, nil
}
