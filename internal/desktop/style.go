package desktop

// Reference screen used when sizing decisions need one.
const (
	screenWidth  = 1920
	screenHeight = 1080
)

// ComputeStyle picks a background style from the image dimensions. A
// configured style other than "auto" always wins.
func ComputeStyle(configured string, width, height int) string {
	if configured != "" && configured != "auto" {
		return configured
	}
	if width <= 0 || height <= 0 {
		return "zoom"
	}
	if width*2 <= screenWidth && height*2 <= screenHeight {
		return "centered"
	}
	ratio := float64(width) / float64(height)
	screen := float64(screenWidth) / float64(screenHeight)
	switch {
	case ratio >= screen*1.8:
		return "spanned"
	case ratio >= screen*0.8 && ratio <= screen*1.25:
		return "zoom"
	default:
		return "scaled"
	}
}
