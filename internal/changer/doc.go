// Package changer runs one wallpaper change: report CHANGING, acquire and
// stage an image, apply it to the desktop, then report READY with the staged
// path or ERROR.
//
// Only acquisition failures reach the caller and the progress peer. Applying
// the image is best effort: a desktop failure is logged and the run still
// ends with READY, since the image was staged and recorded.
package changer
