package graph

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

const (
	// DefaultAvatar is the avatar of odd-numbered users.
	DefaultAvatar = "user1.jpg"
	// NoPhotoAvatar is the avatar of even-numbered users.
	NoPhotoAvatar = "nophoto.jpg"

	avatarSize = 48
)

// avatarImages renders the two stock avatars.
func avatarImages() (map[string][]byte, error) {
	out := make(map[string][]byte, 2)
	for name, fill := range map[string]color.RGBA{
		DefaultAvatar: {R: 0xd9, G: 0x6c, B: 0x2b, A: 0xff},
		NoPhotoAvatar: {R: 0xbb, G: 0xbb, B: 0xbb, A: 0xff},
	} {
		data, err := renderAvatar(fill, name == DefaultAvatar)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

// renderAvatar draws a flat square, optionally with a darker head-and-
// shoulders silhouette.
func renderAvatar(fill color.RGBA, silhouette bool) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	shade := color.RGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 0xff}
	c := avatarSize / 2
	for y := 0; y < avatarSize; y++ {
		for x := 0; x < avatarSize; x++ {
			px := fill
			if silhouette {
				dx, dy := x-c, y-avatarSize/3
				head := dx*dx+dy*dy <= (avatarSize/6)*(avatarSize/6)
				body := y > avatarSize*2/3 && dx*dx <= (avatarSize/3)*(avatarSize/3)
				if head || body {
					px = shade
				}
			}
			img.SetRGBA(x, y, px)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
