package model

import "image"

// StatusUnavailable is the reading produced when no travel time can be
// recognized in a camera snapshot.
const StatusUnavailable = "Time not available"

// Region is a crop box in source-image pixels. Right and Bottom are
// exclusive.
type Region struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// IsZero reports whether the region selects no pixels, meaning the whole
// image is used.
func (r Region) IsZero() bool {
	return r.Rect().Empty()
}

// Checkpoint is a monitored border crossing camera.
type Checkpoint struct {
	Name     string `json:"name" yaml:"name"`
	ImageURL string `json:"image_url" yaml:"image_url"`
	Region   Region `json:"region" yaml:"region"`
}

// Baseline holds the last stored status per checkpoint at the start of a
// poll cycle. A missing or empty entry means the previous status is unknown.
type Baseline map[string]string

// Previous returns the stored status for a checkpoint and whether it is known.
func (b Baseline) Previous(checkpoint string) (string, bool) {
	v, ok := b[checkpoint]
	return v, ok && v != ""
}
