package media

import (
	"strings"
)

type Type string

const (
	TypeImage Type = "IMAGE"
	TypeVideo Type = "VIDEO"
)

const (
	DefaultImageDuration = 5.0
	DefaultVideoDuration = 15.0
)

var videoFormats = map[string]struct{}{
	"mp4":  {},
	"mov":  {},
	"webm": {},
	"mkv":  {},
	"avi":  {},
	"m4v":  {},
}

// ResourceKind maps a slide type to the store's resource kind.
func (t Type) ResourceKind() string {
	if t == TypeVideo {
		return "video"
	}
	return "image"
}

func (t Type) Valid() bool {
	return t == TypeImage || t == TypeVideo
}

// UploadResult is what the media store reports for a stored object.
type UploadResult struct {
	URL          string
	PublicID     string
	ResourceType string
	Format       string
	Duration     *float64
}

// Usable reports whether the store gave back enough to reference the object.
func (r *UploadResult) Usable() bool {
	return r != nil && r.URL != "" && r.PublicID != ""
}

func (r *UploadResult) Type() Type {
	if strings.EqualFold(r.ResourceType, "video") {
		return TypeVideo
	}
	if _, ok := videoFormats[strings.ToLower(r.Format)]; ok {
		return TypeVideo
	}
	return TypeImage
}

// DisplayDuration is the slide duration in seconds.
func (r *UploadResult) DisplayDuration() float64 {
	if r.Type() == TypeImage {
		return DefaultImageDuration
	}
	if r.Duration != nil && *r.Duration > 0 {
		return *r.Duration
	}
	return DefaultVideoDuration
}

// DestroyOutcome is the raw result string returned by a destroy call.
type DestroyOutcome struct {
	Result string
}

// Succeeded treats removed and already-absent objects alike.
func (o DestroyOutcome) Succeeded() bool {
	switch strings.ToLower(strings.TrimSpace(o.Result)) {
	case "ok", "not found", "not_found", "deleted":
		return true
	default:
		return false
	}
}
