package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestUploadResultClassification(t *testing.T) {
	cases := []struct {
		name     string
		result   UploadResult
		wantType Type
		wantDur  float64
	}{
		{"image", UploadResult{ResourceType: "image", Format: "jpg"}, TypeImage, 5},
		{"video resource", UploadResult{ResourceType: "video", Format: "webm", Duration: ptr(8.4)}, TypeVideo, 8.4},
		{"mp4 format", UploadResult{ResourceType: "raw", Format: "MP4"}, TypeVideo, 15},
		{"video without duration", UploadResult{ResourceType: "video", Format: "mov"}, TypeVideo, 15},
		{"image ignores duration", UploadResult{ResourceType: "image", Format: "png", Duration: ptr(3)}, TypeImage, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantType, tc.result.Type())
			assert.Equal(t, tc.wantDur, tc.result.DisplayDuration())
		})
	}
}

func TestUploadResultUsable(t *testing.T) {
	var missing *UploadResult
	assert.False(t, missing.Usable())
	assert.False(t, (&UploadResult{URL: "https://cdn/x.jpg"}).Usable())
	assert.True(t, (&UploadResult{URL: "https://cdn/x.jpg", PublicID: "stories/x"}).Usable())
}

func TestDestroyOutcomeSucceeded(t *testing.T) {
	for _, ok := range []string{"ok", "not found", "not_found", "deleted", " OK "} {
		assert.True(t, DestroyOutcome{Result: ok}.Succeeded(), ok)
	}
	for _, bad := range []string{"", "error", "rate limited", "pending"} {
		assert.False(t, DestroyOutcome{Result: bad}.Succeeded(), bad)
	}
}

func TestResourceKind(t *testing.T) {
	assert.Equal(t, "video", TypeVideo.ResourceKind())
	assert.Equal(t, "image", TypeImage.ResourceKind())
	assert.Equal(t, "image", Type("").ResourceKind())
}
