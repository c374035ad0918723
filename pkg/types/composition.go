package types

import "strings"

const maxImages = 4

// ImageAttachment is a local image the user attached to a post.
type ImageAttachment struct {
	Path string `json:"path" validate:"required"`
	Alt  string `json:"alt,omitempty" validate:"max=2000"`
}

// Composition is the user's in-progress or submitted post.
type Composition struct {
	Text    string            `json:"text" validate:"max=3000"`
	ReplyTo string            `json:"replyTo,omitempty" validate:"omitempty,startswith=at://"`
	QuoteOf string            `json:"quoteOf,omitempty" validate:"omitempty,startswith=at://"`
	Images  []ImageAttachment `json:"images,omitempty" validate:"max=4,dive"`
}

// IsEmpty reports whether there is nothing worth keeping: blank text and no images.
func (c Composition) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.Images) == 0
}

// MaxImages is the per-post attachment limit.
func MaxImages() int {
	return maxImages
}
