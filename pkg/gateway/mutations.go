package gateway

import "time"

// Image is a local file to upload as a blob and embed in a post.
type Image struct {
	Path string `json:"path" validate:"required"`
	Alt  string `json:"alt,omitempty"`
}

// CreatePost is the body of a create_post mutation. ReplyTo and QuoteOf are
// at:// URIs; the client resolves their refs at send time.
type CreatePost struct {
	Text      string    `json:"text" validate:"max=3000"`
	ReplyTo   string    `json:"replyTo,omitempty"`
	QuoteOf   string    `json:"quoteOf,omitempty"`
	Images    []Image   `json:"images,omitempty" validate:"max=4,dive"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

// MarkSeen is the body of a mark_notifications_read mutation.
type MarkSeen struct {
	SeenAt time.Time `json:"seenAt" validate:"required"`
}

// PostSubject is the body of like and repost. An empty CID is resolved
// from the post before the record is written.
type PostSubject struct {
	URI       string    `json:"uri" validate:"required,startswith=at://"`
	CID       string    `json:"cid,omitempty"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

// ActorSubject is the body of follow and block. DID must be a did: value
// because the written record references it directly.
type ActorSubject struct {
	DID       string    `json:"did" validate:"required,startswith=did:"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

// Actor is the body of mute and unmute; a handle or DID.
type Actor struct {
	Actor string `json:"actor" validate:"required"`
}

// RecordURI is the body of the undo kinds: the at:// URI of the like,
// repost, follow or block record to delete.
type RecordURI struct {
	URI string `json:"uri" validate:"required,startswith=at://"`
}
