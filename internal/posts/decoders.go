package posts

import (
	"github.com/go-playground/validator/v10"

	"github.com/bluehorizon/skydesk/pkg/enums"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/outbox"
)

type decoderRegistrar interface {
	Register(kind enums.MutationKind, version int, decoder outbox.DecoderFunc)
}

// RegisterDecoders teaches the outbox how to replay queued posts.
func RegisterDecoders(registry decoderRegistrar) {
	v := validator.New()
	registry.Register(enums.MutationKindCreatePost, createPostVersion, outbox.JSONDecoder(func(p gateway.CreatePost) error {
		return v.Struct(p)
	}))
}
