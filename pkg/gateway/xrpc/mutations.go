package xrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
)

const (
	collectionPost   = "app.bsky.feed.post"
	collectionLike   = "app.bsky.feed.like"
	collectionRepost = "app.bsky.feed.repost"
	collectionFollow = "app.bsky.graph.follow"
	collectionBlock  = "app.bsky.graph.block"
	maxBlobBytes     = 1_000_000
	embedImages      = "app.bsky.embed.images"
	embedRecord      = "app.bsky.embed.record"
	embedRecordWith  = "app.bsky.embed.recordWithMedia"
)

// SendMutation performs one remote write. Writes that create a record
// return its reference.
func (c *Client) SendMutation(ctx context.Context, m gateway.Mutation) (gateway.Receipt, error) {
	switch m.Kind {
	case enums.MutationKindCreatePost:
		body, err := bodyAs[gateway.CreatePost](m)
		if err != nil {
			return gateway.Receipt{}, err
		}
		return c.createPost(ctx, body)
	case enums.MutationKindMarkNotificationsRead:
		body, err := bodyAs[gateway.MarkSeen](m)
		if err != nil {
			return gateway.Receipt{}, err
		}
		return gateway.Receipt{}, c.call(ctx, http.MethodPost, nsidUpdateSeen, nil, map[string]string{
			"seenAt": body.SeenAt.UTC().Format(time.RFC3339Nano),
		}, nil)
	case enums.MutationKindLike, enums.MutationKindRepost:
		body, err := bodyAs[gateway.PostSubject](m)
		if err != nil {
			return gateway.Receipt{}, err
		}
		return c.writeSubjectRecord(ctx, interactionCollections[m.Kind], body)
	case enums.MutationKindFollow, enums.MutationKindBlock:
		body, err := bodyAs[gateway.ActorSubject](m)
		if err != nil {
			return gateway.Receipt{}, err
		}
		collection := interactionCollections[m.Kind]
		return c.createRecord(ctx, collection, map[string]any{
			"$type":     collection,
			"subject":   body.DID,
			"createdAt": body.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	case enums.MutationKindUnlike, enums.MutationKindUnrepost, enums.MutationKindUnfollow, enums.MutationKindUnblock:
		body, err := bodyAs[gateway.RecordURI](m)
		if err != nil {
			return gateway.Receipt{}, err
		}
		return gateway.Receipt{}, c.deleteRecord(ctx, interactionCollections[m.Kind], body.URI)
	case enums.MutationKindMute, enums.MutationKindUnmute:
		body, err := bodyAs[gateway.Actor](m)
		if err != nil {
			return gateway.Receipt{}, err
		}
		nsid := nsidMuteActor
		if m.Kind == enums.MutationKindUnmute {
			nsid = nsidUnmuteActor
		}
		return gateway.Receipt{}, c.call(ctx, http.MethodPost, nsid, nil, map[string]string{"actor": body.Actor}, nil)
	default:
		return gateway.Receipt{}, pkgerrors.New(pkgerrors.CodeInternal, "unsupported mutation "+string(m.Kind))
	}
}

// interactionCollections maps record-backed interactions, and their undo
// kinds, to the collection holding the record.
var interactionCollections = map[enums.MutationKind]string{
	enums.MutationKindLike:     collectionLike,
	enums.MutationKindUnlike:   collectionLike,
	enums.MutationKindRepost:   collectionRepost,
	enums.MutationKindUnrepost: collectionRepost,
	enums.MutationKindFollow:   collectionFollow,
	enums.MutationKindUnfollow: collectionFollow,
	enums.MutationKindBlock:    collectionBlock,
	enums.MutationKindUnblock:  collectionBlock,
}

func bodyAs[T any](m gateway.Mutation) (T, error) {
	body, ok := m.Body.(T)
	if !ok {
		var zero T
		return zero, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("%s body has type %T", m.Kind, m.Body))
	}
	return body, nil
}

func (c *Client) createRecord(ctx context.Context, collection string, record any) (gateway.Receipt, error) {
	var out strongRef
	err := c.call(ctx, http.MethodPost, nsidCreateRecord, nil, map[string]any{
		"repo":       c.Credentials().DID,
		"collection": collection,
		"record":     record,
	}, &out)
	if err != nil {
		return gateway.Receipt{}, err
	}
	return gateway.Receipt{URI: out.URI, CID: out.CID}, nil
}

func (c *Client) writeSubjectRecord(ctx context.Context, collection string, body gateway.PostSubject) (gateway.Receipt, error) {
	subject := strongRef{URI: body.URI, CID: body.CID}
	if subject.CID == "" {
		post, err := c.resolvePost(ctx, body.URI)
		if err != nil {
			return gateway.Receipt{}, err
		}
		subject = post.ref()
	}
	return c.createRecord(ctx, collection, map[string]any{
		"$type":     collection,
		"subject":   subject,
		"createdAt": body.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// deleteRecord removes the record at uri, which must live in collection.
func (c *Client) deleteRecord(ctx context.Context, collection, uri string) error {
	repo, gotCollection, rkey, err := splitRecordURI(uri)
	if err != nil {
		return err
	}
	if gotCollection != collection {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is not a %s record", uri, collection))
	}
	return c.call(ctx, http.MethodPost, nsidDeleteRecord, nil, map[string]string{
		"repo":       repo,
		"collection": collection,
		"rkey":       rkey,
	}, nil)
}

// splitRecordURI parses at://<repo>/<collection>/<rkey>.
func splitRecordURI(uri string) (repo, collection, rkey string, err error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	parts := strings.Split(rest, "/")
	if !ok || len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "malformed record uri "+uri)
	}
	return parts[0], parts[1], parts[2], nil
}

type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

type blobRef struct {
	Type     string          `json:"$type"`
	Ref      json.RawMessage `json:"ref"`
	MimeType string          `json:"mimeType"`
	Size     int64           `json:"size"`
}

type imageEmbed struct {
	Image blobRef `json:"image"`
	Alt   string  `json:"alt"`
}

type postRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Reply     *replyRef `json:"reply,omitempty"`
	Embed     any       `json:"embed,omitempty"`
}

func (c *Client) createPost(ctx context.Context, body gateway.CreatePost) (gateway.Receipt, error) {
	record := postRecord{
		Type:      collectionPost,
		Text:      body.Text,
		CreatedAt: body.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	if body.ReplyTo != "" {
		parent, err := c.resolvePost(ctx, body.ReplyTo)
		if err != nil {
			return gateway.Receipt{}, err
		}
		root := parent.ref()
		if parent.Record.Reply != nil && parent.Record.Reply.Root.URI != "" {
			root = parent.Record.Reply.Root
		}
		record.Reply = &replyRef{Root: root, Parent: parent.ref()}
	}

	var images []imageEmbed
	for _, img := range body.Images {
		blob, err := c.uploadBlob(ctx, img.Path)
		if err != nil {
			return gateway.Receipt{}, err
		}
		images = append(images, imageEmbed{Image: blob, Alt: img.Alt})
	}

	var quoted *strongRef
	if body.QuoteOf != "" {
		post, err := c.resolvePost(ctx, body.QuoteOf)
		if err != nil {
			return gateway.Receipt{}, err
		}
		ref := post.ref()
		quoted = &ref
	}

	switch {
	case quoted != nil && len(images) > 0:
		record.Embed = map[string]any{
			"$type":  embedRecordWith,
			"record": map[string]any{"$type": embedRecord, "record": quoted},
			"media":  map[string]any{"$type": embedImages, "images": images},
		}
	case quoted != nil:
		record.Embed = map[string]any{"$type": embedRecord, "record": quoted}
	case len(images) > 0:
		record.Embed = map[string]any{"$type": embedImages, "images": images}
	}

	return c.createRecord(ctx, collectionPost, record)
}

type postView struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Record struct {
		Reply *replyRef `json:"reply"`
	} `json:"record"`
}

func (p postView) ref() strongRef {
	return strongRef{URI: p.URI, CID: p.CID}
}

func (c *Client) resolvePost(ctx context.Context, uri string) (*postView, error) {
	var out struct {
		Posts []postView `json:"posts"`
	}
	if err := c.call(ctx, http.MethodGet, nsidGetPosts, url.Values{"uris": {uri}}, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Posts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeRemoteRejected, "post not found: "+uri)
	}
	return &out.Posts[0], nil
}

func (c *Client) uploadBlob(ctx context.Context, path string) (blobRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return blobRef{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read image "+path)
	}
	if len(data) > maxBlobBytes {
		return blobRef{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image %s exceeds %d bytes", path, maxBlobBytes))
	}
	mime := mimetype.Detect(data)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") && !mime.Is("image/webp") && !mime.Is("image/gif") {
		return blobRef{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image %s has unsupported type %s", path, mime.String()))
	}

	var out struct {
		Blob blobRef `json:"blob"`
	}
	err = c.callRaw(ctx, request{
		method:      http.MethodPost,
		nsid:        nsidUploadBlob,
		rawBody:     data,
		contentType: mime.String(),
	}, &out)
	if err != nil {
		return blobRef{}, err
	}
	return out.Blob, nil
}
