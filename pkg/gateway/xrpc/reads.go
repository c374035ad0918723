package xrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
)

// Fetch performs one remote read and returns the normalized snapshot.
func (c *Client) Fetch(ctx context.Context, req gateway.Request) (json.RawMessage, error) {
	switch req.Resource {
	case enums.ResourceTimeline:
		return c.feed(ctx, nsidGetTimeline, pageQuery(req))
	case enums.ResourceAuthorFeed:
		query := pageQuery(req)
		query.Set("actor", req.Key)
		return c.feed(ctx, nsidGetAuthorFeed, query)
	case enums.ResourceNotifications:
		return c.notifications(ctx, pageQuery(req))
	case enums.ResourceUnreadCount:
		var out struct {
			Count int `json:"count"`
		}
		if err := c.call(ctx, http.MethodGet, nsidGetUnreadCount, nil, nil, &out); err != nil {
			return nil, err
		}
		return marshal(out)
	case enums.ResourceProfile:
		return c.profile(ctx, req.Key)
	case enums.ResourceThread:
		return c.thread(ctx, req.Key)
	case enums.ResourceCustomFeed:
		return c.keyedFeed(ctx, nsidGetFeed, "feed", req)
	case enums.ResourceListFeed:
		return c.keyedFeed(ctx, nsidGetListFeed, "list", req)
	case enums.ResourceFollowers:
		return c.actors(ctx, nsidGetFollowers, "actor", req)
	case enums.ResourceFollows:
		return c.actors(ctx, nsidGetFollows, "actor", req)
	case enums.ResourceSearchActors:
		return c.actors(ctx, nsidSearchActors, "q", req)
	case enums.ResourceSearchPosts:
		return c.searchPosts(ctx, req)
	case enums.ResourceList:
		return c.list(ctx, req)
	case enums.ResourceActorLists:
		return c.actorLists(ctx, req)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unsupported resource "+string(req.Resource))
	}
}

func pageQuery(req gateway.Request) url.Values {
	query := url.Values{}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}
	return query
}

func (c *Client) feed(ctx context.Context, nsid string, query url.Values) (json.RawMessage, error) {
	var out feedResponse
	if err := c.call(ctx, http.MethodGet, nsid, query, nil, &out); err != nil {
		return nil, err
	}
	page := FeedPage{Posts: make([]FeedPost, 0, len(out.Feed)), Cursor: out.Cursor}
	for _, item := range out.Feed {
		page.Posts = append(page.Posts, item.normalize())
	}
	return marshal(page)
}

func (c *Client) notifications(ctx context.Context, query url.Values) (json.RawMessage, error) {
	var out notificationsResponse
	if err := c.call(ctx, http.MethodGet, nsidListNotifications, query, nil, &out); err != nil {
		return nil, err
	}
	page := NotificationPage{
		Notifications: make([]Notification, 0, len(out.Notifications)),
		Cursor:        out.Cursor,
		SeenAt:        out.SeenAt,
	}
	for _, n := range out.Notifications {
		page.Notifications = append(page.Notifications, n.normalize())
	}
	return marshal(page)
}

func (c *Client) profile(ctx context.Context, actor string) (json.RawMessage, error) {
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	var out profileView
	if err := c.call(ctx, http.MethodGet, nsidGetProfile, url.Values{"actor": {actor}}, nil, &out); err != nil {
		return nil, err
	}
	return marshal(out.normalize())
}

func keyed(req gateway.Request, param string) (url.Values, error) {
	if req.Key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	query := pageQuery(req)
	query.Set(param, req.Key)
	return query, nil
}

func (c *Client) keyedFeed(ctx context.Context, nsid, param string, req gateway.Request) (json.RawMessage, error) {
	query, err := keyed(req, param)
	if err != nil {
		return nil, err
	}
	return c.feed(ctx, nsid, query)
}

func (c *Client) thread(ctx context.Context, uri string) (json.RawMessage, error) {
	if uri == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "uri is required")
	}
	var out struct {
		Thread threadView `json:"thread"`
	}
	if err := c.call(ctx, http.MethodGet, nsidGetPostThread, url.Values{"uri": {uri}}, nil, &out); err != nil {
		return nil, err
	}
	return marshal(out.Thread.normalize())
}

func (c *Client) actors(ctx context.Context, nsid, param string, req gateway.Request) (json.RawMessage, error) {
	query, err := keyed(req, param)
	if err != nil {
		return nil, err
	}
	var out actorsResponse
	if err := c.call(ctx, http.MethodGet, nsid, query, nil, &out); err != nil {
		return nil, err
	}
	return marshal(out.normalize())
}

func (c *Client) searchPosts(ctx context.Context, req gateway.Request) (json.RawMessage, error) {
	query, err := keyed(req, "q")
	if err != nil {
		return nil, err
	}
	sort := req.Sort
	if sort == "" {
		sort = "latest"
	}
	query.Set("sort", sort)
	var out searchPostsResponse
	if err := c.call(ctx, http.MethodGet, nsidSearchPosts, query, nil, &out); err != nil {
		return nil, err
	}
	return marshal(out.normalize())
}

func (c *Client) list(ctx context.Context, req gateway.Request) (json.RawMessage, error) {
	query, err := keyed(req, "list")
	if err != nil {
		return nil, err
	}
	var out listResponse
	if err := c.call(ctx, http.MethodGet, nsidGetList, query, nil, &out); err != nil {
		return nil, err
	}
	page := ListPage{List: out.List.normalize(), Members: make([]ListMember, 0, len(out.Items)), Cursor: out.Cursor}
	for _, item := range out.Items {
		page.Members = append(page.Members, ListMember{URI: item.URI, Subject: item.Subject.normalize()})
	}
	return marshal(page)
}

func (c *Client) actorLists(ctx context.Context, req gateway.Request) (json.RawMessage, error) {
	query, err := keyed(req, "actor")
	if err != nil {
		return nil, err
	}
	var out listsResponse
	if err := c.call(ctx, http.MethodGet, nsidGetLists, query, nil, &out); err != nil {
		return nil, err
	}
	page := ListsPage{Lists: make([]ListInfo, 0, len(out.Lists)), Cursor: out.Cursor}
	for _, l := range out.Lists {
		page.Lists = append(page.Lists, l.normalize())
	}
	return marshal(page)
}

func marshal(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode snapshot")
	}
	return data, nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
