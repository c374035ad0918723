package xrpc

import "encoding/json"

// FeedPage is the snapshot stored for timeline and author feed reads.
type FeedPage struct {
	Posts  []FeedPost `json:"posts"`
	Cursor string     `json:"cursor,omitempty"`
}

type FeedPost struct {
	URI                   string          `json:"uri"`
	CID                   string          `json:"cid"`
	AuthorDID             string          `json:"author_did"`
	AuthorHandle          string          `json:"author_handle"`
	AuthorDisplayName     string          `json:"author_display_name,omitempty"`
	AuthorAvatar          string          `json:"author_avatar,omitempty"`
	IsRepost              bool            `json:"is_repost"`
	RepostedByHandle      string          `json:"reposted_by_handle,omitempty"`
	RepostedByDisplayName string          `json:"reposted_by_display_name,omitempty"`
	Text                  string          `json:"text"`
	CreatedAt             string          `json:"created_at"`
	ReplyCount            int             `json:"reply_count"`
	RepostCount           int             `json:"repost_count"`
	LikeCount             int             `json:"like_count"`
	ViewerLike            string          `json:"viewer_like,omitempty"`
	ViewerRepost          string          `json:"viewer_repost,omitempty"`
	Embed                 json.RawMessage `json:"embed,omitempty"`
}

// NotificationPage is the snapshot stored for notification reads.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Cursor        string         `json:"cursor,omitempty"`
	SeenAt        string         `json:"seen_at,omitempty"`
}

type Notification struct {
	URI               string `json:"uri"`
	CID               string `json:"cid"`
	Reason            string `json:"reason"`
	ReasonSubject     string `json:"reason_subject,omitempty"`
	AuthorDID         string `json:"author_did"`
	AuthorHandle      string `json:"author_handle"`
	AuthorDisplayName string `json:"author_display_name,omitempty"`
	AuthorAvatar      string `json:"author_avatar,omitempty"`
	Text              string `json:"text,omitempty"`
	IsRead            bool   `json:"is_read"`
	IndexedAt         string `json:"indexed_at"`
}

// Profile is the snapshot stored per handle.
type Profile struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"display_name,omitempty"`
	Description    string `json:"description,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	Banner         string `json:"banner,omitempty"`
	FollowersCount int    `json:"followers_count"`
	FollowsCount   int    `json:"follows_count"`
	PostsCount     int    `json:"posts_count"`
	Following      string `json:"following,omitempty"`
	FollowedBy     string `json:"followed_by,omitempty"`
}

type actorView struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type recordText struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type feedPostView struct {
	URI         string          `json:"uri"`
	CID         string          `json:"cid"`
	Author      actorView       `json:"author"`
	Record      recordText      `json:"record"`
	Embed       json.RawMessage `json:"embed"`
	ReplyCount  int             `json:"replyCount"`
	RepostCount int             `json:"repostCount"`
	LikeCount   int             `json:"likeCount"`
	Viewer      struct {
		Like   string `json:"like"`
		Repost string `json:"repost"`
	} `json:"viewer"`
}

type feedReason struct {
	Type string    `json:"$type"`
	By   actorView `json:"by"`
}

type feedViewPost struct {
	Post   feedPostView `json:"post"`
	Reason *feedReason  `json:"reason"`
}

type feedResponse struct {
	Feed   []feedViewPost `json:"feed"`
	Cursor string         `json:"cursor"`
}

const reasonRepost = "app.bsky.feed.defs#reasonRepost"

func (f feedViewPost) normalize() FeedPost {
	p := f.Post
	out := FeedPost{
		URI:               p.URI,
		CID:               p.CID,
		AuthorDID:         p.Author.DID,
		AuthorHandle:      p.Author.Handle,
		AuthorDisplayName: p.Author.DisplayName,
		AuthorAvatar:      p.Author.Avatar,
		Text:              p.Record.Text,
		CreatedAt:         p.Record.CreatedAt,
		ReplyCount:        p.ReplyCount,
		RepostCount:       p.RepostCount,
		LikeCount:         p.LikeCount,
		ViewerLike:        p.Viewer.Like,
		ViewerRepost:      p.Viewer.Repost,
		Embed:             p.Embed,
	}
	if f.Reason != nil && f.Reason.Type == reasonRepost {
		out.IsRepost = true
		out.RepostedByHandle = f.Reason.By.Handle
		out.RepostedByDisplayName = f.Reason.By.DisplayName
	}
	return out
}

type notificationView struct {
	URI           string     `json:"uri"`
	CID           string     `json:"cid"`
	Author        actorView  `json:"author"`
	Reason        string     `json:"reason"`
	ReasonSubject string     `json:"reasonSubject"`
	Record        recordText `json:"record"`
	IsRead        bool       `json:"isRead"`
	IndexedAt     string     `json:"indexedAt"`
}

type notificationsResponse struct {
	Notifications []notificationView `json:"notifications"`
	Cursor        string             `json:"cursor"`
	SeenAt        string             `json:"seenAt"`
}

func (n notificationView) normalize() Notification {
	return Notification{
		URI:               n.URI,
		CID:               n.CID,
		Reason:            n.Reason,
		ReasonSubject:     n.ReasonSubject,
		AuthorDID:         n.Author.DID,
		AuthorHandle:      n.Author.Handle,
		AuthorDisplayName: n.Author.DisplayName,
		AuthorAvatar:      n.Author.Avatar,
		Text:              n.Record.Text,
		IsRead:            n.IsRead,
		IndexedAt:         n.IndexedAt,
	}
}

type profileView struct {
	actorView
	Description    string `json:"description"`
	Banner         string `json:"banner"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	PostsCount     int    `json:"postsCount"`
	Viewer         struct {
		Following  string `json:"following"`
		FollowedBy string `json:"followedBy"`
	} `json:"viewer"`
}

func (p profileView) normalize() Profile {
	return Profile{
		DID:            p.DID,
		Handle:         p.Handle,
		DisplayName:    p.DisplayName,
		Description:    p.Description,
		Avatar:         p.Avatar,
		Banner:         p.Banner,
		FollowersCount: p.FollowersCount,
		FollowsCount:   p.FollowsCount,
		PostsCount:     p.PostsCount,
		Following:      p.Viewer.Following,
		FollowedBy:     p.Viewer.FollowedBy,
	}
}

// ActorPage is the snapshot for followers, follows and actor search.
type ActorPage struct {
	Actors []Profile `json:"actors"`
	Cursor string    `json:"cursor,omitempty"`
}

type actorsResponse struct {
	Followers []profileView `json:"followers"`
	Follows   []profileView `json:"follows"`
	Actors    []profileView `json:"actors"`
	Cursor    string        `json:"cursor"`
}

func (r actorsResponse) normalize() ActorPage {
	views := r.Actors
	switch {
	case r.Followers != nil:
		views = r.Followers
	case r.Follows != nil:
		views = r.Follows
	}
	page := ActorPage{Actors: make([]Profile, 0, len(views)), Cursor: r.Cursor}
	for _, v := range views {
		page.Actors = append(page.Actors, v.normalize())
	}
	return page
}

type searchPostsResponse struct {
	Posts  []feedPostView `json:"posts"`
	Cursor string         `json:"cursor"`
}

func (r searchPostsResponse) normalize() FeedPage {
	page := FeedPage{Posts: make([]FeedPost, 0, len(r.Posts)), Cursor: r.Cursor}
	for _, p := range r.Posts {
		page.Posts = append(page.Posts, feedViewPost{Post: p}.normalize())
	}
	return page
}

// ThreadPost is one node of a post thread. Unavailable nodes carry only
// their URI and the reason.
type ThreadPost struct {
	URI      string       `json:"uri"`
	Post     *FeedPost    `json:"post,omitempty"`
	NotFound bool         `json:"not_found,omitempty"`
	Blocked  bool         `json:"blocked,omitempty"`
	Parent   *ThreadPost  `json:"parent,omitempty"`
	Replies  []ThreadPost `json:"replies,omitempty"`
}

const (
	threadNotFound = "app.bsky.feed.defs#notFoundPost"
	threadBlocked  = "app.bsky.feed.defs#blockedPost"
)

type threadView struct {
	Type    string        `json:"$type"`
	URI     string        `json:"uri"`
	Post    *feedPostView `json:"post"`
	Parent  *threadView   `json:"parent"`
	Replies []threadView  `json:"replies"`
}

func (t threadView) normalize() ThreadPost {
	out := ThreadPost{
		URI:      t.URI,
		NotFound: t.Type == threadNotFound,
		Blocked:  t.Type == threadBlocked,
	}
	if t.Post != nil {
		post := feedViewPost{Post: *t.Post}.normalize()
		out.Post = &post
		out.URI = post.URI
	}
	if t.Parent != nil {
		parent := t.Parent.normalize()
		out.Parent = &parent
	}
	for _, reply := range t.Replies {
		out.Replies = append(out.Replies, reply.normalize())
	}
	return out
}

// ListInfo describes a curation or moderation list.
type ListInfo struct {
	URI           string `json:"uri"`
	CID           string `json:"cid"`
	Name          string `json:"name"`
	Purpose       string `json:"purpose"`
	Description   string `json:"description,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	ItemCount     int    `json:"item_count"`
	CreatorDID    string `json:"creator_did"`
	CreatorHandle string `json:"creator_handle"`
	IndexedAt     string `json:"indexed_at,omitempty"`
}

// ListPage is the snapshot for one list and a page of its members.
type ListPage struct {
	List    ListInfo     `json:"list"`
	Members []ListMember `json:"members"`
	Cursor  string       `json:"cursor,omitempty"`
}

type ListMember struct {
	// URI is the listitem record, needed to remove the member.
	URI     string  `json:"uri"`
	Subject Profile `json:"subject"`
}

// ListsPage is the snapshot for the lists an actor created.
type ListsPage struct {
	Lists  []ListInfo `json:"lists"`
	Cursor string     `json:"cursor,omitempty"`
}

type listView struct {
	URI           string    `json:"uri"`
	CID           string    `json:"cid"`
	Name          string    `json:"name"`
	Purpose       string    `json:"purpose"`
	Description   string    `json:"description"`
	Avatar        string    `json:"avatar"`
	ListItemCount int       `json:"listItemCount"`
	Creator       actorView `json:"creator"`
	IndexedAt     string    `json:"indexedAt"`
}

func (l listView) normalize() ListInfo {
	return ListInfo{
		URI:           l.URI,
		CID:           l.CID,
		Name:          l.Name,
		Purpose:       l.Purpose,
		Description:   l.Description,
		Avatar:        l.Avatar,
		ItemCount:     l.ListItemCount,
		CreatorDID:    l.Creator.DID,
		CreatorHandle: l.Creator.Handle,
		IndexedAt:     l.IndexedAt,
	}
}

type listResponse struct {
	List  listView `json:"list"`
	Items []struct {
		URI     string      `json:"uri"`
		Subject profileView `json:"subject"`
	} `json:"items"`
	Cursor string `json:"cursor"`
}

type listsResponse struct {
	Lists  []listView `json:"lists"`
	Cursor string     `json:"cursor"`
}
