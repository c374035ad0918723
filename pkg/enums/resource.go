package enums

import "fmt"

// ResourceType identifies a remote read resource.
type ResourceType string

const (
	ResourceTimeline      ResourceType = "timeline"
	ResourceNotifications ResourceType = "notifications"
	ResourceProfile       ResourceType = "profile"
	ResourceAuthorFeed    ResourceType = "author_feed"
	ResourceUnreadCount   ResourceType = "unread_count"
)

// Pass-through resources. Request.Key is the actor, at:// URI or query text.
const (
	ResourceThread       ResourceType = "thread"
	ResourceCustomFeed   ResourceType = "custom_feed"
	ResourceFollowers    ResourceType = "followers"
	ResourceFollows      ResourceType = "follows"
	ResourceActorLists   ResourceType = "actor_lists"
	ResourceList         ResourceType = "list"
	ResourceListFeed     ResourceType = "list_feed"
	ResourceSearchPosts  ResourceType = "search_posts"
	ResourceSearchActors ResourceType = "search_actors"
)

var validResourceTypes = []ResourceType{
	ResourceTimeline,
	ResourceNotifications,
	ResourceProfile,
	ResourceAuthorFeed,
	ResourceUnreadCount,
	ResourceThread,
	ResourceCustomFeed,
	ResourceFollowers,
	ResourceFollows,
	ResourceActorLists,
	ResourceList,
	ResourceListFeed,
	ResourceSearchPosts,
	ResourceSearchActors,
}

var cacheTables = map[ResourceType]string{
	ResourceTimeline:      "cache_timeline",
	ResourceNotifications: "cache_notifications",
	ResourceProfile:       "cache_profile",
}

func (r ResourceType) IsValid() bool {
	for _, candidate := range validResourceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// CacheTable returns the snapshot table for cacheable resources.
func (r ResourceType) CacheTable() (string, bool) {
	table, ok := cacheTables[r]
	return table, ok
}

func ParseResourceType(value string) (ResourceType, error) {
	for _, candidate := range validResourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resource type %q", value)
}
