package drafts

import "strings"

const defaultContextKey = "post:new"

// ContextKey derives the draft slot for a composition target: a reply wins
// over a quote, and neither means a fresh post.
func ContextKey(replyTo, quoteOf string) string {
	if uri := strings.TrimSpace(replyTo); uri != "" {
		return "reply:" + uri
	}
	if uri := strings.TrimSpace(quoteOf); uri != "" {
		return "quote:" + uri
	}
	return defaultContextKey
}
