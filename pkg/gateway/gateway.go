// Package gateway defines the boundary to the remote social-network service
// and the single exclusive handle every caller goes through to reach it.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/bluehorizon/skydesk/pkg/enums"
)

// Mutation is a remote write. Body is the decoded, kind-specific payload.
type Mutation struct {
	Kind enums.MutationKind
	Body any
}

// Receipt identifies the record a mutation created. It is empty for writes
// that create no record.
type Receipt struct {
	URI string `json:"uri,omitempty"`
	CID string `json:"cid,omitempty"`
}

// Request describes a remote read.
type Request struct {
	Resource enums.ResourceType
	// Key is the actor, handle, at:// URI or search text for keyed resources.
	Key    string
	Cursor string
	Limit  int
	// Sort orders search_posts results: "latest" (default) or "top".
	Sort string
}

// Gateway performs remote calls. Implementations return errors classified
// with the pkg/errors codes: NOT_AUTHENTICATED, NETWORK_TRANSIENT,
// REMOTE_REJECTED or CREDENTIAL_FAILURE.
type Gateway interface {
	SendMutation(ctx context.Context, m Mutation) (Receipt, error)
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}

// Credentials are the tokens of an authenticated remote session.
type Credentials struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJWT  string `json:"accessJwt"`
	RefreshJWT string `json:"refreshJwt"`
	ServiceURL string `json:"serviceUrl"`
}
