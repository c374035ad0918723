package xrpc

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
)

// Connector creates clients for new and stored sessions.
type Connector struct {
	opts options
}

func NewConnector(opts ...Option) *Connector {
	return &Connector{opts: buildOptions(opts)}
}

// Login exchanges an identifier and app password for a session.
func (c *Connector) Login(ctx context.Context, serviceURL, identifier, password string) (gateway.Gateway, gateway.Credentials, error) {
	client := newClient(gateway.Credentials{ServiceURL: serviceURL}, c.opts)

	var out sessionResponse
	err := client.do(ctx, request{
		method:      http.MethodPost,
		nsid:        nsidCreateSession,
		rawBody:     mustJSON(map[string]string{"identifier": strings.TrimSpace(identifier), "password": password}),
		contentType: contentTypeJSON,
	}, &out)
	if err != nil {
		if code := pkgerrors.CodeOf(err); code == pkgerrors.CodeRemoteRejected || code == pkgerrors.CodeNotAuthenticated {
			return nil, gateway.Credentials{}, pkgerrors.Wrap(pkgerrors.CodeCredential, err, "login rejected")
		}
		return nil, gateway.Credentials{}, err
	}
	if out.DID == "" || out.AccessJWT == "" {
		return nil, gateway.Credentials{}, pkgerrors.New(pkgerrors.CodeCredential, "login returned no session")
	}

	creds := gateway.Credentials{
		DID:        out.DID,
		Handle:     out.Handle,
		AccessJWT:  out.AccessJWT,
		RefreshJWT: out.RefreshJWT,
		ServiceURL: client.baseURL,
	}
	client.creds = creds
	return client, creds, nil
}

// Resume builds a client from stored tokens without a network round trip.
// An expired access token is refreshed on first use.
func (c *Connector) Resume(_ context.Context, creds gateway.Credentials) (gateway.Gateway, error) {
	if creds.DID == "" || (creds.AccessJWT == "" && creds.RefreshJWT == "") {
		return nil, pkgerrors.New(pkgerrors.CodeCredential, "stored session is incomplete")
	}
	return newClient(creds, c.opts), nil
}
