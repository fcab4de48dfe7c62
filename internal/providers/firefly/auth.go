package firefly

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials are the server-to-server credentials issued for the Firefly
// Services project.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// NewTokenSource returns a cached, self-refreshing token source backed by the
// IMS client-credentials grant. ctx must outlive the token source because it
// is reused for refreshes; httpClient may be nil.
func NewTokenSource(ctx context.Context, creds Credentials, httpClient *http.Client) (oauth2.TokenSource, error) {
	if strings.TrimSpace(creds.ClientID) == "" || strings.TrimSpace(creds.ClientSecret) == "" {
		return nil, errors.New("firefly: client id and secret are required")
	}
	if strings.TrimSpace(creds.TokenURL) == "" {
		return nil, errors.New("firefly: token url is required")
	}
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// IMS expects a comma separated scope list; the library would join with
	// spaces.
	if len(creds.Scopes) > 0 {
		cfg.EndpointParams = url.Values{"scope": {strings.Join(creds.Scopes, ",")}}
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	return cfg.TokenSource(ctx), nil
}
