package apiclient

import "context"

// AuthClient sends requests with the current access token. A 401 triggers
// exactly one refresh and one retry; a second 401 is returned as AUTH_REQUIRED.
type AuthClient struct {
	client *Client
	tokens TokenSource
}

func NewAuthClient(client *Client, tokens TokenSource) *AuthClient {
	return &AuthClient{client: client, tokens: tokens}
}

func (a *AuthClient) Do(ctx context.Context, req Request) error {
	refreshed := false
	token, ok := a.tokens.AccessToken(ctx)
	if !ok {
		var err error
		if token, err = a.tokens.Refresh(ctx); err != nil {
			return err
		}
		refreshed = true
	}

	err := a.client.Do(ctx, token, req)
	if !isUnauthorized(err) {
		return err
	}
	if refreshed {
		return NewAuthRequiredError(req.Operation, "access token rejected after refresh", err)
	}

	token, err = a.tokens.Refresh(ctx)
	if err != nil {
		return err
	}
	err = a.client.Do(ctx, token, req)
	if isUnauthorized(err) {
		return NewAuthRequiredError(req.Operation, "access token rejected after refresh", err)
	}
	return err
}
