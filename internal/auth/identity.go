package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

type identity struct {
	email string
	name  string
}

// resolveIdentity finds the user's verified email, trying in order:
// the id_token returned by the token endpoint, the tokeninfo endpoint, and userinfo.
func (m *Manager) resolveIdentity(ctx context.Context, t *oauth2.Token) identity {
	if id := fromIDToken(t); id.email != "" {
		return id
	}

	if id, err := m.fromTokenInfo(ctx, t); err != nil {
		m.logger.Debug("tokeninfo lookup failed", "error", err)
	} else if id.email != "" {
		return id
	}

	id, err := m.fromUserInfo(ctx, t)
	if err != nil {
		m.logger.Debug("userinfo lookup failed", "error", err)
	}
	return id
}

// fromIDToken reads the claims of the id_token from the token endpoint response.
// The signature is not checked.
func fromIDToken(t *oauth2.Token) identity {
	raw, ok := t.Extra("id_token").(string)
	if !ok || raw == "" {
		return identity{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return identity{}
	}

	email, _ := claims["email"].(string)
	if email == "" || !verified(claims["email_verified"]) {
		return identity{}
	}
	name, _ := claims["name"].(string)
	return identity{email: email, name: name}
}

func verified(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func (m *Manager) fromTokenInfo(ctx context.Context, t *oauth2.Token) (identity, error) {
	svc, err := oauth2api.NewService(ctx, m.apiOptions(m.httpClient)...)
	if err != nil {
		return identity{}, err
	}

	info, err := svc.Tokeninfo().AccessToken(t.AccessToken).Context(ctx).Do()
	if err != nil {
		return identity{}, err
	}
	if !info.VerifiedEmail {
		return identity{}, nil
	}
	return identity{email: info.Email}, nil
}

func (m *Manager) fromUserInfo(ctx context.Context, t *oauth2.Token) (identity, error) {
	client := oauth2.NewClient(m.context(ctx), oauth2.StaticTokenSource(t))
	svc, err := oauth2api.NewService(ctx, m.apiOptions(client)...)
	if err != nil {
		return identity{}, err
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return identity{}, err
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return identity{}, nil
	}
	return identity{email: info.Email, name: info.Name}, nil
}

func (m *Manager) apiOptions(client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if m.endpoints.APIBase != "" {
		opts = append(opts, option.WithEndpoint(m.endpoints.APIBase))
	}
	return opts
}
