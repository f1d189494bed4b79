// Package gist publishes the catalog titles as a private GitHub gist, one gist per guild.
package gist

import (
	"context"
	"fmt"

	"github.com/google/go-github/v62/github"
	"github.com/latoulicious/kenny/pkg/music"
	"golang.org/x/sync/errgroup"
)

// API is the subset of the GitHub gists service the mirror uses
type API interface {
	List(ctx context.Context, user string, opts *github.GistListOptions) ([]*github.Gist, *github.Response, error)
	Create(ctx context.Context, gist *github.Gist) (*github.Gist, *github.Response, error)
	Edit(ctx context.Context, id string, gist *github.Gist) (*github.Gist, *github.Response, error)
	Delete(ctx context.Context, id string) (*github.Response, error)
}

// Mirror keeps one gist per scope in sync with the catalog
type Mirror struct {
	api  API
	user string
}

// New logs in with a personal access token. It returns music.ErrMirrorDisabled
// when either credential is missing.
func New(token, user string) (*Mirror, error) {
	if token == "" || user == "" {
		return nil, music.ErrMirrorDisabled
	}
	return NewWithAPI(github.NewClient(nil).WithAuthToken(token).Gists, user), nil
}

// NewWithAPI builds a mirror over an existing gists client
func NewWithAPI(api API, user string) *Mirror {
	return &Mirror{api: api, user: user}
}

// Sync edits the single gist owned by scope, or replaces any duplicates with a new one
func (m *Mirror) Sync(ctx context.Context, scope, content string) (string, error) {
	matches, err := m.find(ctx, scope)
	if err != nil {
		return "", err
	}

	if len(matches) == 1 {
		g, _, err := m.api.Edit(ctx, matches[0].GetID(), document(scope, content))
		if err != nil {
			return "", music.NewProviderError("gist", "edit", err)
		}
		return g.GetHTMLURL(), nil
	}
	return m.replace(ctx, matches, scope, content)
}

// URL returns the link to scope's gist. If there is not exactly one, the list is
// published from content first.
func (m *Mirror) URL(ctx context.Context, scope, content string) (string, error) {
	matches, err := m.find(ctx, scope)
	if err != nil {
		return "", err
	}
	if len(matches) == 1 {
		return matches[0].GetHTMLURL(), nil
	}
	return m.replace(ctx, matches, scope, content)
}

func (m *Mirror) replace(ctx context.Context, stale []*github.Gist, scope, content string) (string, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, gist := range stale {
		id := gist.GetID()
		g.Go(func() error {
			if _, err := m.api.Delete(gctx, id); err != nil {
				return fmt.Errorf("delete gist %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", music.NewProviderError("gist", "delete", err)
	}

	created, _, err := m.api.Create(ctx, document(scope, content))
	if err != nil {
		return "", music.NewProviderError("gist", "create", err)
	}
	return created.GetHTMLURL(), nil
}

// find lists every gist of the user whose only file is named after scope
func (m *Mirror) find(ctx context.Context, scope string) ([]*github.Gist, error) {
	opts := &github.GistListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var matches []*github.Gist
	for {
		gists, resp, err := m.api.List(ctx, m.user, opts)
		if err != nil {
			return nil, music.NewProviderError("gist", "list", err)
		}
		for _, g := range gists {
			if owns(g, scope) {
				matches = append(matches, g)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return matches, nil
		}
		opts.Page = resp.NextPage
	}
}

func owns(g *github.Gist, scope string) bool {
	if g == nil || len(g.Files) != 1 {
		return false
	}
	_, ok := g.Files[github.GistFilename(scope)]
	return ok
}

func document(scope, content string) *github.Gist {
	// gists reject empty files
	if content == "" {
		content = "(empty)"
	}
	return &github.Gist{
		Description: github.String(scope),
		Public:      github.Bool(false),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(scope): {Content: github.String(content)},
		},
	}
}
