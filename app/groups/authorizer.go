package groups

import (
	"context"
	"fmt"
	"log/slog"
)

// Decision is the outcome of authorizing a ping request. The zero value is
// Unauthorized, so an accidentally unset decision can never grant a ping.
type Decision int

const (
	// Unauthorized means the group exists but the author is neither a
	// member nor a moderator and the group is not public.
	Unauthorized Decision = iota
	// UnknownGroup means the named group is not in the roster.
	UnknownGroup
	// Authorized means the author may ping the group.
	Authorized
)

// WikiClient supplies the configuration documents and the live moderator
// list. Satisfied by *reddit.Client.
type WikiClient interface {
	WikiPage(ctx context.Context, page string) (string, error)
	Moderators(ctx context.Context) ([]string, error)
}

// Authorizer decides whether an author may ping a group. Both documents are
// re-fetched on every call so moderator edits to the roster take effect on
// the very next ping.
type Authorizer struct {
	client WikiClient
}

func NewAuthorizer(client WikiClient) *Authorizer {
	return &Authorizer{client: client}
}

// Authorize resolves the candidate group against a fresh roster and returns
// the ordered member list when the author is allowed to ping it.
func (a *Authorizer) Authorize(ctx context.Context, group, author string) ([]string, Decision, error) {
	publicGroups, err := a.FetchPublicGroups(ctx)
	if err != nil {
		return nil, Unauthorized, err
	}

	roster, err := a.FetchRoster(ctx)
	if err != nil {
		return nil, Unauthorized, err
	}

	members, ok := roster.MembersOf(group)
	if !ok {
		slog.Warn("Pinged group does not exist", "group", group, "author", author)
		return nil, UnknownGroup, nil
	}

	if HasMember(members, author) || publicGroups.IsPublic(group) {
		return members, Authorized, nil
	}

	moderators, err := a.client.Moderators(ctx)
	if err != nil {
		return nil, Unauthorized, fmt.Errorf("failed to check moderator status: %w", err)
	}
	if HasMember(moderators, author) {
		return members, Authorized, nil
	}

	slog.Warn("Non-member tried to ping group", "group", group, "author", author)

	return nil, Unauthorized, nil
}

// FetchPublicGroups fetches and parses the config document.
func (a *Authorizer) FetchPublicGroups(ctx context.Context) (*PublicGroups, error) {
	content, err := a.client.WikiPage(ctx, ConfigPage)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config document: %w", err)
	}

	return ParsePublicGroups(content)
}

// FetchRoster fetches and parses the groups document.
func (a *Authorizer) FetchRoster(ctx context.Context) (*Roster, error) {
	content, err := a.client.WikiPage(ctx, GroupsPage)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups document: %w", err)
	}

	return ParseRoster(content)
}
