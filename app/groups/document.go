package groups

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Wiki pages holding the two configuration documents.
const (
	ConfigPage = "userpinger/config"
	GroupsPage = "userpinger/groups"
)

// ErrMalformedDocument indicates a wiki document that could not be parsed.
// Fatal at startup; during operation the comment is skipped.
var ErrMalformedDocument = errors.New("malformed document")

// A cases.Caser is stateful, so a fresh one is used per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// PublicGroups is the set of group names anyone may ping without membership.
// Comparisons are case-insensitive.
type PublicGroups struct {
	names map[string]struct{}
}

// ParsePublicGroups parses the config document. The document's "public" list
// defines the public group names.
func ParsePublicGroups(content string) (*PublicGroups, error) {
	var doc struct {
		Public []string `yaml:"public"`
	}

	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, ConfigPage, err)
	}

	names := make(map[string]struct{}, len(doc.Public))
	for _, name := range doc.Public {
		names[fold(name)] = struct{}{}
	}

	return &PublicGroups{names: names}, nil
}

func (p *PublicGroups) IsPublic(group string) bool {
	_, ok := p.names[fold(group)]
	return ok
}

// Roster maps each group name to its ordered member list. Group name lookup
// is case-sensitive on the stored key; member identity is case-insensitive.
type Roster struct {
	groups map[string][]string
}

// ParseRoster parses the groups document: a mapping from group name to an
// ordered list of member usernames.
func ParseRoster(content string) (*Roster, error) {
	var doc map[string][]string

	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, GroupsPage, err)
	}

	if doc == nil {
		doc = make(map[string][]string)
	}

	return &Roster{groups: doc}, nil
}

// MembersOf returns the ordered member list of a group, or false if the
// group is not defined.
func (r *Roster) MembersOf(group string) ([]string, bool) {
	members, ok := r.groups[group]
	return members, ok
}

// HasMember reports whether name case-insensitively matches an entry in the
// member list.
func HasMember(members []string, name string) bool {
	folded := fold(name)
	for _, member := range members {
		if fold(member) == folded {
			return true
		}
	}
	return false
}
