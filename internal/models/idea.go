package models

import (
	"strings"
	"time"
)

// Idea is a proposed collaboration posted by a user.
type Idea struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Domains     []Domain  `json:"domains"`
	RolesNeeded []string  `json:"roles_needed"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	// Populated by the repository on reads.
	Creator *UserRef `json:"creator,omitempty"`
}

// NewIdea builds an idea with cleaned-up domains and roles.
func NewIdea(title, description string, domains []Domain, roles []string, createdBy string) *Idea {
	return &Idea{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Domains:     UniqueDomains(domains),
		RolesNeeded: CleanRoles(roles),
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
}

// HasDomain reports whether the idea is tagged with d.
func (i *Idea) HasDomain(d Domain) bool {
	for _, x := range i.Domains {
		if x == d {
			return true
		}
	}
	return false
}

// UniqueDomains drops repeated domains, keeping first-seen order.
func UniqueDomains(in []Domain) []Domain {
	out := make([]Domain, 0, len(in))
	seen := make(map[Domain]struct{}, len(in))
	for _, d := range in {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// CleanRoles trims roles and drops blank entries. Never returns nil.
func CleanRoles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
