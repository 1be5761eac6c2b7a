package models

import (
	"strings"
	"time"
)

// Role represents a user's permission level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ParseRole converts a string to Role. Unknown values map to RoleMember.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleMember
}

// Domain is the coarse category used to classify users and ideas.
type Domain string

const (
	DomainTech     Domain = "Tech"
	DomainDesign   Domain = "Design"
	DomainContent  Domain = "Content"
	DomainBusiness Domain = "Business"
)

// Domains lists every valid domain in display order.
var Domains = []Domain{DomainTech, DomainDesign, DomainContent, DomainBusiness}

// ParseDomain matches s case-insensitively against the known domains.
func ParseDomain(s string) (Domain, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Domains {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

// User is a registered CollabHub account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Domain       Domain    `json:"domain"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Derived from project membership and idea authorship; filled by the user repository.
	JoinedProjects  []string `json:"joined_projects"`
	CreatedProjects []string `json:"created_projects"`
}

// NewUser creates a member account with normalised email and initialised timestamps.
func NewUser(name, email string, domain Domain) *User {
	now := time.Now().UTC()
	return &User{
		Name:            strings.TrimSpace(name),
		Email:           NormalizeEmail(email),
		Domain:          domain,
		Role:            RoleMember,
		CreatedAt:       now,
		UpdatedAt:       now,
		JoinedProjects:  []string{},
		CreatedProjects: []string{},
	}
}

// IsAdmin returns true if user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Ref returns the populated form embedded in idea and project responses.
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Domain: u.Domain}
}

// UserRef is the subset of a user shown wherever another resource references it.
type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Domain Domain `json:"domain"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
