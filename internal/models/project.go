package models

import (
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusOpen       ProjectStatus = "Open"
	StatusInProgress ProjectStatus = "In Progress"
	StatusCompleted  ProjectStatus = "Completed"
)

// ParseProjectStatus validates a status string.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch ProjectStatus(s) {
	case StatusOpen, StatusInProgress, StatusCompleted:
		return ProjectStatus(s), true
	}
	return "", false
}

// allowed lists the legal next states for each status. Completed is terminal.
var allowed = map[ProjectStatus][]ProjectStatus{
	StatusOpen:       {StatusInProgress},
	StatusInProgress: {StatusOpen, StatusCompleted},
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to ProjectStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Project is the collaborative entity formed around an idea.
type Project struct {
	ID        string        `json:"id"`
	IdeaID    string        `json:"idea_id"`
	CreatorID string        `json:"creator_id"`
	Members   []string      `json:"members"`
	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewProject creates an open project for an idea with its first member.
func NewProject(ideaID, creatorID, firstMember string) *Project {
	now := time.Now().UTC()
	return &Project{
		IdeaID:    ideaID,
		CreatorID: creatorID,
		Members:   []string{firstMember},
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasMember reports whether userID already belongs to the project.
func (p *Project) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsClosed reports whether the project no longer accepts members.
func (p *Project) IsClosed() bool {
	return p.Status == StatusCompleted
}
