// Package ideas provides the idea board API endpoints.
package ideas

import (
	"strings"

	"github.com/collabhub/collabhub/internal/api/validate"
	"github.com/collabhub/collabhub/internal/models"
)

// CreateRequest is the request body for posting an idea.
type CreateRequest struct {
	Title       string   `json:"title" validate:"notblank,max=200"`
	Description string   `json:"description" validate:"notblank,max=5000"`
	Domains     []string `json:"domains" validate:"min=1,max=4,dive,domain"`
	RolesNeeded []string `json:"roles_needed" validate:"max=20,dive,max=100"`
}

// Validate checks the request and returns its canonical domains and roles.
func (req *CreateRequest) Validate() ([]models.Domain, []string, error) {
	if err := validate.Struct(req); err != nil {
		return nil, nil, err
	}

	domains := make([]models.Domain, 0, len(req.Domains))
	for _, s := range req.Domains {
		d, _ := models.ParseDomain(s)
		domains = append(domains, d)
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	return models.UniqueDomains(domains), models.CleanRoles(req.RolesNeeded), nil
}
