// Package users provides user profile and administration API endpoints.
package users

import (
	"strings"

	"github.com/collabhub/collabhub/internal/api/validate"
	"github.com/collabhub/collabhub/internal/models"
)

// ValidationError contains validation error details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// profilePatch is the validated form of UpdateRequest.
type profilePatch struct {
	Name   *string `json:"name" validate:"omitnil,notblank,max=100"`
	Domain *string `json:"domain" validate:"omitnil,domain"`
}

// ValidateUpdate checks a profile update and returns the parsed domain, if any.
func ValidateUpdate(req *UpdateRequest) (*models.Domain, error) {
	if req.Name == nil && req.Domain == nil {
		return nil, &ValidationError{Field: "name", Message: "name or domain is required"}
	}
	if err := validate.Struct(profilePatch{Name: req.Name, Domain: req.Domain}); err != nil {
		return nil, err
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if req.Domain == nil {
		return nil, nil
	}
	d, _ := models.ParseDomain(*req.Domain)
	return &d, nil
}
