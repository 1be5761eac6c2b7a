package projects

import (
	"github.com/collabhub/collabhub/internal/api/validate"
	"github.com/collabhub/collabhub/internal/models"
)

// StatusRequest is the request body for a status change.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Open 'In Progress' Completed"`
}

// Validate checks the request and returns the parsed status.
func (req *StatusRequest) Validate() (models.ProjectStatus, error) {
	if err := validate.Struct(req); err != nil {
		return "", err
	}
	status, _ := models.ParseProjectStatus(req.Status)
	return status, nil
}
