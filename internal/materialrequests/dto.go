package materialrequests

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
)

// Actor is the authenticated caller of a request operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

type CreateInput struct {
	ProjectID   uuid.UUID
	RequestedBy uuid.UUID
	Items       []LineItem
	Notes       string
}

// UpdateInput replaces the lines and/or notes of a pending request. Nil
// fields are left unchanged.
type UpdateInput struct {
	Items []LineItem
	Notes *string
}

type ListParams struct {
	Status      *enums.MaterialRequestStatus
	ProjectID   *uuid.UUID
	RequestedBy *uuid.UUID
	Limit       int
	Cursor      string
}

type RequestList struct {
	Items  []models.MaterialRequest `json:"items"`
	Cursor string                   `json:"cursor"`
}
