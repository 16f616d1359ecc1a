// Package store persists projects: the requirement text a user works on and
// the last diagram extracted from it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/c4designer/pkg/c4"
)

// Status is the extraction state of a project.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// ErrNotFound is returned when a project does not exist or belongs to
// another user.
var ErrNotFound = errors.New("project not found")

// Project is one stored requirements document and its diagram.
type Project struct {
	ID           int64         `json:"id"`
	UserID       string        `json:"user_id"`
	Name         string        `json:"name"`
	Requirements string        `json:"requirements"`
	Hierarchy    *c4.Hierarchy `json:"hierarchy,omitempty"`
	PlantUMLCode string        `json:"plantuml_code"`
	ArtifactKey  string        `json:"artifact_key,omitempty"`
	Status       Status        `json:"status"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// UpdateProjectParams holds the editable fields of a project. Nil fields
// keep their stored value.
type UpdateProjectParams struct {
	Name         *string
	Requirements *string
}

// ProjectStore defines the persistence operations of the API and the
// extraction worker.
type ProjectStore interface {
	CreateProject(ctx context.Context, userID, name, requirements string) (*Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context, userID string) ([]Project, error)
	UpdateProject(ctx context.Context, id int64, params UpdateProjectParams) (*Project, error)
	SaveDiagram(ctx context.Context, id int64, h *c4.Hierarchy, markup, artifactKey string) error
	SetStatus(ctx context.Context, id int64, status Status, errMsg string) error
	DeleteProject(ctx context.Context, id int64) error
}
