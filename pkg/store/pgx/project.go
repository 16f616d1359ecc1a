package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/c4designer/internal/util"
	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const projectColumns = `id, user_id, name, requirements, hierarchy, plantuml_code, artifact_key, status, error, created_at, updated_at`

func scanProject(row pgxv5.Row) (*store.Project, error) {
	var (
		p         store.Project
		hierarchy []byte
		status    string
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Requirements,
		&hierarchy,
		&p.PlantUMLCode,
		&p.ArtifactKey,
		&status,
		&p.Error,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Status = store.Status(status)

	if len(hierarchy) > 0 && string(hierarchy) != "null" {
		p.Hierarchy = new(c4.Hierarchy)
		if err := json.Unmarshal(hierarchy, p.Hierarchy); err != nil {
			return nil, fmt.Errorf("decode hierarchy of project %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (s *ProjectDBStorage) CreateProject(ctx context.Context, userID, name, requirements string) (*store.Project, error) {
	row := s.conn.QueryRow(ctx, createProjectSQL,
		userID,
		util.SanitizePostgresText(name),
		util.SanitizePostgresText(requirements),
		string(store.StatusPending),
	)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	logger.Debug("[Store] Created project", "project_id", p.ID, "user_id", userID)
	return p, nil
}

func (s *ProjectDBStorage) GetProject(ctx context.Context, id int64) (*store.Project, error) {
	p, err := scanProject(s.conn.QueryRow(ctx, getProjectSQL, id))
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (s *ProjectDBStorage) ListProjects(ctx context.Context, userID string) ([]store.Project, error) {
	rows, err := s.conn.Query(ctx, listProjectsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]store.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// UpdateProject changes name and requirements. Changing the requirements
// resets the status to pending since the diagram no longer matches.
func (s *ProjectDBStorage) UpdateProject(ctx context.Context, id int64, params store.UpdateProjectParams) (*store.Project, error) {
	var name, requirements *string
	if params.Name != nil {
		v := util.SanitizePostgresText(*params.Name)
		name = &v
	}
	if params.Requirements != nil {
		v := util.SanitizePostgresText(*params.Requirements)
		requirements = &v
	}

	p, err := scanProject(s.conn.QueryRow(ctx, updateProjectSQL, id, name, requirements, string(store.StatusPending)))
	if err != nil {
		return nil, fmt.Errorf("update project %d: %w", id, err)
	}
	return p, nil
}

func (s *ProjectDBStorage) SaveDiagram(ctx context.Context, id int64, h *c4.Hierarchy, markup, artifactKey string) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode hierarchy of project %d: %w", id, err)
	}
	tag, err := s.conn.Exec(ctx, saveDiagramSQL, id, data, markup, artifactKey)
	if err != nil {
		return fmt.Errorf("save diagram of project %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save diagram of project %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *ProjectDBStorage) SetStatus(ctx context.Context, id int64, status store.Status, errMsg string) error {
	tag, err := s.conn.Exec(ctx, setStatusSQL, id, string(status), util.SanitizePostgresText(errMsg))
	if err != nil {
		return fmt.Errorf("set status of project %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set status of project %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *ProjectDBStorage) DeleteProject(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, deleteProjectSQL, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project %d: %w", id, store.ErrNotFound)
	}
	return nil
}

var _ store.ProjectStore = (*ProjectDBStorage)(nil)

const createProjectSQL = `
INSERT INTO projects (user_id, name, requirements, status)
VALUES ($1, $2, $3, $4)
RETURNING ` + projectColumns + `;
`

const getProjectSQL = `
SELECT ` + projectColumns + `
FROM projects
WHERE id = $1;
`

const listProjectsSQL = `
SELECT ` + projectColumns + `
FROM projects
WHERE user_id = $1
ORDER BY updated_at DESC, id DESC;
`

const updateProjectSQL = `
UPDATE projects
SET name         = COALESCE($2, name),
    requirements = COALESCE($3, requirements),
    status       = CASE WHEN $3::text IS NULL OR $3 = requirements THEN status ELSE $4 END,
    updated_at   = now()
WHERE id = $1
RETURNING ` + projectColumns + `;
`

const saveDiagramSQL = `
UPDATE projects
SET hierarchy     = $2::jsonb,
    plantuml_code = $3,
    artifact_key  = $4,
    updated_at    = now()
WHERE id = $1;
`

const setStatusSQL = `
UPDATE projects
SET status     = $2,
    error      = $3,
    updated_at = now()
WHERE id = $1;
`

const deleteProjectSQL = `
DELETE FROM projects
WHERE id = $1;
`
