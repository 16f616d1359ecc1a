package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRows struct {
	rows []fakeRow
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgxv5.Conn                            { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.rows[r.idx-1].Scan(dest...)
}

type fakeConn struct {
	row      fakeRow
	rows     []fakeRow
	affected int64
	err      error

	sql  string
	args []any
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.sql, c.args = sql, args
	if c.err != nil {
		return pgconn.CommandTag{}, c.err
	}
	return pgconn.NewCommandTag("UPDATE " + strconv.FormatInt(c.affected, 10)), nil
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgxv5.Rows, error) {
	c.sql, c.args = sql, args
	if c.err != nil {
		return nil, c.err
	}
	return &fakeRows{rows: c.rows}, nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgxv5.Row {
	c.sql, c.args = sql, args
	return c.row
}

func projectRow(id int64, hierarchy []byte, status string) fakeRow {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return fakeRow{values: []any{
		id, "user-1", "Shop", "The shop has a web app.", hierarchy,
		"@startuml\n@enduml", "projects/1/diagram-x.puml", status, "", ts, ts,
	}}
}

func TestGetProjectDecodesHierarchy(t *testing.T) {
	h := c4.Build([]c4.Entity{
		{ID: "ent-0", Text: "Shop", Type: c4.EntitySystem, Level: 1},
		{ID: "ent-1", Text: "Web", Type: c4.EntityContainer, Level: 2},
	}, []c4.Relation{{Source: "ent-0", Target: "ent-1", Type: c4.RelationContains, Level: 1}})
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	conn := &fakeConn{row: projectRow(1, data, "ready")}
	p, err := NewProjectDBStorageWithConnection(conn).GetProject(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Status != store.StatusReady || p.UserID != "user-1" {
		t.Errorf("project = %+v", p)
	}
	if p.Hierarchy == nil || len(p.Hierarchy.Systems) != 1 || len(p.Hierarchy.Systems[0].Containers) != 1 {
		t.Errorf("hierarchy = %+v", p.Hierarchy)
	}
	if conn.args[0] != int64(1) {
		t.Errorf("args = %v", conn.args)
	}
}

func TestGetProjectWithoutDiagram(t *testing.T) {
	conn := &fakeConn{row: projectRow(2, nil, "pending")}
	p, err := NewProjectDBStorageWithConnection(conn).GetProject(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Hierarchy != nil {
		t.Errorf("hierarchy = %+v, want nil", p.Hierarchy)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	conn := &fakeConn{row: fakeRow{err: pgxv5.ErrNoRows}}
	_, err := NewProjectDBStorageWithConnection(conn).GetProject(context.Background(), 9)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateProjectSanitizesText(t *testing.T) {
	conn := &fakeConn{row: projectRow(3, nil, "pending")}
	_, err := NewProjectDBStorageWithConnection(conn).CreateProject(context.Background(), "user-1", "Sh\x00op", "bad\xffutf8")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	want := []any{"user-1", "Shop", "badutf8", "pending"}
	if !reflect.DeepEqual(conn.args, want) {
		t.Errorf("args = %q, want %q", conn.args, want)
	}
}

func TestListProjects(t *testing.T) {
	conn := &fakeConn{rows: []fakeRow{projectRow(1, nil, "ready"), projectRow(2, nil, "failed")}}
	got, err := NewProjectDBStorageWithConnection(conn).ListProjects(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].Status != store.StatusFailed {
		t.Errorf("projects = %+v", got)
	}

	conn = &fakeConn{}
	got, err = NewProjectDBStorageWithConnection(conn).ListProjects(context.Background(), "nobody")
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("empty list = %v, %v", got, err)
	}
}

func TestUpdateProjectPassesNilForUnchangedFields(t *testing.T) {
	conn := &fakeConn{row: projectRow(1, nil, "pending")}
	name := "Renamed"
	_, err := NewProjectDBStorageWithConnection(conn).UpdateProject(context.Background(), 1, store.UpdateProjectParams{Name: &name})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got := conn.args[1].(*string); got == nil || *got != "Renamed" {
		t.Errorf("name arg = %v", conn.args[1])
	}
	if got := conn.args[2].(*string); got != nil {
		t.Errorf("requirements arg = %v, want nil", *got)
	}
}

func TestExecOperationsReportMissingProject(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *ProjectDBStorage) error
	}{
		{"save diagram", func(s *ProjectDBStorage) error {
			return s.SaveDiagram(context.Background(), 1, c4.NewHierarchy(), "@startuml\n@enduml", "")
		}},
		{"set status", func(s *ProjectDBStorage) error {
			return s.SetStatus(context.Background(), 1, store.StatusFailed, "boom")
		}},
		{"delete", func(s *ProjectDBStorage) error {
			return s.DeleteProject(context.Background(), 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(NewProjectDBStorageWithConnection(&fakeConn{affected: 1})); err != nil {
				t.Errorf("affected row: %v", err)
			}
			err := tt.run(NewProjectDBStorageWithConnection(&fakeConn{affected: 0}))
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
			dbErr := errors.New("connection reset")
			if err := tt.run(NewProjectDBStorageWithConnection(&fakeConn{err: dbErr})); !errors.Is(err, dbErr) {
				t.Errorf("err = %v, want wrapped db error", err)
			}
		})
	}
}

func TestSaveDiagramStoresJSON(t *testing.T) {
	conn := &fakeConn{affected: 1}
	h := c4.Build([]c4.Entity{{ID: "ent-0", Text: "Shop", Type: c4.EntitySystem, Level: 1}}, nil)
	if err := NewProjectDBStorageWithConnection(conn).SaveDiagram(context.Background(), 4, h, "code", "key"); err != nil {
		t.Fatalf("SaveDiagram: %v", err)
	}
	var decoded c4.Hierarchy
	if err := json.Unmarshal(conn.args[1].([]byte), &decoded); err != nil {
		t.Fatalf("stored hierarchy is not json: %v", err)
	}
	if len(decoded.Systems) != 1 || decoded.Systems[0].Name != "Shop" {
		t.Errorf("decoded = %+v", decoded)
	}
	if conn.args[2] != "code" || conn.args[3] != "key" {
		t.Errorf("args = %v", conn.args)
	}
}
