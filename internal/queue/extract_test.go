package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/c4designer/internal/storage"
	"github.com/OFFIS-RIT/c4designer/pkg/c4"
	"github.com/OFFIS-RIT/c4designer/pkg/extract"
	"github.com/OFFIS-RIT/c4designer/pkg/leaselock"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type memStore struct {
	mu       sync.Mutex
	projects map[int64]*store.Project
	statuses []store.Status
}

func newMemStore(projects ...store.Project) *memStore {
	m := &memStore{projects: map[int64]*store.Project{}}
	for i := range projects {
		m.projects[projects[i].ID] = &projects[i]
	}
	return m
}

func (m *memStore) CreateProject(context.Context, string, string, string) (*store.Project, error) {
	return nil, errors.New("not used")
}

func (m *memStore) GetProject(_ context.Context, id int64) (*store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProjects(context.Context, string) ([]store.Project, error) {
	return nil, errors.New("not used")
}

func (m *memStore) UpdateProject(context.Context, int64, store.UpdateProjectParams) (*store.Project, error) {
	return nil, errors.New("not used")
}

func (m *memStore) SaveDiagram(_ context.Context, id int64, h *c4.Hierarchy, markup, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	p.Hierarchy, p.PlantUMLCode, p.ArtifactKey = h, markup, key
	return nil
}

func (m *memStore) SetStatus(_ context.Context, id int64, status store.Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	p.Status, p.Error = status, errMsg
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) DeleteProject(context.Context, int64) error {
	return errors.New("not used")
}

type fakeProcessor struct {
	texts []string
	err   error
}

func (f *fakeProcessor) Process(_ context.Context, text string) (*extract.ProcessResult, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	h := c4.Build([]c4.Entity{{ID: "ent-0", Text: "Shop", Type: c4.EntitySystem, Level: 1}}, nil)
	return &extract.ProcessResult{
		Entities:     []c4.Entity{{ID: "ent-0", Text: "Shop", Type: c4.EntitySystem, Level: 1}},
		Hierarchy:    h,
		PlantUMLCode: c4.Render(h),
	}, nil
}

type fakeObjects struct {
	storage.ObjectAPI
	puts  int
	fails int
}

func (f *fakeObjects) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.puts <= f.fails {
		return nil, errors.New("slow down")
	}
	return &s3.PutObjectOutput{}, nil
}

type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func TestProcessExtractMessage(t *testing.T) {
	st := newMemStore(store.Project{ID: 3, Requirements: "The Shop is a system.", Status: store.StatusPending})
	proc := &fakeProcessor{}
	objects := &fakeObjects{fails: 1}
	locker := &recordingLocker{}
	w := &ExtractWorker{Store: st, Pipeline: proc, Objects: objects, Locker: locker, Uploads: 3}

	if err := w.ProcessExtractMessage(context.Background(), []byte(`{"project_id":3,"correlation_id":"c1"}`)); err != nil {
		t.Fatalf("ProcessExtractMessage: %v", err)
	}

	p := st.projects[3]
	if p.Status != store.StatusReady || p.Error != "" {
		t.Errorf("status = %s (%q)", p.Status, p.Error)
	}
	if p.Hierarchy == nil || len(p.Hierarchy.Systems) != 1 || p.PlantUMLCode == "" {
		t.Errorf("diagram not saved: %+v", p)
	}
	if p.ArtifactKey == "" || objects.puts != 2 {
		t.Errorf("artifact key %q after %d uploads", p.ArtifactKey, objects.puts)
	}
	if len(proc.texts) != 1 || proc.texts[0] != "The Shop is a system." {
		t.Errorf("processed %v", proc.texts)
	}
	if len(locker.keys) != 1 || locker.keys[0] != leaselock.ProjectKey(3) {
		t.Errorf("lock keys = %v", locker.keys)
	}
	want := []store.Status{store.StatusProcessing, store.StatusReady}
	if len(st.statuses) != 2 || st.statuses[0] != want[0] || st.statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", st.statuses, want)
	}
}

func TestProcessExtractMessageMarksFailure(t *testing.T) {
	st := newMemStore(store.Project{ID: 3, Requirements: "x"})
	boom := errors.New("inference server down")
	w := &ExtractWorker{Store: st, Pipeline: &fakeProcessor{err: boom}}

	err := w.ProcessExtractMessage(context.Background(), []byte(`{"project_id":3}`))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	p := st.projects[3]
	if p.Status != store.StatusFailed || p.Error == "" {
		t.Errorf("project = %s %q, want failed with message", p.Status, p.Error)
	}
	if p.Hierarchy != nil {
		t.Errorf("diagram saved after failure")
	}
}

func TestProcessExtractMessageUploadExhausted(t *testing.T) {
	st := newMemStore(store.Project{ID: 3, Requirements: "x"})
	w := &ExtractWorker{Store: st, Pipeline: &fakeProcessor{}, Objects: &fakeObjects{fails: 5}, Uploads: 2}

	if err := w.ProcessExtractMessage(context.Background(), []byte(`{"project_id":3}`)); err == nil {
		t.Fatalf("expected upload error")
	}
	if st.projects[3].Status != store.StatusFailed {
		t.Errorf("status = %s", st.projects[3].Status)
	}
}

func TestProcessExtractMessageDropsDeletedProject(t *testing.T) {
	proc := &fakeProcessor{}
	w := &ExtractWorker{Store: newMemStore(), Pipeline: proc}
	if err := w.ProcessExtractMessage(context.Background(), []byte(`{"project_id":9}`)); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if len(proc.texts) != 0 {
		t.Errorf("pipeline ran for a missing project")
	}
}

func TestProcessExtractMessageRejectsBadBody(t *testing.T) {
	w := &ExtractWorker{Store: newMemStore(), Pipeline: &fakeProcessor{}}
	for _, body := range []string{`not json`, `{}`, `{"project_id":-1}`} {
		if err := w.ProcessExtractMessage(context.Background(), []byte(body)); err == nil {
			t.Errorf("body %s accepted", body)
		}
	}
}
