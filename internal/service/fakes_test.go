package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/ragflow"
	"github.com/njprem/regdocs/internal/repository/ports"
)

type fakeRagBackend struct {
	mu       sync.Mutex
	datasets []ragflow.Dataset
	docs     map[string][]ragflow.Document
	nextID   int

	uploads []string
	blobs   map[string][]byte
	parsed  [][]string
	deleted []string
	updates map[string]map[string]any
	created []string

	uploadErr       error
	parseErr        error
	hideUploadedIDs bool
}

func newFakeRagBackend(datasets ...ragflow.Dataset) *fakeRagBackend {
	return &fakeRagBackend{
		datasets: datasets,
		docs:     map[string][]ragflow.Document{},
		blobs:    map[string][]byte{},
		updates:  map[string]map[string]any{},
	}
}

func (f *fakeRagBackend) addDoc(datasetID string, doc ragflow.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[datasetID] = append(f.docs[datasetID], doc)
}

func (f *fakeRagBackend) ListDatasets(ctx context.Context, q ragflow.DatasetQuery) ([]ragflow.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ragflow.Dataset{}
	for _, ds := range f.datasets {
		if q.ID != "" && ds.ID != q.ID {
			continue
		}
		if q.Name != "" && ds.Name != q.Name {
			continue
		}
		out = append(out, ds)
	}
	return out, nil
}

func (f *fakeRagBackend) CreateDataset(ctx context.Context, name, description, chunkMethod string) (*ragflow.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds := ragflow.Dataset{ID: "ds-" + name, Name: name, Description: description, ChunkMethod: chunkMethod}
	f.datasets = append(f.datasets, ds)
	f.created = append(f.created, name)
	return &ds, nil
}

func (f *fakeRagBackend) UpdateDataset(ctx context.Context, datasetID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[datasetID] = fields
	return nil
}

func (f *fakeRagBackend) UploadDocument(ctx context.Context, datasetID, name string, r io.Reader) ([]ragflow.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.nextID++
	doc := ragflow.Document{ID: fmt.Sprintf("doc-%d", f.nextID), Name: name, DatasetID: datasetID, Run: "UNSTART"}
	f.docs[datasetID] = append(f.docs[datasetID], doc)
	f.uploads = append(f.uploads, name)
	f.blobs[name] = data
	if f.hideUploadedIDs {
		return []ragflow.Document{}, nil
	}
	return []ragflow.Document{doc}, nil
}

func (f *fakeRagBackend) ListDocuments(ctx context.Context, datasetID string, q ragflow.DocumentQuery) (*ragflow.DocumentList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ragflow.Document{}
	for _, d := range f.docs[datasetID] {
		if q.Keywords != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(q.Keywords)) {
			continue
		}
		out = append(out, d)
	}
	return &ragflow.DocumentList{Docs: out, Total: len(out)}, nil
}

func (f *fakeRagBackend) UpdateDocument(ctx context.Context, datasetID, documentID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[documentID] = fields
	return nil
}

func (f *fakeRagBackend) ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parseErr != nil {
		return f.parseErr
	}
	f.parsed = append(f.parsed, documentIDs)
	return nil
}

func (f *fakeRagBackend) DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range documentIDs {
		drop[id] = true
	}
	kept := f.docs[datasetID][:0]
	for _, d := range f.docs[datasetID] {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	f.docs[datasetID] = kept
	f.deleted = append(f.deleted, documentIDs...)
	return nil
}

func (f *fakeRagBackend) Version(ctx context.Context) (string, error) {
	return "v0.20.0", nil
}

type memoryDocumentRepo struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]domain.Document
}

func newMemoryDocumentRepo() *memoryDocumentRepo {
	return &memoryDocumentRepo{docs: map[int64]domain.Document{}}
}

func (m *memoryDocumentRepo) Create(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	clone := *doc
	clone.ID = m.nextID
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	m.docs[clone.ID] = clone
	return &clone, nil
}

func (m *memoryDocumentRepo) FindByID(ctx context.Context, id int64) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *memoryDocumentRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []domain.Document{}
	for _, d := range m.docs {
		if filter.Department != "" && d.Department != filter.Department {
			continue
		}
		if filter.Query != "" && !strings.Contains(d.Title, filter.Query) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if filter.Offset > len(all) {
		return []domain.Document{}, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (m *memoryDocumentRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.docs, id)
	return nil
}

type memoryVersionRepo struct {
	mu       sync.Mutex
	nextID   int64
	versions map[int64]domain.DocumentVersion
}

func newMemoryVersionRepo() *memoryVersionRepo {
	return &memoryVersionRepo{versions: map[int64]domain.DocumentVersion{}}
}

func (m *memoryVersionRepo) Create(ctx context.Context, v *domain.DocumentVersion) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	clone := *v
	clone.ID = m.nextID
	m.versions[clone.ID] = clone
	return &clone, nil
}

func (m *memoryVersionRepo) FindByID(ctx context.Context, id int64) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (m *memoryVersionRepo) Latest(ctx context.Context, docID int64) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.DocumentVersion
	for _, v := range m.versions {
		if v.DocID != docID {
			continue
		}
		if latest == nil || v.ID > latest.ID {
			clone := v
			latest = &clone
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (m *memoryVersionRepo) LatestByDocs(ctx context.Context, docIDs []int64) (map[int64]*domain.DocumentVersion, error) {
	out := map[int64]*domain.DocumentVersion{}
	for _, id := range docIDs {
		if v, err := m.Latest(ctx, id); err == nil {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memoryVersionRepo) ListByDoc(ctx context.Context, docID int64) ([]domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.DocumentVersion{}
	for _, v := range m.versions {
		if v.DocID == docID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryVersionRepo) ToggleActive(ctx context.Context, id int64) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	v.IsActive = !v.IsActive
	m.versions[id] = v
	return &v, nil
}

func (m *memoryVersionRepo) SetRagDocID(ctx context.Context, id int64, ragDocID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.RagDocID = &ragDocID
	m.versions[id] = v
	return nil
}

// deleteByDoc mimics the ON DELETE CASCADE of the schema.
func (m *memoryVersionRepo) deleteByDoc(docID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.versions {
		if v.DocID == docID {
			delete(m.versions, id)
		}
	}
}

type cascadingDocumentRepo struct {
	*memoryDocumentRepo
	versions *memoryVersionRepo
}

func (c *cascadingDocumentRepo) Delete(ctx context.Context, id int64) error {
	if err := c.memoryDocumentRepo.Delete(ctx, id); err != nil {
		return err
	}
	c.versions.deleteByDoc(id)
	return nil
}

type memoryUploadLogRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.UploadLog
}

func (m *memoryUploadLogRepo) Insert(ctx context.Context, entry *domain.UploadLog) (*domain.UploadLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	clone := *entry
	clone.ID = m.nextID
	clone.UploadedAt = time.Now()
	m.entries = append(m.entries, clone)
	return &clone, nil
}

func (m *memoryUploadLogRepo) Prune(ctx context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) <= keep {
		return 0, nil
	}
	removed := len(m.entries) - keep
	m.entries = append([]domain.UploadLog(nil), m.entries[removed:]...)
	return removed, nil
}

func (m *memoryUploadLogRepo) Recent(ctx context.Context, limit int) ([]domain.UploadLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.UploadLog{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	removed []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStorage) Upload(ctx context.Context, bucket, objectName, contentType string, reader io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	m.types[objectName] = contentType
	return objectName, nil
}

func (m *memoryStorage) Remove(ctx context.Context, bucket, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	m.removed = append(m.removed, objectName)
	return nil
}

func (m *memoryStorage) List(ctx context.Context, bucket, prefix string) ([]ports.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ports.StoredObject{}
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ports.StoredObject{Key: key, Size: int64(len(data)), LastModified: time.Now()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStorage) Open(ctx context.Context, bucket, objectName string) (io.ReadCloser, *ports.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ports.ErrObjectNotFound, objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), &ports.StoredObject{Key: objectName, Size: int64(len(data)), ContentType: m.types[objectName]}, nil
}
