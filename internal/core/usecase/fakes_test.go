package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

var fixedNow = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func int64Ptr(v int64) *int64 { return &v }

type modelFake struct {
	mu      sync.Mutex
	name    string
	prompts []string
	respond func(prompt string) (string, error)
}

func (m *modelFake) GenerateJSON(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.respond == nil {
		return "", errors.New("no response configured")
	}
	return m.respond(prompt)
}

func (m *modelFake) ModelName() string { return m.name }

func staticModel(response string) *modelFake {
	return &modelFake{name: "static", respond: func(string) (string, error) { return response, nil }}
}

// memDB is an in-memory record store shared by the repository fakes.
type memDB struct {
	mu          sync.Mutex
	nextID      int64
	clients     map[int64]domain.Client
	deadlines   map[int64]domain.Deadline
	extractions map[int64]domain.DeadlineExtraction
	documents   map[string]domain.DocumentClassification
	hints       map[int64]domain.HintRecord
	validations map[int64]domain.Validation
	analyses    map[int64]domain.Analysis
	files       map[string][]byte
	fileRoot    string
}

func newMemDB() *memDB {
	return &memDB{
		clients:     map[int64]domain.Client{},
		deadlines:   map[int64]domain.Deadline{},
		extractions: map[int64]domain.DeadlineExtraction{},
		documents:   map[string]domain.DocumentClassification{},
		hints:       map[int64]domain.HintRecord{},
		validations: map[int64]domain.Validation{},
		analyses:    map[int64]domain.Analysis{},
		files:       map[string][]byte{},
		fileRoot:    "/data",
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func sameInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type memClients struct{ db *memDB }

func (r memClients) Create(_ context.Context, in domain.ClientInput) (*domain.Client, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.clients {
		if c.Email == in.Email {
			return nil, domain.WrapError(domain.ErrConflict, "create client", errors.New("email exists"))
		}
	}
	c := domain.Client{ID: r.db.id(), Name: in.Name, Email: in.Email, Phone: in.Phone, Company: in.Company, Active: true}
	r.db.clients[c.ID] = c
	return &c, nil
}

func (r memClients) GetByID(_ context.Context, id int64) (*domain.Client, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.clients[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrClientNotFound, "get client", fmt.Errorf("id %d", id))
	}
	return &c, nil
}

func (r memClients) List(_ context.Context, activeOnly bool) ([]domain.Client, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Client
	for _, c := range r.db.clients {
		if !activeOnly || c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memClients) Update(ctx context.Context, id int64, in domain.ClientInput) (*domain.Client, error) {
	r.db.mu.Lock()
	c, ok := r.db.clients[id]
	if ok {
		c.Name, c.Email, c.Phone, c.Company = in.Name, in.Email, in.Phone, in.Company
		r.db.clients[id] = c
	}
	r.db.mu.Unlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrClientNotFound, "update client", fmt.Errorf("id %d", id))
	}
	return r.GetByID(ctx, id)
}

func (r memClients) SetActive(_ context.Context, id int64, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.clients[id]
	if !ok {
		return domain.WrapError(domain.ErrClientNotFound, "set active", fmt.Errorf("id %d", id))
	}
	c.Active = active
	r.db.clients[id] = c
	return nil
}

func (r memClients) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.clients, id)
	return nil
}

func (r memClients) CountActive(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, c := range r.db.clients {
		if c.Active {
			n++
		}
	}
	return n, nil
}

type memDeadlines struct {
	db        *memDB
	insertErr func(d *domain.Deadline) error
}

func (r memDeadlines) Insert(_ context.Context, d *domain.Deadline) error {
	if r.insertErr != nil {
		if err := r.insertErr(d); err != nil {
			return err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d.ID = r.db.id()
	r.db.deadlines[d.ID] = *d
	return nil
}

func (r memDeadlines) GetByID(_ context.Context, id int64) (*domain.Deadline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.deadlines[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDeadlineNotFound, "get deadline", fmt.Errorf("id %d", id))
	}
	return &d, nil
}

func (r memDeadlines) List(_ context.Context, f domain.DeadlineFilter) ([]domain.Deadline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Deadline
	for _, d := range r.db.deadlines {
		if f.ClientID != nil && !sameInt64(f.ClientID, d.ClientID) {
			continue
		}
		if f.RiskLevel != "" && d.RiskLevel != f.RiskLevel {
			continue
		}
		if f.Completed != nil && d.Completed != *f.Completed {
			continue
		}
		if f.From != nil && d.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && d.Date.After(*f.To) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r memDeadlines) ListUrgent(_ context.Context, clientID *int64) ([]domain.UrgentDeadline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.UrgentDeadline
	for _, d := range r.db.deadlines {
		if clientID != nil && !sameInt64(clientID, d.ClientID) {
			continue
		}
		item := domain.UrgentDeadline{Deadline: d}
		if d.ClientID != nil {
			c := r.db.clients[*d.ClientID]
			item.ClientName, item.ClientEmail = c.Name, c.Email
		}
		out = append(out, item)
	}
	return out, nil
}

func (r memDeadlines) Stats(_ context.Context, clientID *int64) (domain.DeadlineStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var s domain.DeadlineStats
	for _, d := range r.db.deadlines {
		if clientID != nil && !sameInt64(clientID, d.ClientID) {
			continue
		}
		if d.Completed {
			s.Completed++
			continue
		}
		s.Add(d.RiskLevel, 1)
	}
	return s, nil
}

func (r memDeadlines) SetCompleted(_ context.Context, id int64, completed bool, at time.Time) (*domain.Deadline, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.deadlines[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDeadlineNotFound, "complete deadline", fmt.Errorf("id %d", id))
	}
	d.Completed = completed
	d.CompletedAt = nil
	if completed {
		d.CompletedAt = &at
	}
	r.db.deadlines[id] = d
	return &d, nil
}

func (r memDeadlines) UpdateRisk(_ context.Context, id int64, days int, risk domain.RiskLevel) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d := r.db.deadlines[id]
	d.WorkingDaysRemaining, d.RiskLevel = days, risk
	r.db.deadlines[id] = d
	return nil
}

func (r memDeadlines) ListIDsBySource(_ context.Context, sourceID string, clientID *int64) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []int64
	for id, d := range r.db.deadlines {
		if d.SourceID == sourceID && sameInt64(clientID, d.ClientID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memDeadlines) ListIDsByClient(_ context.Context, clientID int64) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []int64
	for id, d := range r.db.deadlines {
		if d.ClientID != nil && *d.ClientID == clientID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memDeadlines) DeleteByIDs(_ context.Context, ids []int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.db.deadlines[id]; ok {
			delete(r.db.deadlines, id)
			n++
		}
	}
	return n, nil
}

func (r memDeadlines) DeleteByClient(_ context.Context, clientID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, d := range r.db.deadlines {
		if d.ClientID != nil && *d.ClientID == clientID {
			delete(r.db.deadlines, id)
			n++
		}
	}
	return n, nil
}

type memExtractions struct {
	db        *memDB
	insertErr error
}

func (r memExtractions) Insert(_ context.Context, e *domain.DeadlineExtraction) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e.ID = r.db.id()
	r.db.extractions[e.ID] = *e
	return nil
}

func (r memExtractions) DeleteByClient(_ context.Context, clientID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, e := range r.db.extractions {
		if e.ClientID != nil && *e.ClientID == clientID {
			delete(r.db.extractions, id)
			n++
		}
	}
	return n, nil
}

type memDocuments struct{ db *memDB }

func (r memDocuments) Upsert(_ context.Context, doc *domain.DocumentClassification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if existing, ok := r.db.documents[doc.DocumentID]; ok {
		doc.CreatedAt = existing.CreatedAt
	}
	r.db.documents[doc.DocumentID] = *doc
	return nil
}

func (r memDocuments) GetByID(_ context.Context, id string) (*domain.DocumentClassification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	doc, ok := r.db.documents[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return &doc, nil
}

func (r memDocuments) Search(_ context.Context, f domain.DocumentFilter) ([]domain.DocumentClassification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.DocumentClassification
	for _, doc := range r.db.documents {
		if f.ClientID != nil && !sameInt64(f.ClientID, doc.ClientID) {
			continue
		}
		if f.DocType != "" && doc.Classification.DocType != f.DocType {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(doc.Filename+" "+doc.Classification.Summary), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r memDocuments) Stats(_ context.Context, clientID *int64) (domain.DocumentStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := domain.NewDocumentStats()
	for _, doc := range r.db.documents {
		if clientID != nil && !sameInt64(clientID, doc.ClientID) {
			continue
		}
		s.Total++
		s.ByType[doc.Classification.DocType]++
	}
	return s, nil
}

func (r memDocuments) ListIDsByClient(_ context.Context, clientID int64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []string
	for id, doc := range r.db.documents {
		if doc.ClientID != nil && *doc.ClientID == clientID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memDocuments) Delete(_ context.Context, id string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.documents[id]; !ok {
		return 0, nil
	}
	delete(r.db.documents, id)
	return 1, nil
}

func (r memDocuments) DeleteByClient(_ context.Context, clientID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, doc := range r.db.documents {
		if doc.ClientID != nil && *doc.ClientID == clientID {
			delete(r.db.documents, id)
			n++
		}
	}
	return n, nil
}

func (r memDocuments) CaseloadFigures(_ context.Context) (ports.CaseloadFigures, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	clients := map[int64]bool{}
	for _, doc := range r.db.documents {
		if doc.ClientID != nil {
			clients[*doc.ClientID] = true
		}
	}
	return ports.CaseloadFigures{TotalCases: len(r.db.documents), DistinctClients: len(clients)}, nil
}

type memHints struct{ db *memDB }

func (r memHints) Insert(_ context.Context, h *domain.HintRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h.ID = r.db.id()
	r.db.hints[h.ID] = *h
	return nil
}

func (r memHints) DeleteByDocument(_ context.Context, documentID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, h := range r.db.hints {
		if h.DocumentID == documentID {
			delete(r.db.hints, id)
			n++
		}
	}
	return n, nil
}

func (r memHints) DeleteByClient(_ context.Context, clientID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, h := range r.db.hints {
		if h.ClientID != nil && *h.ClientID == clientID {
			delete(r.db.hints, id)
			n++
		}
	}
	return n, nil
}

type memValidations struct{ db *memDB }

func (r memValidations) Insert(_ context.Context, v *domain.Validation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v.ID = r.db.id()
	r.db.validations[v.ID] = *v
	return nil
}

func (r memValidations) Latest(_ context.Context, t domain.ValidationType, entityID string) (*domain.Validation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var latest *domain.Validation
	for _, v := range r.db.validations {
		if v.Type != t || v.EntityID != entityID {
			continue
		}
		if latest == nil || v.ID > latest.ID {
			copyV := v
			latest = &copyV
		}
	}
	return latest, nil
}

func (r memValidations) DeleteByEntities(_ context.Context, t domain.ValidationType, entityIDs []string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range entityIDs {
		wanted[id] = true
	}
	var n int64
	for id, v := range r.db.validations {
		if v.Type == t && wanted[v.EntityID] {
			delete(r.db.validations, id)
			n++
		}
	}
	return n, nil
}

func (r memValidations) byType(t domain.ValidationType) []domain.Validation {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Validation
	for _, v := range r.db.validations {
		if v.Type == t {
			out = append(out, v)
		}
	}
	return out
}

type memAnalyses struct{ db *memDB }

func (r memAnalyses) Insert(_ context.Context, a *domain.Analysis) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a.ID = r.db.id()
	r.db.analyses[a.ID] = *a
	return nil
}

func (r memAnalyses) ListRecent(_ context.Context, firmID string, t domain.AnalysisType, limit int) ([]domain.Analysis, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Analysis
	for _, a := range r.db.analyses {
		if a.FirmID == firmID && (t == "" || a.Type == t) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memAnalyses) Stats(_ context.Context, firmID string) (domain.AnalysisStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := domain.AnalysisStats{ByType: map[string]int{}, ByRisk: map[string]int{}}
	for _, a := range r.db.analyses {
		if a.FirmID != firmID {
			continue
		}
		s.Total++
		s.ByType[string(a.Type)]++
		s.ByRisk[string(a.Result.RiskLevel)]++
	}
	return s, nil
}

type memFiles struct{ db *memDB }

func (f memFiles) clientDir(clientID *int64) string {
	if clientID == nil {
		return f.db.fileRoot + "/unassigned"
	}
	return fmt.Sprintf("%s/client_%d", f.db.fileRoot, *clientID)
}

func (f memFiles) Save(_ context.Context, clientID *int64, filename string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := f.clientDir(clientID) + "/" + filename
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.files[path] = raw
	return path, nil
}

func (f memFiles) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	raw, ok := f.db.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f memFiles) Remove(_ context.Context, path string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.files[path]; !ok {
		return false, nil
	}
	delete(f.db.files, path)
	return true, nil
}

func (f memFiles) RemoveClientDir(_ context.Context, clientID int64) (int64, error) {
	prefix := f.clientDir(&clientID) + "/"
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for path := range f.db.files {
		if strings.HasPrefix(path, prefix) {
			delete(f.db.files, path)
			n++
		}
	}
	return n, nil
}

func (f memFiles) countUnder(clientID int64) int {
	prefix := f.clientDir(&clientID) + "/"
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for path := range f.db.files {
		if strings.HasPrefix(path, prefix) {
			n++
		}
	}
	return n
}

type textExtractorFake struct{}

func (textExtractorFake) Extract(_ context.Context, _ string, data []byte) (string, error) {
	return string(data), nil
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return out
}

type embedderFake struct{ err error }

func (e embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (e embedderFake) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}

type indexFake struct {
	mu      sync.Mutex
	chunks  map[string][]domain.Chunk
	hits    []domain.SearchHit
	err     error
	cleared bool
}

func newIndexFake() *indexFake { return &indexFake{chunks: map[string][]domain.Chunk{}} }

func (i *indexFake) IndexChunks(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	if i.err != nil {
		return i.err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, c := range chunks {
		i.chunks[c.DocumentID] = append(i.chunks[c.DocumentID], c)
	}
	return nil
}

func (i *indexFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.SearchHit, error) {
	return i.hits, i.err
}

func (i *indexFake) DeleteDocument(_ context.Context, documentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.chunks, documentID)
	return nil
}

func (i *indexFake) DeleteClient(_ context.Context, clientID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id, chunks := range i.chunks {
		if len(chunks) > 0 && chunks[0].ClientID != nil && *chunks[0].ClientID == clientID {
			delete(i.chunks, id)
		}
	}
	return nil
}

func (i *indexFake) Stats(context.Context) (domain.IndexStats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	var n int64
	for _, c := range i.chunks {
		n += int64(len(c))
	}
	return domain.IndexStats{Collection: "test", Points: n}, nil
}

func (i *indexFake) Clear(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.chunks = map[string][]domain.Chunk{}
	i.cleared = true
	return nil
}

type queueFake struct {
	mu        sync.Mutex
	processed []ports.DocumentProcessedEvent
	reprocess []ports.ReprocessRequest
}

func (q *queueFake) PublishReprocess(_ context.Context, req ports.ReprocessRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reprocess = append(q.reprocess, req)
	return nil
}

func (q *queueFake) SubscribeReprocess(context.Context, func(context.Context, ports.ReprocessRequest) error) error {
	return nil
}

func (q *queueFake) PublishDocumentProcessed(_ context.Context, event ports.DocumentProcessedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processed = append(q.processed, event)
	return nil
}
