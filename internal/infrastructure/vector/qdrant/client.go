package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const (
	defaultBatchSize        = 100
	defaultBatchConcurrency = 2
)

var pointNamespace = uuid.MustParse("8c1c3a4e-5d0f-4b8e-9b7a-3f1e2d6c9a10")

type Options struct {
	BatchSize        int
	BatchConcurrency int
	Executor         *resilience.Executor
	HTTPClient       *http.Client
}

// Client is a REST client for one Qdrant collection holding document chunks.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	batchSize        int
	batchConcurrency int

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	concurrency := opts.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		collection:       collection,
		httpClient:       httpClient,
		executor:         opts.Executor,
		batchSize:        batchSize,
		batchConcurrency: concurrency,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// PointID is stable per document and chunk index so re-indexing overwrites.
func PointID(documentID string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

// IndexChunks upserts chunks in batches. Batches run concurrently up to the
// configured limit; the first failing batch cancels the rest.
func (c *Client) IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]any{
			"document_id": chunk.DocumentID,
			"filename":    chunk.Filename,
			"chunk_index": chunk.Index,
			"text":        chunk.Text,
		}
		if chunk.ClientID != nil {
			payload["client_id"] = *chunk.ClientID
		}
		if chunk.DocType != "" {
			payload["doc_type"] = chunk.DocType
		}
		points = append(points, point{ID: PointID(chunk.DocumentID, chunk.Index), Vector: vectors[i], Payload: payload})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchConcurrency)
	for start := 0; start < len(points); start += c.batchSize {
		end := min(start+c.batchSize, len(points))
		batch := points[start:end]
		g.Go(func() error {
			return c.upsert(gctx, batch)
		})
	}
	return g.Wait()
}

func (c *Client) upsert(ctx context.Context, batch []point) error {
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": batch}, nil, "upsert")
	})
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.SearchHit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter.MinScore > 0 {
		reqBody["score_threshold"] = filter.MinScore
	}
	var must []map[string]any
	if filter.ClientID != nil {
		must = append(must, matchCondition("client_id", *filter.ClientID))
	}
	if filter.DocumentID != "" {
		must = append(must, matchCondition("document_id", filter.DocumentID))
	}
	if len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant.search", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search")
	})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return []domain.SearchHit{}, nil
		}
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		hit := domain.SearchHit{
			DocumentID: getStringPayload(r.Payload, "document_id"),
			Filename:   getStringPayload(r.Payload, "filename"),
			ChunkIndex: int(getNumberPayload(r.Payload, "chunk_index")),
			Text:       getStringPayload(r.Payload, "text"),
			Score:      r.Score,
		}
		if _, ok := r.Payload["client_id"]; ok {
			id := int64(getNumberPayload(r.Payload, "client_id"))
			hit.ClientID = &id
		}
		out = append(out, hit)
	}
	return out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.deleteByFilter(ctx, matchCondition("document_id", documentID))
}

func (c *Client) DeleteClient(ctx context.Context, clientID int64) error {
	return c.deleteByFilter(ctx, matchCondition("client_id", clientID))
}

func (c *Client) deleteByFilter(ctx context.Context, condition map[string]any) error {
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	body := map[string]any{"filter": map[string]any{"must": []map[string]any{condition}}}
	err := c.execute(ctx, "qdrant.delete", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, url, body, nil, "delete points")
	})
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (c *Client) Stats(ctx context.Context) (domain.IndexStats, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant.count", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, url, map[string]any{"exact": true}, &resp, "count")
	})
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{Collection: c.collection, Points: resp.Result.Count}, nil
}

// Clear drops the collection. It is recreated on the next IndexChunks call.
func (c *Client) Clear(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant.drop", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, url, nil, nil, "drop collection")
	})
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	c.ensureMu.Lock()
	c.ensuredCollection = false
	c.ensuredVectorSize = 0
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.execute(ctx, "qdrant.ensure_collection", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	})
	// 409 means the collection already exists.
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}
	if err := c.ensurePayloadIndexes(ctx); err != nil {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

// ensurePayloadIndexes indexes the fields used by filtered search and deletes.
func (c *Client) ensurePayloadIndexes(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s/index?wait=true", c.baseURL, c.collection)
	for field, schema := range map[string]string{"document_id": "keyword", "client_id": "integer"} {
		body := map[string]any{"field_name": field, "field_schema": schema}
		err := c.execute(ctx, "qdrant.payload_index", func(ctx context.Context) error {
			return c.doJSON(ctx, http.MethodPut, url, body, nil, "payload index")
		})
		if err != nil && !isStatus(err, http.StatusConflict) {
			return err
		}
	}
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, fn, resilience.ClassifyHTTP)
	} else {
		err = fn(ctx)
	}
	return resilience.WrapTemporary(operation, err, resilience.ClassifyHTTP)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func isStatus(err error, code int) bool {
	var statusErr *resilience.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getNumberPayload(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
