package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/infrastructure/resilience"
)

const (
	payloadContent  = "content"
	payloadMetadata = "metadata"
)

// Client is a VectorStore backed by the Qdrant REST API. Points carry the
// document as payload {content, metadata}.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

// Upsert replaces the points of every source present in chunks.
func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert",
			fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	sources := make(map[string]struct{})
	for _, chunk := range chunks {
		sources[chunk.Document.Source()] = struct{}{}
	}
	for source := range sources {
		if err := c.deleteSource(ctx, source); err != nil {
			return err
		}
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     pointID(chunk),
			Vector: vectors[i],
			Payload: map[string]any{
				payloadContent:  chunk.Document.Content,
				payloadMetadata: chunk.Document.Metadata,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) (domain.RankedList, error) {
	if limit <= 0 {
		limit = 4
	}
	reqBody := map[string]any{
		"query":        queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var resp struct {
		Result struct {
			Points []struct {
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/query", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &resp, "search"); err != nil {
		return nil, err
	}

	out := make(domain.RankedList, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		metadata, _ := p.Payload[payloadMetadata].(map[string]any)
		out = append(out, domain.Document{
			Content:  getStringPayload(p.Payload, payloadContent),
			Metadata: metadata,
		})
	}
	return out, nil
}

// Ping checks that Qdrant answers. The collection is created on first upsert.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/collections", nil, nil, "list collections")
}

func (c *Client) deleteSource(ctx context.Context, source string) error {
	if source == "" {
		return nil
	}
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   payloadMetadata + "." + domain.MetadataSource,
					"match": map[string]any{"value": source},
				},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPost, path, reqBody, nil, "delete")
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
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	var statusErr *resilience.HTTPStatusError
	// 409 when the collection already exists.
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = raw
	}

	op := "qdrant " + operation
	err := c.executor.Execute(ctx, op, func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, bytes.NewReader(body))
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
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	return resilience.WrapTemporary(op, err, resilience.ClassifyHTTP)
}

// pointID is stable per source and chunk index so reindexing overwrites points.
func pointID(chunk domain.Chunk) string {
	key := fmt.Sprintf("%s#%d", chunk.Document.Source(), chunk.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
