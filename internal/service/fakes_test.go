package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/repository/contract"
	"gemini-rag-be/internal/repository/implementation"
	"gemini-rag-be/pkg/chatbot"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/llm"
)

const testCollectionName = "fileSearchStores/test-store-123"

// fakeGateway is an in-memory remote store. Each capability can be made to
// fail on its own.
type fakeGateway struct {
	mu sync.Mutex

	docs        []filestore.RemoteDocument
	counter     int
	pendingOps  map[string]int // operation name -> polls left before done
	opDocs      map[string]filestore.RemoteDocument
	omitDocName bool

	collectionErr error
	submitErr     error
	listErr       error
	pollErr       error
	opErr         error
	deleteFails   map[string]bool
	deleted       []string
	pollsPerOp    int
	baseTime      time.Time
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pendingOps:  make(map[string]int),
		opDocs:      make(map[string]filestore.RemoteDocument),
		deleteFails: make(map[string]bool),
		pollsPerOp:  2,
		baseTime:    time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (g *fakeGateway) addRemote(displayName string, size int64, createOffset time.Duration) filestore.RemoteDocument {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	doc := filestore.RemoteDocument{
		Name:        fmt.Sprintf("%s/documents/doc-%d", testCollectionName, g.counter),
		DisplayName: displayName,
		SizeBytes:   size,
		CreateTime:  g.baseTime.Add(createOffset),
		UpdateTime:  g.baseTime.Add(createOffset),
		State:       "STATE_ACTIVE",
	}
	g.docs = append(g.docs, doc)
	return doc
}

func (g *fakeGateway) FindOrCreateCollection(ctx context.Context, displayName string) (*filestore.Collection, error) {
	if g.collectionErr != nil {
		return nil, g.collectionErr
	}
	return &filestore.Collection{Name: testCollectionName, DisplayName: displayName}, nil
}

func (g *fakeGateway) SubmitDocument(ctx context.Context, req filestore.SubmitRequest, collection *filestore.Collection) (*filestore.Operation, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	opName := fmt.Sprintf("%s/operations/op-%d", collection.Name, g.counter)
	g.pendingOps[opName] = g.pollsPerOp
	g.opDocs[opName] = filestore.RemoteDocument{
		Name:           fmt.Sprintf("%s/documents/doc-%d", collection.Name, g.counter),
		DisplayName:    req.DisplayName,
		MimeType:       req.MimeType,
		CustomMetadata: req.CustomMetadata,
		CreateTime:     g.baseTime.Add(time.Duration(g.counter) * time.Minute),
		State:          "STATE_ACTIVE",
	}
	return &filestore.Operation{Name: opName}, nil
}

func (g *fakeGateway) PollOperation(ctx context.Context, op *filestore.Operation) (*filestore.Operation, error) {
	if g.pollErr != nil {
		return nil, g.pollErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingOps[op.Name]--
	if g.pendingOps[op.Name] > 0 {
		return &filestore.Operation{Name: op.Name}, nil
	}

	if g.opErr != nil {
		return &filestore.Operation{Name: op.Name, Done: true, Err: g.opErr}, nil
	}

	doc := g.opDocs[op.Name]
	g.docs = append(g.docs, doc)
	result := &filestore.Operation{Name: op.Name, Done: true}
	if !g.omitDocName {
		result.DocumentName = doc.Name
	}
	return result, nil
}

func (g *fakeGateway) ListDocuments(ctx context.Context, collection *filestore.Collection) ([]filestore.RemoteDocument, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]filestore.RemoteDocument(nil), g.docs...), nil
}

func (g *fakeGateway) DeleteDocument(ctx context.Context, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteFails[name] {
		return false, fmt.Errorf("delete %s: %w", name, filestore.ErrRemoteUnavailable)
	}
	for i, doc := range g.docs {
		if doc.Name == name {
			g.docs = append(g.docs[:i], g.docs[i+1:]...)
			g.deleted = append(g.deleted, name)
			return true, nil
		}
	}
	return false, nil
}

func (g *fakeGateway) DeleteAll(ctx context.Context, collection *filestore.Collection) (filestore.DeleteAllResult, error) {
	docs, err := g.ListDocuments(ctx, collection)
	if err != nil {
		return filestore.DeleteAllResult{}, err
	}
	var result filestore.DeleteAllResult
	for _, doc := range docs {
		if _, err := g.DeleteDocument(ctx, doc.Name); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// fakeQuerier answers with a canned reply per call and records each request.
type fakeQuerier struct {
	mu       sync.Mutex
	requests []chatbot.QueryRequest
	answers  []string
	err      error
}

func (q *fakeQuerier) Query(ctx context.Context, req chatbot.QueryRequest, opts ...llm.Option) (*chatbot.Answer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	contents := append([]llm.Message(nil), req.Contents...)
	req.Contents = contents
	q.requests = append(q.requests, req)

	text := fmt.Sprintf("answer %d", len(q.requests))
	if len(q.answers) >= len(q.requests) {
		text = q.answers[len(q.requests)-1]
	}
	return &chatbot.Answer{Text: text, GroundingMetadata: []byte(`{"groundingChunks":[]}`)}, nil
}

// recordingPublisher keeps every published payload.
type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func newTestLedger(dir string) contract.ILedgerRepository {
	return implementation.NewJSONLedgerRepository(dir+"/documents.json", logger.NewNopLogger())
}
