package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/entity"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/pkg/metrics"
	"gemini-rag-be/internal/repository/contract"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/retry"

	"github.com/google/uuid"
)

var (
	// ErrDocumentNotFound is returned by Delete when no ledger record matches.
	// A fully qualified remote name that was deleted remotely is not an error.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrIndexingFailed is returned when the remote operation finished with an
	// error or polling gave up. The record is kept as FAILED.
	ErrIndexingFailed = errors.New("document indexing failed")
)

const remoteStateActive = "STATE_ACTIVE"

type IDocumentService interface {
	Index(ctx context.Context, req *dto.IndexDocumentRequest) (*dto.DocumentView, error)
	List(ctx context.Context) (*dto.ListDocumentsResponse, error)
	Delete(ctx context.Context, id string) (*dto.DeleteDocumentResponse, error)
	DeleteAll(ctx context.Context) (*dto.DeleteAllDocumentsResponse, error)
	StoreInfo(ctx context.Context) (*dto.StoreInfoResponse, error)
	Backfill(ctx context.Context) (int, error)
}

type documentService struct {
	gateway          filestore.Gateway
	ledger           contract.ILedgerRepository
	publisherService IPublisherService
	storeName        string
	pollPolicy       retry.Policy
	logger           logger.ILogger
	now              func() time.Time

	// serializes backfills so two listings never assign the same remote id
	backfillMu sync.Mutex

	// localIds whose upload operation is still outstanding; backfill leaves
	// them to the operation result
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewDocumentService(
	gateway filestore.Gateway,
	ledger contract.ILedgerRepository,
	publisherService IPublisherService,
	storeName string,
	pollPolicy retry.Policy,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		gateway:          gateway,
		ledger:           ledger,
		publisherService: publisherService,
		storeName:        storeName,
		pollPolicy:       pollPolicy,
		logger:           log,
		now:              time.Now,
		inflight:         make(map[string]struct{}),
	}
}

func (s *documentService) trackInflight(localId string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	s.inflight[localId] = struct{}{}
}

func (s *documentService) untrackInflight(localId string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, localId)
}

func (s *documentService) isInflight(localId string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	_, ok := s.inflight[localId]
	return ok
}

func (s *documentService) Index(ctx context.Context, req *dto.IndexDocumentRequest) (*dto.DocumentView, error) {
	metadata, err := filestore.ParseCustomMetadata(req.Metadata)
	if err != nil {
		s.logger.Warn(constant.LogModuleReconcile, "Ignoring malformed metadata", map[string]interface{}{
			"metadata": req.Metadata,
			"error":    err.Error(),
		})
		metadata = []entity.CustomMetadata{}
	}

	collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("collection").Inc()
		return nil, fmt.Errorf("find or create store %s: %w", s.storeName, err)
	}

	// The rest runs detached so an abandoned request still records the outcome.
	work := context.WithoutCancel(ctx)

	now := s.now()
	record := entity.DocumentRecord{
		LocalId:          uuid.NewString(),
		DisplayName:      req.OriginalName,
		MimeType:         req.MimeType,
		SizeBytes:        req.SizeBytes,
		CustomMetadata:   metadata,
		CreateTime:       now,
		UpdateTime:       now,
		State:            entity.DocumentStatePending,
		RemoteCollection: collection.Name,
	}
	s.trackInflight(record.LocalId)
	defer s.untrackInflight(record.LocalId)
	s.persist("append", s.ledger.Append(work, record), record.LocalId)

	s.logger.Info(constant.LogModuleReconcile, "Uploading document", map[string]interface{}{
		"local_id":     record.LocalId,
		"display_name": record.DisplayName,
		"store":        collection.Name,
	})

	op, err := s.gateway.SubmitDocument(work, filestore.SubmitRequest{
		FilePath:       req.FilePath,
		DisplayName:    req.OriginalName,
		MimeType:       req.MimeType,
		CustomMetadata: metadata,
	}, collection)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("submit").Inc()
		s.markFailed(work, &record, err)
		if !errors.Is(err, filestore.ErrRemoteUnavailable) {
			err = fmt.Errorf("%w: %w", filestore.ErrRemoteUnavailable, err)
		}
		return nil, fmt.Errorf("submit %s: %w", record.DisplayName, err)
	}

	op, err = s.awaitOperation(work, op)
	if err == nil && op.Err != nil {
		err = op.Err
	}
	if err != nil {
		s.markFailed(work, &record, err)
		view := dto.NewDocumentView(record, constant.DocumentSourceLedger)
		return &view, fmt.Errorf("%w: %w", ErrIndexingFailed, err)
	}

	record = s.promote(work, record, op.DocumentName)
	metrics.IndexOutcomes.WithLabelValues(string(entity.DocumentStateActive)).Inc()

	s.logger.Info(constant.LogModuleReconcile, "Document indexed", map[string]interface{}{
		"local_id":  record.LocalId,
		"remote_id": record.RemoteId,
	})
	s.publish(work, dto.DocumentEventMessage{
		Type:        constant.EventDocumentIndexed,
		LocalId:     record.LocalId,
		RemoteId:    record.RemoteId,
		DisplayName: record.DisplayName,
		State:       string(record.State),
	})

	view := dto.NewDocumentView(record, constant.DocumentSourceLedger)
	return &view, nil
}

// promote marks the record ACTIVE with the remote id the operation reported.
// If the ledger already holds a different id for the record, that id is kept
// and the state still advances.
func (s *documentService) promote(ctx context.Context, record entity.DocumentRecord, documentName string) entity.DocumentRecord {
	record.State = entity.DocumentStateActive
	record.RemoteId = documentName
	record.UpdateTime = s.now()

	err := s.ledger.Update(ctx, record)
	if errors.Is(err, contract.ErrRemoteIdConflict) {
		stored, ok := s.ledger.FindByLocalId(ctx, record.LocalId)
		if !ok {
			s.persist("update", err, record.LocalId)
			return record
		}
		s.logger.Warn(constant.LogModuleReconcile, "Operation result disagrees with ledger remote id", map[string]interface{}{
			"local_id":         record.LocalId,
			"ledger_remote_id": stored.RemoteId,
			"operation_doc":    documentName,
		})
		record.RemoteId = stored.RemoteId
		err = s.ledger.Update(ctx, record)
	}
	s.persist("update", err, record.LocalId)
	return record
}

// awaitOperation polls until the operation is done. Transient remote errors
// count as "not done yet".
func (s *documentService) awaitOperation(ctx context.Context, op *filestore.Operation) (*filestore.Operation, error) {
	if op.Done {
		return op, nil
	}

	attempts, err := retry.Until(ctx, s.pollPolicy, func(ctx context.Context) (bool, error) {
		current, err := s.gateway.PollOperation(ctx, op)
		if err != nil {
			metrics.RemoteFailures.WithLabelValues("poll").Inc()
			if errors.Is(err, filestore.ErrRemoteUnavailable) {
				s.logger.Warn(constant.LogModuleReconcile, "Operation poll failed, retrying", map[string]interface{}{
					"operation": op.Name,
					"error":     err.Error(),
				})
				return false, nil
			}
			return false, err
		}
		op = current
		return op.Done, nil
	})
	metrics.PollAttempts.Observe(float64(attempts))

	return op, err
}

func (s *documentService) markFailed(ctx context.Context, record *entity.DocumentRecord, cause error) {
	record.State = entity.DocumentStateFailed
	record.UpdateTime = s.now()
	s.persist("update", s.ledger.Update(ctx, *record), record.LocalId)
	metrics.IndexOutcomes.WithLabelValues(string(entity.DocumentStateFailed)).Inc()

	s.logger.Error(constant.LogModuleReconcile, "Document indexing failed", map[string]interface{}{
		"local_id": record.LocalId,
		"error":    cause.Error(),
	})
	s.publish(ctx, dto.DocumentEventMessage{
		Type:        constant.EventDocumentFailed,
		LocalId:     record.LocalId,
		DisplayName: record.DisplayName,
		State:       string(record.State),
		Error:       cause.Error(),
	})
}

func (s *documentService) List(ctx context.Context) (*dto.ListDocumentsResponse, error) {
	collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("collection").Inc()
		return s.ledgerListing(ctx, err), nil
	}

	remoteDocs, err := s.gateway.ListDocuments(ctx, collection)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("list").Inc()
		return s.ledgerListing(ctx, err), nil
	}

	s.backfill(ctx, remoteDocs)

	localIds := make(map[string]string)
	for _, rec := range s.ledger.Load(ctx) {
		if rec.HasRemoteId() {
			localIds[rec.RemoteId] = rec.LocalId
		}
	}

	sort.SliceStable(remoteDocs, func(i, j int) bool {
		return remoteDocs[i].CreateTime.After(remoteDocs[j].CreateTime)
	})

	views := make([]dto.DocumentView, 0, len(remoteDocs))
	for _, doc := range remoteDocs {
		metadata := doc.CustomMetadata
		if metadata == nil {
			metadata = []entity.CustomMetadata{}
		}
		views = append(views, dto.DocumentView{
			LocalId:          localIds[doc.Name],
			Name:             doc.Name,
			DisplayName:      doc.DisplayName,
			MimeType:         doc.MimeType,
			SizeBytes:        doc.SizeBytes,
			CustomMetadata:   metadata,
			CreateTime:       doc.CreateTime,
			UpdateTime:       doc.UpdateTime,
			State:            doc.State,
			RemoteCollection: collection.Name,
			Source:           constant.DocumentSourceRemote,
		})
	}

	return &dto.ListDocumentsResponse{Documents: views}, nil
}

// ledgerListing serves the ledger most-recent-first when the remote store
// cannot be listed.
func (s *documentService) ledgerListing(ctx context.Context, cause error) *dto.ListDocumentsResponse {
	s.logger.Warn(constant.LogModuleReconcile, "Remote listing failed, serving ledger", map[string]interface{}{
		"error": cause.Error(),
	})
	metrics.DegradedResponses.WithLabelValues("list").Inc()

	records := s.ledger.Load(ctx)
	views := make([]dto.DocumentView, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		views = append(views, dto.NewDocumentView(records[i], constant.DocumentSourceLedger))
	}
	return &dto.ListDocumentsResponse{Documents: views, Degraded: true}
}

func (s *documentService) Backfill(ctx context.Context) (int, error) {
	collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("collection").Inc()
		return 0, err
	}

	remoteDocs, err := s.gateway.ListDocuments(ctx, collection)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("list").Inc()
		return 0, err
	}

	return s.backfill(ctx, remoteDocs), nil
}

// backfill attaches remote ids to ledger records that lack one, matching by
// display name. With several candidates it prefers one whose size matches,
// then the earliest created. Remote ids already in the ledger are never
// handed out twice.
func (s *documentService) backfill(ctx context.Context, remoteDocs []filestore.RemoteDocument) int {
	s.backfillMu.Lock()
	defer s.backfillMu.Unlock()

	records := s.ledger.Load(ctx)

	assigned := make(map[string]bool)
	for _, rec := range records {
		if rec.HasRemoteId() {
			assigned[rec.RemoteId] = true
		}
	}

	repaired := 0
	for _, rec := range records {
		if rec.HasRemoteId() || s.isInflight(rec.LocalId) {
			continue
		}

		match := pickBackfillCandidate(rec, remoteDocs, assigned)
		if match == nil {
			continue
		}

		rec.RemoteId = match.Name
		rec.UpdateTime = s.now()
		if rec.State == entity.DocumentStatePending && match.State == remoteStateActive {
			rec.State = entity.DocumentStateActive
		}

		err := s.ledger.Update(ctx, rec)
		if err != nil && !errors.Is(err, contract.ErrPersistence) {
			s.logger.Warn(constant.LogModuleReconcile, "Skipping backfill", map[string]interface{}{
				"local_id": rec.LocalId,
				"error":    err.Error(),
			})
			continue
		}
		s.persist("update", err, rec.LocalId)

		assigned[match.Name] = true
		repaired++
		s.logger.Info(constant.LogModuleReconcile, "Backfilled remote id", map[string]interface{}{
			"local_id":  rec.LocalId,
			"remote_id": match.Name,
		})
	}

	if repaired > 0 {
		metrics.BackfilledRecords.Add(float64(repaired))
	}
	return repaired
}

func pickBackfillCandidate(rec entity.DocumentRecord, remoteDocs []filestore.RemoteDocument, assigned map[string]bool) *filestore.RemoteDocument {
	var best *filestore.RemoteDocument
	bestSizeMatch := false

	for i := range remoteDocs {
		doc := &remoteDocs[i]
		if doc.DisplayName != rec.DisplayName || assigned[doc.Name] {
			continue
		}

		sizeMatch := rec.SizeBytes > 0 && doc.SizeBytes == rec.SizeBytes
		switch {
		case best == nil:
		case sizeMatch && !bestSizeMatch:
		case sizeMatch == bestSizeMatch && doc.CreateTime.Before(best.CreateTime):
		default:
			continue
		}
		best = doc
		bestSizeMatch = sizeMatch
	}
	return best
}

func (s *documentService) Delete(ctx context.Context, id string) (*dto.DeleteDocumentResponse, error) {
	record, found := s.ledger.FindByLocalId(ctx, id)

	collectionName := ""
	if found {
		collectionName = record.RemoteCollection
	}

	var ledgerRecord *entity.DocumentRecord
	if found {
		ledgerRecord = record
	}
	resolution := filestore.ResolveRemoteName(id, ledgerRecord, collectionName)

	switch resolution.Kind {
	case filestore.ResolvedQualified:
		record, found = s.ledger.FindByRemoteId(ctx, id)
	case filestore.ResolvedNeedsDiscovery:
		if _, err := s.Backfill(ctx); err != nil {
			s.logger.Warn(constant.LogModuleReconcile, "Discovery listing failed, using guessed name", map[string]interface{}{
				"local_id": id,
				"error":    err.Error(),
			})
		} else if refreshed, ok := s.ledger.FindByLocalId(ctx, id); ok {
			record = refreshed
			resolution = filestore.ResolveRemoteName(id, refreshed, refreshed.RemoteCollection)
		}
	case filestore.ResolvedGuess:
		if collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName); err == nil {
			resolution = filestore.ResolveRemoteName(id, nil, collection.Name)
		}
	}

	remoteStatus := constant.RemoteStatusUnknown
	if resolution.RemoteName != "" {
		deleted, err := s.gateway.DeleteDocument(ctx, resolution.RemoteName)
		switch {
		case err != nil:
			metrics.RemoteFailures.WithLabelValues("delete").Inc()
			s.logger.Warn(constant.LogModuleReconcile, "Remote delete failed", map[string]interface{}{
				"remote_name": resolution.RemoteName,
				"error":       err.Error(),
			})
		case deleted:
			remoteStatus = constant.RemoteStatusDeleted
		default:
			remoteStatus = constant.RemoteStatusAbsent
		}
	}

	if !found {
		// a fully qualified remote name that was really deleted is a success
		// even though the ledger never knew it
		if resolution.Kind == filestore.ResolvedQualified && remoteStatus == constant.RemoteStatusDeleted {
			return &dto.DeleteDocumentResponse{RemoteName: resolution.RemoteName, RemoteStatus: remoteStatus}, nil
		}
		return nil, ErrDocumentNotFound
	}

	removed, err := s.ledger.Remove(ctx, record.LocalId)
	s.persist("remove", err, record.LocalId)
	if removed == nil {
		removed = record
	}

	s.logger.Info(constant.LogModuleReconcile, "Document deleted", map[string]interface{}{
		"local_id":      removed.LocalId,
		"remote_name":   resolution.RemoteName,
		"remote_status": remoteStatus,
	})
	s.publish(ctx, dto.DocumentEventMessage{
		Type:        constant.EventDocumentDeleted,
		LocalId:     removed.LocalId,
		RemoteId:    resolution.RemoteName,
		DisplayName: removed.DisplayName,
	})

	view := dto.NewDocumentView(*removed, constant.DocumentSourceLedger)
	return &dto.DeleteDocumentResponse{
		Document:     &view,
		RemoteName:   resolution.RemoteName,
		RemoteStatus: remoteStatus,
	}, nil
}

func (s *documentService) DeleteAll(ctx context.Context) (*dto.DeleteAllDocumentsResponse, error) {
	var result filestore.DeleteAllResult

	collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("collection").Inc()
		s.logger.Warn(constant.LogModuleReconcile, "Store lookup failed, clearing ledger only", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		result, err = s.gateway.DeleteAll(ctx, collection)
		if err != nil {
			metrics.RemoteFailures.WithLabelValues("delete_all").Inc()
			s.logger.Warn(constant.LogModuleReconcile, "Remote delete-all failed", map[string]interface{}{
				"error": err.Error(),
			})
			result = filestore.DeleteAllResult{}
		}
	}

	cleared := len(s.ledger.Load(ctx))
	s.persist("clear", s.ledger.Clear(ctx), "")

	s.logger.Info(constant.LogModuleReconcile, "Ledger cleared", map[string]interface{}{
		"remote_deleted": result.Succeeded,
		"remote_failed":  result.Failed,
		"local_cleared":  cleared,
	})
	s.publish(ctx, dto.DocumentEventMessage{
		Type:  constant.EventLedgerCleared,
		Count: cleared,
	})

	return &dto.DeleteAllDocumentsResponse{
		GeminiDeleted: result.Succeeded,
		GeminiFailed:  result.Failed,
		LocalCleared:  cleared,
	}, nil
}

func (s *documentService) StoreInfo(ctx context.Context) (*dto.StoreInfoResponse, error) {
	count := len(s.ledger.Load(ctx))

	collection, err := s.gateway.FindOrCreateCollection(ctx, s.storeName)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("collection").Inc()
		metrics.DegradedResponses.WithLabelValues("store_info").Inc()
		s.logger.Warn(constant.LogModuleReconcile, "Store lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
		return &dto.StoreInfoResponse{DocumentsCount: count, Degraded: true}, nil
	}

	return &dto.StoreInfoResponse{
		StoreName:      collection.Name,
		DisplayName:    collection.DisplayName,
		DocumentsCount: count,
	}, nil
}

// persist logs ledger write failures. The in-memory state is already applied,
// so the caller carries on.
func (s *documentService) persist(op string, err error, localId string) {
	if err == nil {
		return
	}
	s.logger.Error(constant.LogModuleLedger, "Ledger write failed", map[string]interface{}{
		"op":       op,
		"local_id": localId,
		"error":    err.Error(),
	})
}

func (s *documentService) publish(ctx context.Context, event dto.DocumentEventMessage) {
	if s.publisherService == nil {
		return
	}
	event.OccurredAt = s.now()

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn(constant.LogModuleEvents, "Failed to publish document event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
	}
}
