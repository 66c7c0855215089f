package service

import (
	"context"
	"encoding/json"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventForwarder sends document events to an external bus.
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub          *gochannel.GoChannel
	topicName       string
	documentService IDocumentService
	forwarder       EventForwarder
	logger          logger.ILogger
}

// NewConsumerService builds the document event consumer. forwarder may be nil
// when no external bus is configured.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	documentService IDocumentService,
	forwarder EventForwarder,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:          pubSub,
		topicName:       topicName,
		documentService: documentService,
		forwarder:       forwarder,
		logger:          log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.DocumentEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(constant.LogModuleEvents, "Failed to unmarshal document event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // invalid payloads are never retried
		return
	}

	cs.logger.Info(constant.LogModuleEvents, "Document event", map[string]interface{}{
		"type":         payload.Type,
		"local_id":     payload.LocalId,
		"remote_id":    payload.RemoteId,
		"display_name": payload.DisplayName,
	})

	// The operation result did not carry the document name. A listing repairs it.
	if payload.Type == constant.EventDocumentIndexed && payload.RemoteId == "" {
		repaired, err := cs.documentService.Backfill(ctx)
		if err != nil {
			cs.logger.Warn(constant.LogModuleEvents, "Backfill after indexing failed", map[string]interface{}{
				"local_id": payload.LocalId,
				"error":    err.Error(),
			})
		} else {
			cs.logger.Info(constant.LogModuleEvents, "Backfill after indexing", map[string]interface{}{
				"local_id": payload.LocalId,
				"repaired": repaired,
			})
		}
	}

	if cs.forwarder != nil {
		if err := cs.forwarder.Publish(ctx, toEvent(payload)); err != nil {
			cs.logger.Warn(constant.LogModuleEvents, "Failed to forward document event", map[string]interface{}{
				"type":  payload.Type,
				"error": err.Error(),
			})
		}
	}

	msg.Ack()
}

func toEvent(payload dto.DocumentEventMessage) events.Event {
	data := map[string]interface{}{
		"localId":     payload.LocalId,
		"remoteId":    payload.RemoteId,
		"displayName": payload.DisplayName,
	}
	if payload.State != "" {
		data["state"] = payload.State
	}
	if payload.Error != "" {
		data["error"] = payload.Error
	}
	if payload.Type == constant.EventLedgerCleared {
		data["count"] = payload.Count
	}

	return events.BaseEvent{
		Type:       payload.Type,
		Data:       data,
		OccurredAt: payload.OccurredAt,
	}
}
