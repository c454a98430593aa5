package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/monitoring"
	"github.com/mmdatafocus/pos_backend/utils"
)

// PublishBranchEvent pushes a branch-scoped notification. Fire-and-forget:
// the core never blocks a caller on it and never surfaces its failures.
func PublishBranchEvent(ctx context.Context, branchId int, eventName string, payload interface{}) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.RecordSideEffectFailure("notification", eventName, fmt.Errorf("panic: %v", r))
			}
		}()

		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := config.GetPubSubClient(pubCtx)
		if err != nil {
			monitoring.RecordSideEffectFailure("notification", eventName, err)
			return
		}

		body, err := json.Marshal(payload)
		if err != nil {
			monitoring.RecordSideEffectFailure("notification", eventName, err)
			return
		}

		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		topic := client.Topic(config.TopicBranchEvents)
		result := topic.Publish(pubCtx, &pubsub.Message{
			Data: body,
			Attributes: map[string]string{
				"branch_id":      fmt.Sprint(branchId),
				"event":          eventName,
				"correlation_id": correlationId,
			},
		})
		if _, err := result.Get(pubCtx); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "notification.go", "PublishBranchEvent", eventName, branchId, err)
			monitoring.RecordSideEffectFailure("notification", eventName, err)
		}
	}()
}
