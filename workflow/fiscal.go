package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/monitoring"
)

// ScheduleFiscalSubmission hands a paid order to the external e-invoice
// submitter. Deliberately deferred and non-blocking: the HTTP response
// returns before this runs, submission errors are recorded out of band, and
// nothing is ever rolled back against them.
func ScheduleFiscalSubmission(orderId int) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.RecordSideEffectFailure("fiscal", strconv.Itoa(orderId), fmt.Errorf("panic: %v", r))
			}
		}()

		pubCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		client, err := config.GetPubSubClient(pubCtx)
		if err != nil {
			monitoring.RecordSideEffectFailure("fiscal", strconv.Itoa(orderId), err)
			return
		}

		topic := client.Topic(config.TopicFiscalSubmission)
		result := topic.Publish(pubCtx, &pubsub.Message{
			Data: []byte(strconv.Itoa(orderId)),
			Attributes: map[string]string{
				"order_id": strconv.Itoa(orderId),
			},
		})
		if _, err := result.Get(pubCtx); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "fiscal.go", "ScheduleFiscalSubmission", "publish", orderId, err)
			monitoring.RecordSideEffectFailure("fiscal", strconv.Itoa(orderId), err)
		}
	}()
}
