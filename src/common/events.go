package common

import (
	"encoding/json"
	"log"

	"fundi/src/config"
	"fundi/src/lib"
	"fundi/src/types"
	"fundi/src/utils"
)

// Domain events emitted to the notification sink. The core never formats or
// sends user-facing messages; subscribers do.
const (
	EventBookingConfirmed = "BookingConfirmed"
	EventBookingCanceled  = "BookingCancelled"
	EventPaymentReleased  = "PaymentReleased"
	EventPayoutCompleted  = "PayoutCompleted"
	EventPayoutFailed     = "PayoutFailed"
	EventDisputeOpened    = "DisputeOpened"
)

const DomainEventsTopic = "domain-events"

// EmitDomainEvent publishes asynchronously; notification delivery is best
// effort and never blocks or fails a money-movement transaction.
func EmitDomainEvent(event string, payload types.JSONB) {
	body := types.JSONB{
		"event": event,
		"data":  payload,
	}
	go func() {
		if err := lib.KafkaProduceMessage("domain-events", utils.WithSuffix(DomainEventsTopic), body); err != nil {
			log.Printf("[events] Error emitting %s: %s\n", event, err.Error())
		}
		if config.API_ENV == "production" {
			b, err := json.Marshal(&body)
			if err != nil {
				return
			}
			if err := lib.SNSPublishMessage(utils.WithSuffix(DomainEventsTopic), string(b)); err != nil {
				log.Printf("[events] Error publishing %s to SNS: %s\n", event, err.Error())
			}
		}
	}()
}
