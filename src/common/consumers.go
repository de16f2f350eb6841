package common

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"fundi/src/lib"
	"fundi/src/lib/aws"
	"fundi/src/lib/mailer"
	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// StartPayoutsDueConsumer wires the one-shot settlement schedules back into
// the worker. Local environments consume the kafka topic directly; deployed
// environments get the EventBridge payload through SQS.
func StartPayoutsDueConsumer(db *gorm.DB, rdb *redis.Client, gw lib.TransferGateway) {
	handle := func(payload []byte) {
		raw := gjson.GetBytes(payload, "payout_id").String()
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Printf("[payouts] Discarding due message with bad payout id %q\n", raw)
			return
		}
		if err := MarkReady(db, id); err != nil {
			log.Printf("[payouts] Error promoting %s: %s\n", id, err.Error())
			return
		}
		if err := ProcessPayout(db, rdb, gw, id); err != nil {
			log.Printf("[payouts] Error processing %s: %s\n", id, err.Error())
		}
	}

	if os.Getenv("API_ENV") == "local" {
		go lib.KafkaConsumeTopic("payouts", utils.WithSuffix(PayoutsDueTopic), handle)
		return
	}
	consumer := aws.NewSQSConsumer(utils.WithSuffix(PayoutsDueTopic), func(payload string) {
		handle([]byte(payload))
	})
	consumer.Listen()
}

// StartNotificationConsumer subscribes to the domain-events stream and turns
// selected events into client emails. Formatting lives here, never in the
// core flows that emit the events.
func StartNotificationConsumer(db *gorm.DB) {
	go lib.KafkaConsumeTopic("notifications", utils.WithSuffix(DomainEventsTopic), func(value []byte) {
		var body types.JSONB
		if err := json.Unmarshal(value, &body); err != nil {
			log.Printf("[notify] Discarding malformed event: %s\n", err.Error())
			return
		}
		event, _ := body["event"].(string)
		data, _ := body["data"].(map[string]any)
		if err := notifyForEvent(db, event, data); err != nil {
			log.Printf("[notify] Error handling %s: %s\n", event, err.Error())
		}
	})
}

// StartEmailConsumer drains the mail queue and delivers over SMTP. The queue
// name doubles as the kafka topic locally and the SQS queue elsewhere.
func StartEmailConsumer() {
	qname := utils.WithSuffix(os.Getenv("EMAIL_QUEUE"))
	handle := func(spayload string) {
		if !gjson.Valid(spayload) {
			log.Printf("[%s]: Received invalid json body. Aborting", qname)
			return
		}
		toArr := gjson.Get(spayload, "to").Array()
		to := make([]string, 0)
		for _, item := range toArr {
			to = append(to, item.String())
		}
		input := &lib.SendMailInput{
			From:     gjson.Get(spayload, "from").String(),
			FromName: gjson.Get(spayload, "from-name").String(),
			To:       to,
			Subject:  gjson.Get(spayload, "subject").String(),
			Body:     gjson.Get(spayload, "body").String(),
			Html:     gjson.Get(spayload, "html").Bool(),
		}
		if err := lib.SendMail(input); err != nil {
			log.Printf("[MAILER] error sending email: %s\n", err.Error())
			return
		}
		log.Printf("[MAILER]: an email has been sent to %s\n", to)
	}

	if os.Getenv("API_ENV") == "local" {
		go lib.KafkaConsumeTopic("emails", qname, func(value []byte) {
			handle(string(value))
		})
		return
	}
	consumer := aws.NewSQSConsumer(qname, handle)
	consumer.Listen()
}

func notifyForEvent(db *gorm.DB, event string, data map[string]any) error {
	switch event {
	case EventBookingConfirmed, EventBookingCanceled:
		bookingID, ok := data["booking_id"].(float64)
		if !ok {
			return fmt.Errorf("event %s has no booking_id", event)
		}
		var booking models.Booking
		if err := db.
			Model(&models.Booking{}).
			Preload("Client").
			Where("id = ?", uint(bookingID)).
			First(&booking).
			Error; err != nil {
			return err
		}
		if booking.Client == nil || booking.Client.Email == "" {
			return nil
		}
		subject := fmt.Sprintf("Booking %s confirmed", booking.BookingNumber)
		text := fmt.Sprintf("Your booking %s is confirmed for %s.", booking.BookingNumber, booking.ScheduledDate.Format("Mon, 02 Jan 2006 15:04"))
		if event == EventBookingCanceled {
			subject = fmt.Sprintf("Booking %s cancelled", booking.BookingNumber)
			text = fmt.Sprintf("Your booking %s has been cancelled.", booking.BookingNumber)
			if booking.RefundEligible {
				text = fmt.Sprintf("%s A refund of %s %.2f will be processed.", text, booking.Currency, booking.RefundAmount)
			}
		}
		return mailer.NewMailerMessage(&lib.SendMailInput{
			From:     os.Getenv("EMAIL_SENDER"),
			FromName: "Fundi",
			To:       []string{booking.Client.Email},
			Subject:  subject,
			Body:     text,
		})
	case EventPayoutCompleted, EventPayoutFailed:
		raw, _ := data["payout_id"].(string)
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("event %s has bad payout_id %q", event, raw)
		}
		var payout models.Payout
		if err := db.
			Model(&models.Payout{}).
			Preload("Provider.User").
			Where("id = ?", id).
			First(&payout).
			Error; err != nil {
			return err
		}
		if payout.Provider == nil || payout.Provider.User == nil || payout.Provider.User.Email == "" {
			return nil
		}
		subject := "Payout sent"
		text := fmt.Sprintf("Your payout of %s %.2f is on its way.", payout.Currency, payout.PayoutAmount)
		if event == EventPayoutFailed {
			subject = "Payout failed"
			text = fmt.Sprintf("Your payout of %s %.2f could not be completed. Our team has been notified.", payout.Currency, payout.PayoutAmount)
		}
		return mailer.NewMailerMessage(&lib.SendMailInput{
			From:     os.Getenv("EMAIL_SENDER"),
			FromName: "Fundi",
			To:       []string{payout.Provider.User.Email},
			Subject:  subject,
			Body:     text,
		})
	}
	return nil
}
