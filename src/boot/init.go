package boot

import (
	"log"
	"time"

	"fundi/src/common"
	"fundi/src/config"
	"fundi/src/db"
	"fundi/src/lib"
	"fundi/src/models"
	"fundi/src/utils"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Provider{},
		&models.Service{},
		&models.ProviderService{},
		&models.Booking{},
		&models.BookingProvider{},
		&models.BookingTimelineEntry{},
		&models.EscrowPayment{},
		&models.EscrowEvent{},
		&models.Payout{},
		&models.DiscountCode{},
		&models.DiscountRedemption{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitBroker() {
	go lib.KafkaCreateTopics(
		utils.WithSuffix(common.PayoutsDueTopic),
		utils.WithSuffix(common.DomainEventsTopic),
	)
	conn := db.GetDb()
	rdb := lib.GetRedisClient()
	gw := lib.GetDarajaClient()
	go common.StartPayoutsDueConsumer(conn, rdb, gw)
	go common.StartNotificationConsumer(conn)
	go common.StartEmailConsumer()
}

// InitScheduler starts the periodic settlement sweep. The sweep is the
// safety net behind per-payout one-shot schedules, so losing those to a
// restart only delays settlement by one interval.
func InitScheduler() {
	id, err := lib.CreateCronJob(func() {
		common.RunSettlementSweep(db.GetDb(), lib.GetRedisClient(), lib.GetDarajaClient())
	}, config.SweepInterval())
	if err != nil {
		log.Printf("Error scheduling settlement sweep: %s\n", err.Error())
		return
	}
	log.Printf("Settlement sweep scheduled: %s\n", *id)

	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// RecoverScheduledPayouts rebuilds in-process one-shot jobs after a restart.
// The payout rows themselves carry the schedule, so recovery is a re-read of
// unsettled rows rather than a separate job table.
func RecoverScheduledPayouts() error {
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	conn := db.GetDb()
	ss := conn.Session(&gorm.Session{PrepareStmt: true})
	var payouts []models.Payout
	today := time.Now()
	in3months := today.Add((24 * 30 * 3) * time.Hour)
	err = ss.
		Model(&models.Payout{}).Select("id", "scheduled_for").
		Where("status = ?", "pending").
		Where("scheduled_for BETWEEN ? AND ?", today, in3months).
		Order("scheduled_for asc").
		Limit(100).
		Find(&payouts).
		Error
	if err != nil {
		log.Printf("Error retrieving pending payouts: %s\n", err.Error())
		return err
	}
	log.Printf("Found %d pending payouts to reschedule", len(payouts))
	for _, payout := range payouts {
		payoutID := payout.ID
		jobDef := gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(payout.ScheduledFor))
		jt := gocron.NewTask(func() {
			err := lib.KafkaProduceMessage("payouts", utils.WithSuffix(common.PayoutsDueTopic), map[string]any{
				"payout_id": payoutID.String(),
			})
			if err != nil {
				log.Printf("Error on producing message: %s\n", err.Error())
				return
			}
		})
		job, err := sched.NewJob(
			jobDef,
			jt,
		)
		if err != nil {
			log.Printf("Failed to schedule job [%s]. Skipping: %s\n", payoutID.String(), err.Error())
			continue
		}
		log.Printf("Added job to scheduler: payout=%s job=%s\n", payoutID.String(), job.ID().String())
	}

	return nil
}
