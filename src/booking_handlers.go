package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fundi/src/common"
	"fundi/src/config"
	"fundi/src/db"
	"fundi/src/middlewares"
	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			clientID := ctx.GetUint("id")
			scheduledDate, err := time.Parse(config.TIME_PARSE_FORMAT, body.ScheduledDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var windowEnd *time.Time
			if body.WindowEnd != nil {
				we, err := time.Parse(config.TIME_PARSE_FORMAT, *body.WindowEnd)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				windowEnd = &we
			}

			db := db.GetDb()
			var booking models.Booking
			err = db.Transaction(func(tx *gorm.DB) error {
				svc, err := utils.ResolveServiceRef(tx, types.ServiceType(body.ServiceType), body.ServiceID)
				if err != nil {
					return err
				}
				providersNeeded := body.ProvidersNeeded
				if providersNeeded == 0 {
					providersNeeded = 1
				}
				booking = models.Booking{
					BookingNumber:   utils.GenerateBookingNumber(time.Now()),
					ClientID:        clientID,
					ServiceID:       body.ServiceID,
					ServiceType:     types.ServiceType(body.ServiceType),
					Category:        svc.Category,
					Status:          types.BOOKING_PENDING,
					ScheduledDate:   scheduledDate,
					WindowEnd:       windowEnd,
					Location:        body.Location,
					Latitude:        body.Latitude,
					Longitude:       body.Longitude,
					ProvidersNeeded: providersNeeded,
					BaseAmount:      svc.Price,
					TotalAmount:     svc.Price,
					Currency:        svc.Currency,
				}
				if err := tx.Create(&booking).Error; err != nil {
					return err
				}
				if body.DiscountCode != nil {
					discount, err := common.RedeemDiscount(tx, *body.DiscountCode, clientID, &booking.ID, booking.BaseAmount, booking.Category)
					if err != nil {
						return err
					}
					if err := tx.
						Model(&models.Booking{}).
						Where("id = ?", booking.ID).
						Updates(map[string]any{
							"discount_code":   *body.DiscountCode,
							"discount_amount": discount,
							"total_amount":    utils.RoundKES(booking.BaseAmount - discount),
						}).
						Error; err != nil {
						return err
					}
					booking.DiscountAmount = discount
					booking.TotalAmount = utils.RoundKES(booking.BaseAmount - discount)
				}
				return tx.Create(&models.BookingTimelineEntry{
					BookingID: booking.ID,
					Status:    string(types.BOOKING_PENDING),
					Actor:     ctx.GetString("email"),
					Note:      body.AdditionalNotes,
				}).Error
			})
			if err != nil {
				log.Printf("[bookings] Error creating booking: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			clientID := ctx.GetUint("id")
			db := db.GetDb()
			bookings, err := utils.GetOwnBookings(db, clientID)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var booking models.Booking
			ss := db.Session(&gorm.Session{PrepareStmt: true})
			if err := ss.
				Model(&models.Booking{}).
				Where("id = ?", params.ID).
				Preload("Client").
				Preload("Providers").
				Preload("Providers.Provider").
				Preload("Timeline").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		GET("/bookings/:id/timeline", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var entries []models.BookingTimelineEntry
			if err := db.
				Model(&models.BookingTimelineEntry{}).
				Where("booking_id = ?", params.ID).
				Order("created_at asc").
				Find(&entries).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
		}).
		PUT("/bookings/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.TransitionBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.ChangeBookingStatus(db, params.ID, types.BookingStatus(body.Status), ctx.GetString("email"), body.Note)
			if err != nil {
				if errors.Is(err, types.ErrInvalidTransition) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"status": body.Status})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CancelBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.CancelBooking(db, params.ID, body.Reason, ctx.GetString("email"))
			if err != nil {
				if errors.Is(err, types.ErrInvalidTransition) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		POST("/bookings/:id/messages", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body struct {
				Message string `json:"message" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			if err := common.AppendCommunication(db, params.ID, ctx.GetString("email"), body.Message); err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusCreated)
		}).
		GET("/provider/bookings", middlewares.RequireProvider, func(ctx *gin.Context) {
			userID := ctx.GetUint("id")
			db := db.GetDb()
			var provider models.Provider
			if err := db.
				Model(&models.Provider{}).
				Where("user_id = ?", userID).
				First(&provider).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			bookings, err := utils.GetProviderBookings(db, provider.ID)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		})
	return g
}
