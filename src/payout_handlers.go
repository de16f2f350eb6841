package main

import (
	"errors"
	"net/http"

	"fundi/src/common"
	"fundi/src/db"
	"fundi/src/lib"
	"fundi/src/middlewares"
	"fundi/src/models"
	"fundi/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func payoutHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/provider/payouts", middlewares.RequireProvider, func(ctx *gin.Context) {
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
			var payouts []models.Payout
			if err := db.
				Model(&models.Payout{}).
				Where("provider_id = ?", provider.ID).
				Order("created_at DESC").
				Limit(100).
				Find(&payouts).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payouts, "count": len(payouts)})
		})
	return g
}

func payoutAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/payouts", func(ctx *gin.Context) {
			status := ctx.Query("status")
			db := db.GetDb()
			q := db.Model(&models.Payout{})
			if status != "" {
				q = q.Where("status = ?", status)
			}
			var payouts []models.Payout
			if err := q.
				Preload("Provider").
				Order("scheduled_for asc").
				Limit(100).
				Find(&payouts).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payouts, "count": len(payouts)})
		}).
		GET("/payouts/:id", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var payout models.Payout
			if err := db.
				Model(&models.Payout{}).
				Where("id = ?", uuid.MustParse(params.ID)).
				Preload("Provider").
				Preload("Provider.User").
				First(&payout).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payout})
		}).
		POST("/payouts/:id/process", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.ProcessPayout(db, lib.GetRedisClient(), lib.GetDarajaClient(), uuid.MustParse(params.ID))
			if err != nil {
				switch {
				case errors.Is(err, types.ErrAlreadyProcessing):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				case errors.Is(err, types.ErrInvalidState):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				case errors.Is(err, types.ErrGatewayTimeout):
					ctx.JSON(http.StatusAccepted, gin.H{"status": "awaiting gateway callback"})
				default:
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/payouts/:id/retry", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.RetryPayoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			if err := common.RetryPayout(db, uuid.MustParse(params.ID), body.Reason); err != nil {
				if errors.Is(err, types.ErrInvalidState) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/payouts/:id/cancel", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CancelPayoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.CancelPayout(db, lib.GetRedisClient(), uuid.MustParse(params.ID), body.Reason)
			if err != nil {
				switch {
				case errors.Is(err, types.ErrAlreadyProcessing), errors.Is(err, types.ErrInvalidState):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				default:
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
