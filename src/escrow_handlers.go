package main

import (
	"errors"
	"net/http"

	"fundi/src/common"
	"fundi/src/db"
	"fundi/src/lib"
	"fundi/src/models"
	"fundi/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func escrowHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/charge", func(ctx *gin.Context) {
			var body types.InitiateChargeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			escrow, err := common.CreateEscrowForBooking(db, lib.GetDarajaClient(), body.BookingID, body.Phone, ctx.GetString("email"))
			if err != nil {
				switch {
				case errors.Is(err, types.ErrInvalidState):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				case errors.Is(err, types.ErrGatewayTimeout), errors.Is(err, types.ErrGatewayRejected):
					ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				default:
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": escrow})
		}).
		GET("/payments/:id", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var escrow models.EscrowPayment
			if err := db.
				Model(&models.EscrowPayment{}).
				Where("id = ?", uuid.MustParse(params.ID)).
				Preload("Events").
				First(&escrow).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": escrow})
		}).
		PUT("/payments/:id/dispute", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.DisputeEscrowRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.OpenDispute(db, uuid.MustParse(params.ID), body.Reason, ctx.GetString("email"))
			if err != nil {
				if errors.Is(err, types.ErrInvalidState) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/payments/:id/release", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.ReleaseEscrowRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.ReleaseEscrow(db, uuid.MustParse(params.ID), body, ctx.GetString("email"))
			if err != nil {
				if errors.Is(err, types.ErrInvalidState) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}

func escrowAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		PUT("/payments/:id/resolve", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.ResolveEscrowRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.ResolveDispute(db, uuid.MustParse(params.ID), body.Resolution, body.Outcome, ctx.GetString("email"))
			if err != nil {
				if errors.Is(err, types.ErrInvalidState) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PATCH("/payments/:id/amount", func(ctx *gin.Context) {
			var params types.PayoutURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateEscrowAmountRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if body.Amount == nil && body.CommissionRate == nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
				return
			}
			db := db.GetDb()
			escrow, err := common.UpdateEscrowAmount(db, uuid.MustParse(params.ID), body.Amount, body.CommissionRate, ctx.GetString("email"))
			if err != nil {
				if errors.Is(err, types.ErrInvalidState) {
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": escrow})
		})
	return g
}
