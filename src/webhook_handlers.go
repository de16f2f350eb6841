package main

import (
	"errors"
	"io"
	"log"
	"net/http"

	"fundi/src/common"
	"fundi/src/db"
	"fundi/src/lib"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// mpesaWebhookRoutes registers the daraja result callbacks. Both endpoints
// acknowledge with daraja's expected envelope even on processing errors;
// the gateway retries on non-200 and all processing here is idempotent, so
// a retry of an applied callback is harmless.
func mpesaWebhookRoutes(g *gin.Engine) *gin.RouterGroup {
	webhooks := g.Group("/webhooks/mpesa")
	webhooks.
		POST("/stk", func(ctx *gin.Context) {
			payload, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "bad payload"})
				return
			}
			cb := lib.NormalizeSTKCallback(payload)
			if cb.CheckoutRequestID == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "missing CheckoutRequestID"})
				return
			}
			db := db.GetDb()
			if _, err := common.RecordInboundPayment(db, cb); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("[webhooks] No escrow for checkout %s\n", cb.CheckoutRequestID)
					ctx.JSON(http.StatusNotFound, gin.H{"ResultCode": 1, "ResultDesc": "unknown checkout"})
					return
				}
				log.Printf("[webhooks] Error recording payment for %s: %s\n", cb.CheckoutRequestID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"ResultCode": 1, "ResultDesc": "processing error"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/b2c", func(ctx *gin.Context) {
			payload, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "bad payload"})
				return
			}
			cb := lib.NormalizeB2CCallback(payload)
			if cb.TransferID == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "missing ConversationID"})
				return
			}
			db := db.GetDb()
			if err := common.FinalizeTransfer(db, cb); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("[webhooks] No payout for transfer %s\n", cb.TransferID)
					ctx.JSON(http.StatusNotFound, gin.H{"ResultCode": 1, "ResultDesc": "unknown transfer"})
					return
				}
				log.Printf("[webhooks] Error finalizing transfer %s: %s\n", cb.TransferID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"ResultCode": 1, "ResultDesc": "processing error"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/b2c/timeout", func(ctx *gin.Context) {
			payload, _ := io.ReadAll(ctx.Request.Body)
			log.Printf("[webhooks] B2C queue timeout: %s\n", string(payload))
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/status", func(ctx *gin.Context) {
			payload, _ := io.ReadAll(ctx.Request.Body)
			log.Printf("[webhooks] Transaction status result: %s\n", string(payload))
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/status/timeout", func(ctx *gin.Context) {
			payload, _ := io.ReadAll(ctx.Request.Body)
			log.Printf("[webhooks] Transaction status queue timeout: %s\n", string(payload))
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		})
	return webhooks
}
