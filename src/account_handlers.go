package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"fundi/src/db"
	"fundi/src/lib"
	"fundi/src/lib/mailer"
	"fundi/src/models"
	"fundi/src/types"
	"fundi/src/utils"

	"github.com/gin-gonic/gin"
)

const verificationCodeTTL = 5 * time.Minute

func accountHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/account/phone/request-code", func(ctx *gin.Context) {
			phone, err := utils.FormatPhone(ctx.GetString("phone"))
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			code := fmt.Sprintf("%06d", rand.Intn(1000000))
			store := lib.NewVerificationCodeStore(lib.GetRedisClient(), verificationCodeTTL)
			if err := store.Put(ctx, phone, code); err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if err := mailer.NewMailerMessage(&lib.SendMailInput{
				From:     os.Getenv("EMAIL_SENDER"),
				FromName: "Fundi",
				To:       []string{ctx.GetString("email")},
				Subject:  "Your verification code",
				Body:     fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code),
			}); err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusAccepted)
		}).
		POST("/account/phone/verify", func(ctx *gin.Context) {
			var body types.VerifyPhoneRequestBody
			if err := ctx.BindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			phone, err := utils.FormatPhone(ctx.GetString("phone"))
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			store := lib.NewVerificationCodeStore(lib.GetRedisClient(), verificationCodeTTL)
			ok, err := store.Check(ctx, phone, body.Code)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !ok {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
				return
			}
			db := db.GetDb()
			if err := db.
				Model(&models.User{}).
				Where("id = ?", ctx.GetUint("id")).
				Update("phone_verified", true).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
