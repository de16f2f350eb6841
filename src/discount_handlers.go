package main

import (
	"errors"
	"net/http"

	"fundi/src/common"
	"fundi/src/db"
	"fundi/src/models"
	"fundi/src/types"

	"github.com/gin-gonic/gin"
)

func discountHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/discounts/validate", func(ctx *gin.Context) {
			var body types.ValidateDiscountRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			dc, discount, err := common.ValidateDiscount(db, body.Code, body.OrderAmount, body.Category)
			if err != nil {
				if errors.Is(err, common.ErrDiscountNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"code":     dc.Code,
				"type":     dc.Type,
				"discount": discount,
				"total":    body.OrderAmount - discount,
			})
		})
	return g
}

func discountAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/discounts", func(ctx *gin.Context) {
			var body types.CreateDiscountCodeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			dc, err := common.CreateDiscountCode(db, &body)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": dc})
		}).
		GET("/discounts", func(ctx *gin.Context) {
			db := db.GetDb()
			var codes []models.DiscountCode
			if err := db.
				Model(&models.DiscountCode{}).
				Order("created_at DESC").
				Limit(100).
				Find(&codes).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": codes, "count": len(codes)})
		}).
		PATCH("/discounts/:id/deactivate", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			res := db.
				Model(&models.DiscountCode{}).
				Where("id = ?", params.ID).
				Update("active", false)
			if res.Error != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
