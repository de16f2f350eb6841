package main

import (
	"errors"
	"net/http"

	"fundi/src/common"
	"fundi/src/db"
	"fundi/src/types"

	"github.com/gin-gonic/gin"
)

func assignmentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings/:id/candidates", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			matching, other, err := common.ListCandidates(db, params.ID)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"matching": matching,
				"other":    other,
			})
		}).
		POST("/bookings/:id/providers", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.AssignProviderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := common.AssignProvider(db, params.ID, body.ProviderID, body.ServiceID, body.Notes, ctx.GetString("email"))
			if err != nil {
				switch {
				case errors.Is(err, types.ErrSlotsFull),
					errors.Is(err, types.ErrAlreadyAssigned),
					errors.Is(err, types.ErrScheduleConflict):
					ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				default:
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.Status(http.StatusCreated)
		}).
		DELETE("/bookings/:id/providers", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UnassignProviderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			if err := common.UnassignProvider(db, params.ID, body.ProviderID, ctx.GetString("email")); err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		})
	return g
}
