package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/tracing"
)

// SyncMailbox is the manual refresh. It answers 429 when the mailbox was refreshed
// too recently and 409 while another sync holds it.
func SyncMailbox(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SyncMailbox")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		// the run keeps going when the client hangs up, the checkpoint still advances
		summary, err := syncService.RequestRefresh(context.WithoutCancel(ctx), c.Param("id"))
		if err != nil {
			// an aborted run still reports what it imported
			if summary != nil {
				c.JSON(errorStatus(err), gin.H{"error": err.Error(), "summary": summary})
				return
			}
			respondError(c, span, err)
			return
		}

		c.JSON(http.StatusAccepted, summary)
	}
}

// Backfill imports the most recent messages of one folder
func Backfill(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "Backfill")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request dto.BackfillRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if request.Limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
			return
		}
		span.LogFields(tracingLog.String("folder", request.Folder), tracingLog.Int("limit", request.Limit), tracingLog.Bool("force", request.Force))

		summary, err := syncService.Backfill(context.WithoutCancel(ctx), c.Param("id"), request.Folder, request.Limit, request.Force, enum.SyncTriggerManual)
		if err != nil {
			if summary != nil {
				c.JSON(errorStatus(err), gin.H{"error": err.Error(), "summary": summary})
				return
			}
			respondError(c, span, err)
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}
