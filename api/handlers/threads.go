package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type ThreadReader interface {
	ThreadEmails(ctx context.Context, threadID string) (*models.EmailThread, []*models.Email, error)
}

// GetThreadEmails returns a thread with its imported messages
func GetThreadEmails(threads ThreadReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "GetThreadEmails")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		thread, emails, err := threads.ThreadEmails(ctx, c.Param("id"))
		if err != nil {
			respondError(c, span, err)
			return
		}
		if emails == nil {
			emails = []*models.Email{}
		}

		c.JSON(http.StatusOK, dto.ThreadEmailsResponse{Thread: thread, Emails: emails})
	}
}
