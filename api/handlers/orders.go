package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/ordermatch"
)

type OrderMatcher interface {
	MatchOrder(ctx context.Context, subject, bodyText, senderEmail string) (*ordermatch.Result, error)
}

// MatchOrder runs the order matcher on arbitrary text, for support tooling
func MatchOrder(matcher OrderMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MatchOrder")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request dto.OrderMatchRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if request.Subject == "" && request.Text == "" && request.SenderEmail == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subject, text or senderEmail required"})
			return
		}

		result, err := matcher.MatchOrder(ctx, request.Subject, request.Text, request.SenderEmail)
		if err != nil {
			respondError(c, span, err)
			return
		}
		if result.Candidates == nil {
			result.Candidates = []string{}
		}
		c.JSON(http.StatusOK, result)
	}
}
