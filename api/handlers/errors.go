package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	mailsyncErrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/imap"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, mailsyncErrors.ErrMailboxNotFound),
		errors.Is(err, mailsyncErrors.ErrThreadNotFound),
		errors.Is(err, mailsyncErrors.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, mailsyncErrors.ErrSyncInProgress),
		errors.Is(err, mailsyncErrors.ErrMailboxExists):
		return http.StatusConflict
	case errors.Is(err, mailsyncErrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, mailsyncErrors.ErrMissingCredentials):
		return http.StatusBadRequest
	case imap.IsConnectionError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, span opentracing.Span, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		tracing.TraceErr(span, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
