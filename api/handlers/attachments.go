package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/attachments"
)

type AttachmentContentGetter interface {
	GetContent(ctx context.Context, attachmentID string) (*attachments.Content, error)
}

type AttachmentLister interface {
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
}

// ListEmailAttachments returns attachment metadata of an email
func ListEmailAttachments(lister AttachmentLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListEmailAttachments")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		list, err := lister.ListByEmail(ctx, c.Param("id"))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// DownloadAttachment streams the attachment bytes, fetching them from the mail
// server on first access
func DownloadAttachment(attachmentService AttachmentContentGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DownloadAttachment")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		content, err := attachmentService.GetContent(ctx, c.Param("id"))
		if err != nil {
			respondError(c, span, err)
			return
		}

		contentType := content.Attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		disposition := "attachment"
		if content.Attachment.IsInline {
			disposition = "inline"
		}
		if content.Attachment.Filename != "" {
			c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, content.Attachment.Filename))
		}
		c.Data(http.StatusOK, contentType, content.Data)
	}
}
