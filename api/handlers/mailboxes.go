package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apiErrors "github.com/customeros/mailsync/api/errors"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// ListMailboxes returns all configured mailboxes
func ListMailboxes(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListMailboxes")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		mailboxes, err := syncService.ListMailboxes(ctx)
		if err != nil {
			respondError(c, span, err)
			return
		}
		if mailboxes == nil {
			mailboxes = []*models.Mailbox{}
		}
		c.JSON(http.StatusOK, mailboxes)
	}
}

// AddMailbox validates and stores a new mailbox
func AddMailbox(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AddMailbox")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request dto.AddMailboxRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if validation := validateAddMailbox(request); validation.HasErrors() {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "fields": validation.Fields()})
			return
		}

		mailbox := &models.Mailbox{
			EmailAddress: request.EmailAddress,
			DisplayName:  request.DisplayName,
			Provider:     request.Provider,
			ImapServer:   request.ImapServer,
			ImapPort:     request.ImapPort,
			ImapUsername: request.ImapUsername,
			ImapPassword: request.ImapPassword,
			ImapSecurity: request.ImapSecurity,
			Folders:      request.Folders,
			SyncEnabled:  request.SyncEnabled == nil || *request.SyncEnabled,
		}
		if err := syncService.AddMailbox(ctx, mailbox); err != nil {
			respondError(c, span, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "mailbox added", "id": mailbox.ID})
	}
}

func validateAddMailbox(request dto.AddMailboxRequest) *apiErrors.MultiErrors {
	validation := apiErrors.NewMultiErrors()
	if request.ImapPort <= 0 || request.ImapPort > 65535 {
		validation.Add("imapPort", "must be between 1 and 65535", nil)
	}
	switch request.ImapSecurity {
	case "", enum.EmailSecurityNone, enum.EmailSecurityTLS, enum.EmailSecurityStartTLS:
	default:
		validation.Add("imapSecurity", "must be one of none, tls, startTLS", nil)
	}
	switch request.Provider {
	case "", enum.EmailGeneric, enum.EmailGoogleWorkspace, enum.EmailOutlook:
	default:
		validation.Add("provider", "unknown provider", nil)
	}
	return validation
}

// RemoveMailbox deletes a mailbox and its checkpoints
func RemoveMailbox(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RemoveMailbox")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		if err := syncService.RemoveMailbox(ctx, id); err != nil {
			respondError(c, span, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "mailbox removed", "id": id})
	}
}

// MailboxStatus returns connection state and per folder checkpoints of one mailbox
func MailboxStatus(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxStatus")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status, err := syncService.MailboxStatus(ctx, c.Param("id"))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// ListSyncRuns returns the latest sync runs of a mailbox, newest first
func ListSyncRuns(syncService interfaces.MailboxSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListSyncRuns")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}

		runs, err := syncService.RecentRuns(ctx, c.Param("id"), limit)
		if err != nil {
			respondError(c, span, err)
			return
		}
		if runs == nil {
			runs = []*models.SyncRun{}
		}
		c.JSON(http.StatusOK, runs)
	}
}
