package dto

import (
	"github.com/customeros/mailsync/internal/models"
)

type ThreadEmailsResponse struct {
	Thread *models.EmailThread `json:"thread"`
	Emails []*models.Email     `json:"emails"`
}
