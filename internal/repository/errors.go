package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrInvalidInput = errors.New("invalid input parameters")
)

// isDuplicateKey reports unique constraint violations, translated or raw
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}
