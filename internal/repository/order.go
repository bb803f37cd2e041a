package repository

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

// GetByOrderNumbers returns the orders matching any of the numbers exactly, most recent first
func (r *orderRepository) GetByOrderNumbers(ctx context.Context, orderNumbers []string) ([]*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.GetByOrderNumbers")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("order_numbers", strings.Join(orderNumbers, ","))

	if len(orderNumbers) == 0 {
		return nil, nil
	}

	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("order_number IN ?", orderNumbers).
		Order("order_date DESC").
		Find(&orders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return orders, nil
}

// ListByCustomerEmail returns the orders placed with the email, most recent first
func (r *orderRepository) ListByCustomerEmail(ctx context.Context, email string) ([]*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.ListByCustomerEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("customer_email", email)

	if email == "" {
		return nil, nil
	}

	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("LOWER(customer_email) = ?", strings.ToLower(email)).
		Order("order_date DESC").
		Find(&orders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return orders, nil
}
