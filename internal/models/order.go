package models

import (
	"time"
)

// Order is a read model filled by the commerce sync. This service never writes it
// outside of migrations and tests.
type Order struct {
	ID            string     `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OrderNumber   string     `gorm:"column:order_number;type:varchar(100);index;not null" json:"orderNumber"`
	CustomerEmail string     `gorm:"column:customer_email;type:varchar(255);index" json:"customerEmail"`
	CustomerName  string     `gorm:"column:customer_name;type:varchar(255)" json:"customerName"`
	Status        string     `gorm:"column:status;type:varchar(50)" json:"status"`
	TotalAmount   float64    `gorm:"column:total_amount" json:"totalAmount"`
	Currency      string     `gorm:"column:currency;type:varchar(10)" json:"currency"`
	OrderDate     time.Time  `gorm:"column:order_date;type:timestamp;index;not null" json:"orderDate"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt     *time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}
