package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type MembershipLevel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	CreatedAt time.Time
}

// UserMembership is the grant row owned by the membership system.
// Only the membership repository writes it.
type UserMembership struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;index;not null"`
	LevelID   uint   `gorm:"index;not null"`
	Status    string `gorm:"size:16;index;not null"` // active, inactive
	StartDate time.Time
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID                string `gorm:"primaryKey;size:64;not null"` // product sku
	Name              string `gorm:"size:128"`
	Price             int32  `gorm:"not null"`
	Currency          string `gorm:"size:8;not null"`
	Type              string `gorm:"size:32;index;not null"` // ONE_TIME, SUBSCRIPTION
	MembershipLevelID uint   `gorm:"index"`                  // 0 when the product grants no level
}

type Order struct {
	OrderID       string            `gorm:"primaryKey;size:64;not null"`
	Status        OrderStatus       `gorm:"size:32;index;not null"`
	BuyerID       string            `gorm:"size:64;index;not null"`
	PaymentMethod string            `gorm:"size:64"` // gateway identifier
	Total         decimal.Decimal   `gorm:"type:decimal(12,2)"`
	Metadata      datatypes.JSONMap
	Items         []*OrderItem      `gorm:"foreignKey:OrderID;references:OrderID"`
	CreatedAt     time.Time         `gorm:"index"` // order date
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → order.order_id
	OrderID string `gorm:"size:64;index;not null"`
	// FK → product.id
	ProductID string `gorm:"index;not null"`
	Quantity  int32  `gorm:"not null"`

	CreatedAt time.Time
}

type Subscription struct {
	SubscriptionID string             `gorm:"primaryKey;size:64;not null"`
	CustomerID     string             `gorm:"size:64;index;not null"`
	ProductID      string             `gorm:"size:64;index"`
	ParentOrderID  string             `gorm:"size:64;index"`
	Status         SubscriptionStatus `gorm:"size:32;index;not null"`
	PaymentMethod  string             `gorm:"size:64"` // gateway identifier
	Metadata       datatypes.JSONMap
	StartedAt      *time.Time
	EndedAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScheduledTask is one entry of the delayed-task queue.
type ScheduledTask struct {
	ID             string     `gorm:"primaryKey;size:36;not null"`
	Kind           TaskKind   `gorm:"size:32;index;not null"`
	Status         TaskStatus `gorm:"size:16;index;not null"`
	OrderID        string     `gorm:"size:64;index"`
	SubscriptionID string     `gorm:"size:64;index"`
	UserID         string     `gorm:"size:64;not null"`
	RunAt          time.Time  `gorm:"index;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
