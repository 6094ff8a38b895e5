package shipping

import (
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

// AWBStatus is the lifecycle state of a pre-issued shipment code
type AWBStatus string

const (
	// AWBStatusUnused means the code sits in the pool, available
	AWBStatusUnused AWBStatus = "UNUSED"
	// AWBStatusReserved means the code is claimed by a dispatch job
	AWBStatusReserved AWBStatus = "RESERVED"
	// AWBStatusUsed means the code is bound to an order
	AWBStatusUsed AWBStatus = "USED"
)

// AWBCode is a courier shipment code held in the local pool.
// Codes are issued by the courier in batches ahead of time so dispatch
// never blocks on the courier API. The code string itself is the
// primary key: the same code can never enter the pool twice.
type AWBCode struct {
	Code       string     `gorm:"type:varchar(64);primary_key"`
	StoreID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_awb_store_courier_status,priority:1"`
	Courier    string     `gorm:"type:varchar(64);not null;index:idx_awb_store_courier_status,priority:2"`
	Status     AWBStatus  `gorm:"type:varchar(16);not null;default:'UNUSED';index:idx_awb_store_courier_status,priority:3"`
	OrderID    *uuid.UUID `gorm:"type:uuid;index"`
	ReservedAt *time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the database table name
func (AWBCode) TableName() string {
	return "awb_codes"
}

// NewAWBCode creates an unused pool entry
func NewAWBCode(storeID uuid.UUID, courier, code string) (*AWBCode, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shipment code is required")
	}
	if courier == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Courier is required")
	}
	now := time.Now()
	return &AWBCode{
		Code:      code,
		StoreID:   storeID,
		Courier:   courier,
		Status:    AWBStatusUnused,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Consume binds the code to an order. Consuming a code twice for the
// same order is a no-op; rebinding to a different order is rejected.
func (c *AWBCode) Consume(orderID uuid.UUID) error {
	if c.Status == AWBStatusUsed {
		if c.OrderID != nil && *c.OrderID == orderID {
			return nil
		}
		return shared.NewDomainError("INVALID_STATE", "Shipment code is already bound to another order")
	}
	now := time.Now()
	c.Status = AWBStatusUsed
	c.OrderID = &orderID
	c.UsedAt = &now
	c.UpdatedAt = now
	return nil
}

// Release returns a reserved code to the pool
func (c *AWBCode) Release() error {
	if c.Status == AWBStatusUsed {
		return shared.NewDomainError("INVALID_STATE", "Used shipment codes cannot be released")
	}
	c.Status = AWBStatusUnused
	c.ReservedAt = nil
	c.UpdatedAt = time.Now()
	return nil
}

// ReplenishReport summarizes one replenish batch. Duplicates are
// counted, not failed: re-posting an overlapping batch is expected
// when an upstream issue run is retried.
type ReplenishReport struct {
	Requested  int      `json:"requested"`
	Received   int      `json:"received"`
	Added      int      `json:"added"`
	Duplicates []string `json:"duplicates"`
	Failed     []string `json:"failed"`
}

// MaxReplenishBatch caps a single replenish request
const MaxReplenishBatch = 500

// ValidateReplenishBatch checks batch size bounds and in-batch duplicates
func ValidateReplenishBatch(codes []string) error {
	if len(codes) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "At least one shipment code is required")
	}
	if len(codes) > MaxReplenishBatch {
		return shared.NewDomainError("INVALID_INPUT", "Batch exceeds the maximum of 500 shipment codes")
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code == "" {
			return shared.NewDomainError("INVALID_INPUT", "Empty shipment code in batch")
		}
		if _, dup := seen[code]; dup {
			return shared.NewDomainError("INVALID_INPUT", "Batch contains repeated shipment codes")
		}
		seen[code] = struct{}{}
	}
	return nil
}
