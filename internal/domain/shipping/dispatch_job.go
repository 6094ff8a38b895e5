package shipping

import (
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

// DispatchJobStatus is the lifecycle state of a dispatch job
type DispatchJobStatus string

const (
	DispatchJobPending   DispatchJobStatus = "PENDING"
	DispatchJobRunning   DispatchJobStatus = "RUNNING"
	DispatchJobCompleted DispatchJobStatus = "COMPLETED"
	// DispatchJobPartial means the run finished but some items errored
	DispatchJobPartial   DispatchJobStatus = "COMPLETED_WITH_ERRORS"
	DispatchJobCancelled DispatchJobStatus = "CANCELLED"
)

// DispatchItemStatus is the per-order state within a job
type DispatchItemStatus string

const (
	DispatchItemPending    DispatchItemStatus = "PENDING"
	DispatchItemProcessing DispatchItemStatus = "PROCESSING"
	DispatchItemDone       DispatchItemStatus = "DONE"
	DispatchItemError      DispatchItemStatus = "ERROR"
)

// DispatchJob is a persisted batch of orders being handed to a courier.
// The job and its items survive restarts: pending items are re-enqueued
// on startup, and failed items can be retried without touching the ones
// that succeeded.
type DispatchJob struct {
	shared.StoreAggregateRoot

	Courier       string            `gorm:"type:varchar(64);not null"`
	PickupAddress string            `gorm:"type:text;not null"`
	ShippingMode  string            `gorm:"type:varchar(32);not null"`
	Status        DispatchJobStatus `gorm:"type:varchar(32);not null;default:'PENDING';index"`

	TotalCount int `gorm:"not null"`
	DoneCount  int `gorm:"not null;default:0"`
	ErrorCount int `gorm:"not null;default:0"`

	StartedAt  *time.Time
	FinishedAt *time.Time

	Items []DispatchJobItem `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name
func (DispatchJob) TableName() string {
	return "dispatch_jobs"
}

// DispatchJobItem is one order within a dispatch job, with its
// pre-claimed shipment code
type DispatchJobItem struct {
	ID        uuid.UUID          `gorm:"type:uuid;primary_key"`
	JobID     uuid.UUID          `gorm:"type:uuid;not null;index"`
	OrderID   uuid.UUID          `gorm:"type:uuid;not null;index"`
	AWBCode   string             `gorm:"type:varchar(64);not null"`
	Status    DispatchItemStatus `gorm:"type:varchar(16);not null;default:'PENDING'"`
	Attempts  int                `gorm:"not null;default:0"`
	LastError string             `gorm:"type:text"`
	CreatedAt time.Time          `gorm:"not null"`
	UpdatedAt time.Time          `gorm:"not null"`
}

// TableName returns the database table name
func (DispatchJobItem) TableName() string {
	return "dispatch_job_items"
}

// ItemSpec pairs an order with its claimed shipment code at job creation
type ItemSpec struct {
	OrderID uuid.UUID
	AWBCode string
}

// NewDispatchJob creates a pending job with one item per order
func NewDispatchJob(storeID uuid.UUID, courier, pickupAddress, shippingMode string, specs []ItemSpec) (*DispatchJob, error) {
	if courier == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Courier is required")
	}
	if pickupAddress == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Pickup address is required")
	}
	if len(specs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one order is required")
	}

	job := &DispatchJob{
		StoreAggregateRoot: shared.NewStoreAggregateRoot(storeID),
		Courier:            courier,
		PickupAddress:      pickupAddress,
		ShippingMode:       shippingMode,
		Status:             DispatchJobPending,
		TotalCount:         len(specs),
	}

	now := time.Now()
	seen := make(map[uuid.UUID]struct{}, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec.OrderID]; dup {
			return nil, shared.NewDomainError("INVALID_INPUT", "Order listed twice in dispatch request")
		}
		seen[spec.OrderID] = struct{}{}
		job.Items = append(job.Items, DispatchJobItem{
			ID:        uuid.New(),
			JobID:     job.ID,
			OrderID:   spec.OrderID,
			AWBCode:   spec.AWBCode,
			Status:    DispatchItemPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	job.AddDomainEvent(NewDispatchJobCreatedEvent(job))
	return job, nil
}

// Start marks the job as running
func (j *DispatchJob) Start() {
	if j.Status != DispatchJobPending {
		return
	}
	now := time.Now()
	j.Status = DispatchJobRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkItemDone records a successful booking for one item
func (j *DispatchJob) MarkItemDone(itemID uuid.UUID) {
	for i := range j.Items {
		if j.Items[i].ID != itemID {
			continue
		}
		if j.Items[i].Status == DispatchItemDone {
			return
		}
		if j.Items[i].Status == DispatchItemError {
			j.ErrorCount--
		}
		j.Items[i].Status = DispatchItemDone
		j.Items[i].LastError = ""
		j.Items[i].UpdatedAt = time.Now()
		j.DoneCount++
		return
	}
}

// MarkItemError records a failed booking attempt for one item
func (j *DispatchJob) MarkItemError(itemID uuid.UUID, cause string) {
	for i := range j.Items {
		if j.Items[i].ID != itemID {
			continue
		}
		if j.Items[i].Status != DispatchItemError {
			j.ErrorCount++
		}
		j.Items[i].Status = DispatchItemError
		j.Items[i].LastError = cause
		j.Items[i].Attempts++
		j.Items[i].UpdatedAt = time.Now()
		return
	}
}

// RecalculateCounters rebuilds the done and error counts from item
// states. Used when items were settled through separate writes.
func (j *DispatchJob) RecalculateCounters() {
	done, failed := 0, 0
	for _, item := range j.Items {
		switch item.Status {
		case DispatchItemDone:
			done++
		case DispatchItemError:
			failed++
		}
	}
	j.DoneCount = done
	j.ErrorCount = failed
}

// Finish settles the job status once no items remain pending or processing
func (j *DispatchJob) Finish() {
	for _, item := range j.Items {
		if item.Status == DispatchItemPending || item.Status == DispatchItemProcessing {
			return
		}
	}
	now := time.Now()
	if j.ErrorCount > 0 {
		j.Status = DispatchJobPartial
	} else {
		j.Status = DispatchJobCompleted
	}
	j.FinishedAt = &now
	j.UpdatedAt = now
	j.AddDomainEvent(NewDispatchJobFinishedEvent(j))
}

// FailedItems returns the items eligible for retry
func (j *DispatchJob) FailedItems() []DispatchJobItem {
	var failed []DispatchJobItem
	for _, item := range j.Items {
		if item.Status == DispatchItemError {
			failed = append(failed, item)
		}
	}
	return failed
}

// PrepareRetry moves failed items back to pending and reopens the job.
// Successful items are untouched.
func (j *DispatchJob) PrepareRetry() error {
	if j.Status == DispatchJobCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cancelled jobs cannot be retried")
	}
	failed := j.FailedItems()
	if len(failed) == 0 {
		return shared.NewDomainError("INVALID_STATE", "Job has no failed items to retry")
	}
	now := time.Now()
	for i := range j.Items {
		if j.Items[i].Status == DispatchItemError {
			j.Items[i].Status = DispatchItemPending
			j.Items[i].UpdatedAt = now
		}
	}
	j.ErrorCount = 0
	j.Status = DispatchJobRunning
	j.FinishedAt = nil
	j.UpdatedAt = now
	return nil
}

// Cancel aborts a job that has not started processing
func (j *DispatchJob) Cancel() error {
	if j.Status != DispatchJobPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending jobs can be cancelled")
	}
	now := time.Now()
	j.Status = DispatchJobCancelled
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// ClaimedCodes returns the shipment codes held by items that never
// completed, for release back to the pool on cancellation
func (j *DispatchJob) ClaimedCodes() []string {
	codes := make([]string, 0, len(j.Items))
	for _, item := range j.Items {
		if item.Status != DispatchItemDone {
			codes = append(codes, item.AWBCode)
		}
	}
	return codes
}
