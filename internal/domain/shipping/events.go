package shipping

import (
	"github.com/oms/backend/internal/domain/shared"
)

// Event type constants
const (
	EventDispatchJobCreated  = "dispatch_job.created"
	EventDispatchJobFinished = "dispatch_job.finished"
)

// DispatchJobCreatedEvent is raised when a dispatch batch is accepted
type DispatchJobCreatedEvent struct {
	shared.BaseDomainEvent
	Courier    string `json:"courier"`
	TotalCount int    `json:"total_count"`
}

// NewDispatchJobCreatedEvent creates a new dispatch job created event
func NewDispatchJobCreatedEvent(job *DispatchJob) *DispatchJobCreatedEvent {
	return &DispatchJobCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDispatchJobCreated, "DispatchJob", job.ID, job.StoreID),
		Courier:         job.Courier,
		TotalCount:      job.TotalCount,
	}
}

// DispatchJobFinishedEvent is raised when all items have settled
type DispatchJobFinishedEvent struct {
	shared.BaseDomainEvent
	Status     DispatchJobStatus `json:"status"`
	DoneCount  int               `json:"done_count"`
	ErrorCount int               `json:"error_count"`
}

// NewDispatchJobFinishedEvent creates a new dispatch job finished event
func NewDispatchJobFinishedEvent(job *DispatchJob) *DispatchJobFinishedEvent {
	return &DispatchJobFinishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventDispatchJobFinished, "DispatchJob", job.ID, job.StoreID),
		Status:          job.Status,
		DoneCount:       job.DoneCount,
		ErrorCount:      job.ErrorCount,
	}
}
