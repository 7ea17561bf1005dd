package models

import "time"

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

// Event is owned by CreatedBy. CurrentParticipants changes only through
// registration admission and release; MaxParticipants nil means unlimited.
type Event struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         *string         `json:"description,omitempty"`
	PictureURL          *string         `json:"pictureUrl,omitempty"`
	Address             string          `json:"address"`
	Latitude            *float64        `json:"latitude,omitempty"`
	Longitude           *float64        `json:"longitude,omitempty"`
	StartTime           time.Time       `json:"startTime"`
	EndTime             time.Time       `json:"endTime"`
	Status              EventStatus     `json:"status"`
	MaxParticipants     *int            `json:"maxParticipants,omitempty"`
	CurrentParticipants int             `json:"currentParticipants"`
	CreatedBy           string          `json:"createdBy"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	TimeSlots           []EventTimeSlot `json:"timeSlots,omitempty"`
}

// IsFull reports whether no further participant can be admitted.
func (e *Event) IsFull() bool {
	return e.MaxParticipants != nil && e.CurrentParticipants >= *e.MaxParticipants
}

// HasRoomFor reports whether n more participants fit.
func (e *Event) HasRoomFor(n int) bool {
	return e.MaxParticipants == nil || e.CurrentParticipants+n <= *e.MaxParticipants
}

// EventFilter narrows ListEvents. Zero values are ignored.
type EventFilter struct {
	Status    EventStatus
	CreatedBy string
}

type TimeSlotStatus string

const (
	TimeSlotStatusAvailable TimeSlotStatus = "available"
	TimeSlotStatusReserved  TimeSlotStatus = "reserved"
	TimeSlotStatusFull      TimeSlotStatus = "full"
	TimeSlotStatusCancelled TimeSlotStatus = "cancelled"
)

// EventTimeSlot mirrors event capacity at a finer granularity.
type EventTimeSlot struct {
	ID              string         `json:"id"`
	EventID         string         `json:"eventId"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	MaxCapacity     int            `json:"maxCapacity"`
	CurrentCapacity int            `json:"currentCapacity"`
	Status          TimeSlotStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (s *EventTimeSlot) IsFull() bool {
	return s.CurrentCapacity >= s.MaxCapacity
}
