package models

import "time"

type RegistrationStatus string

const (
	RegistrationStatusPending    RegistrationStatus = "pending"
	RegistrationStatusConfirmed  RegistrationStatus = "confirmed"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationStatusPending, RegistrationStatusConfirmed, RegistrationStatusCancelled, RegistrationStatusWaitlisted:
		return true
	}
	return false
}

// HoldsCapacity reports whether a registration in this status counts
// against event and time-slot capacity.
func (s RegistrationStatus) HoldsCapacity() bool {
	return s != RegistrationStatusCancelled
}

// EventRegistration captures registrant contact details; UserID is set only
// when the registrant was authenticated.
type EventRegistration struct {
	ID                 string             `json:"id"`
	EventID            string             `json:"eventId"`
	UserID             *string            `json:"userId,omitempty"`
	TimeSlotID         *string            `json:"timeSlotId,omitempty"`
	RegistrationStatus RegistrationStatus `json:"registrationStatus"`
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	Email              string             `json:"email"`
	PhoneNumber        *string            `json:"phoneNumber,omitempty"`
	NumberOfGuests     int                `json:"numberOfGuests"`
	AdditionalNotes    *string            `json:"additionalNotes,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Seats is the capacity this registration consumes: the registrant plus guests.
func (r *EventRegistration) Seats() int {
	return 1 + r.NumberOfGuests
}
