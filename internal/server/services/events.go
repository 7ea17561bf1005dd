package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eventpass/internal/server/storage"
	"github.com/google/uuid"
)

const (
	MsgEventNotFound        = "Event not found"
	MsgEventNotOpen         = "Event is not open for registration"
	MsgEventFull            = "Event is full"
	MsgTimeSlotNotFound     = "Time slot not found"
	MsgTimeSlotFull         = "Time slot is full"
	MsgTimeSlotUnavailable  = "Time slot is not available"
	MsgRegistrationNotFound = "Registration not found"
	MsgNotEventOwner        = "You are not authorized to modify this event"
	msgMaxBelowCurrent      = "Max participants cannot be lower than current participants"
)

// EventInput is the full set of caller-editable event attributes.
type EventInput struct {
	Title           string              `json:"title"`
	Description     *string             `json:"description,omitempty"`
	PictureURL      *string             `json:"pictureUrl,omitempty"`
	Address         string              `json:"address"`
	Latitude        *float64            `json:"latitude,omitempty"`
	Longitude       *float64            `json:"longitude,omitempty"`
	StartTime       time.Time           `json:"startTime"`
	EndTime         time.Time           `json:"endTime"`
	Status          *models.EventStatus `json:"status,omitempty"`
	MaxParticipants *int                `json:"maxParticipants,omitempty"`
}

func (in *EventInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Address = strings.TrimSpace(in.Address)
	in.Description = trimmed(in.Description)
	in.PictureURL = trimmed(in.PictureURL)

	switch {
	case in.Title == "":
		return badRequest("Title is required")
	case in.Address == "":
		return badRequest("Address is required")
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return badRequest("Start time and end time are required")
	case !in.EndTime.After(in.StartTime):
		return badRequest("End time must be after start time")
	case in.MaxParticipants != nil && *in.MaxParticipants < 1:
		return badRequest("Max participants must be at least 1")
	case in.Status != nil && !in.Status.Valid():
		return badRequest("Invalid event status")
	case in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90):
		return badRequest("Latitude must be between -90 and 90")
	case in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180):
		return badRequest("Longitude must be between -180 and 180")
	}
	return nil
}

// TimeSlotInput describes a new time slot.
type TimeSlotInput struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	MaxCapacity int       `json:"maxCapacity"`
}

// RegistrationInput is a registration request. Registrants need not have an
// account.
type RegistrationInput struct {
	EventID         string  `json:"eventId"`
	TimeSlotID      *string `json:"timeSlotId,omitempty"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	NumberOfGuests  int     `json:"numberOfGuests"`
	AdditionalNotes *string `json:"additionalNotes,omitempty"`
}

func (in *RegistrationInput) validate() error {
	in.EventID = strings.TrimSpace(in.EventID)
	in.TimeSlotID = trimmed(in.TimeSlotID)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = models.NormalizeEmail(in.Email)
	in.PhoneNumber = trimmed(in.PhoneNumber)
	in.AdditionalNotes = trimmed(in.AdditionalNotes)

	switch {
	case in.EventID == "":
		return badRequest("Event id is required")
	case in.FirstName == "" || in.LastName == "":
		return badRequest("First name and last name are required")
	case !validEmail(in.Email):
		return badRequest("Invalid email address")
	case in.NumberOfGuests < 0:
		return badRequest("Number of guests cannot be negative")
	}
	return nil
}

// EventService manages events, their time slots, and registrations.
// Capacity counters are only changed inside a transaction with conditional
// updates, so concurrent registrations cannot overbook.
type EventService struct {
	repomanager repomanager.RepositoryManager
	pictures    PictureStore
	logger      logging.Logger
	now         func() time.Time
}

// NewEventService wires an EventService. pictures may be nil.
func NewEventService(m repomanager.RepositoryManager, pictures PictureStore, logger logging.Logger) *EventService {
	return &EventService{
		repomanager: m,
		pictures:    pictures,
		logger:      logger.With("module", "events"),
		now:         nowUTC,
	}
}

func eventNotFound() error { return common.NewError(common.KindNotFound, MsgEventNotFound) }

func notOwner() error { return common.NewError(common.KindForbidden, MsgNotEventOwner) }

func (s *EventService) getEvent(ctx context.Context, db dbx.DBTX, id string) (*models.Event, error) {
	e, err := s.repomanager.Events(db).GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, eventNotFound()
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventService) getVisibleEvent(ctx context.Context, db dbx.DBTX, viewer Caller, id string) (*models.Event, error) {
	e, err := s.getEvent(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(e) {
		return nil, eventNotFound()
	}
	return e, nil
}

// getOwnedEvent loads an event and checks callerID created it.
func (s *EventService) getOwnedEvent(ctx context.Context, db dbx.DBTX, callerID, id string) (*models.Event, error) {
	e, err := s.getEvent(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if e.CreatedBy != callerID {
		return nil, notOwner()
	}
	return e, nil
}

// CreateEvent stores a new event owned by callerID. Status defaults to draft.
func (s *EventService) CreateEvent(ctx context.Context, callerID string, in EventInput) (e *models.Event, err error) {
	ctx, span := startSpan(ctx, "EventService.CreateEvent")
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	e = &models.Event{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		PictureURL:      in.PictureURL,
		Address:         in.Address,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		StartTime:       in.StartTime.UTC(),
		EndTime:         in.EndTime.UTC(),
		Status:          models.EventStatusDraft,
		MaxParticipants: in.MaxParticipants,
		CreatedBy:       callerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Status != nil {
		e.Status = *in.Status
	}

	if err := s.repomanager.Events(s.repomanager.DB()).Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info(ctx, "event created", "event_id", e.ID, "user_id", callerID)
	return e, nil
}

// ListEvents returns events matching filter that viewer may see. Drafts are
// only listed for their owner and for admins.
func (s *EventService) ListEvents(ctx context.Context, viewer Caller, filter models.EventFilter) (list []*models.Event, err error) {
	ctx, span := startSpan(ctx, "EventService.ListEvents")
	defer func() { endSpan(span, err) }()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, badRequest("Invalid event status")
	}
	all, err := s.repomanager.Events(s.repomanager.DB()).List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	list = make([]*models.Event, 0, len(all))
	for _, e := range all {
		if viewer.CanSee(e) {
			list = append(list, e)
		}
	}
	return list, nil
}

// GetEvent returns one event with its time slots. A draft the viewer may not
// see is reported as not found.
func (s *EventService) GetEvent(ctx context.Context, viewer Caller, id string) (e *models.Event, err error) {
	ctx, span := startSpan(ctx, "EventService.GetEvent")
	defer func() { endSpan(span, err) }()

	db := s.repomanager.DB()
	e, err = s.getVisibleEvent(ctx, db, viewer, id)
	if err != nil {
		return nil, err
	}
	e.TimeSlots, err = s.repomanager.TimeSlots(db).ListByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return e, nil
}

// MyEvents returns the events callerID created.
func (s *EventService) MyEvents(ctx context.Context, callerID string) ([]*models.Event, error) {
	return s.ListEvents(ctx, Caller{UserID: callerID, Role: models.RoleUser}, models.EventFilter{CreatedBy: callerID})
}

// UpdateEvent replaces the editable attributes of an event the caller owns.
// The participant counter is left untouched.
func (s *EventService) UpdateEvent(ctx context.Context, callerID, id string, in EventInput) (e *models.Event, err error) {
	ctx, span := startSpan(ctx, "EventService.UpdateEvent")
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	err = s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := s.getOwnedEvent(ctx, tx, callerID, id)
		if err != nil {
			return err
		}
		if in.MaxParticipants != nil && *in.MaxParticipants < existing.CurrentParticipants {
			return badRequest(msgMaxBelowCurrent)
		}

		existing.Title = in.Title
		existing.Description = in.Description
		existing.PictureURL = in.PictureURL
		existing.Address = in.Address
		existing.Latitude = in.Latitude
		existing.Longitude = in.Longitude
		existing.StartTime = in.StartTime.UTC()
		existing.EndTime = in.EndTime.UTC()
		existing.MaxParticipants = in.MaxParticipants
		if in.Status != nil {
			existing.Status = *in.Status
		}
		existing.UpdatedAt = s.now()

		if err := s.repomanager.Events(tx).Update(ctx, existing); err != nil {
			switch {
			case errors.Is(err, common.ErrorConflict):
				return badRequest(msgMaxBelowCurrent)
			case isNotFound(err):
				return eventNotFound()
			}
			return fmt.Errorf("update event: %w", err)
		}
		e = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEvent removes an event the caller owns, with its slots and
// registrations.
func (s *EventService) DeleteEvent(ctx context.Context, callerID, id string) (err error) {
	ctx, span := startSpan(ctx, "EventService.DeleteEvent")
	defer func() { endSpan(span, err) }()

	return s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.getOwnedEvent(ctx, tx, callerID, id); err != nil {
			return err
		}
		if err := s.repomanager.Events(tx).Delete(ctx, id); err != nil {
			if isNotFound(err) {
				return eventNotFound()
			}
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

// CreateTimeSlot adds an empty, available slot to an event the caller owns.
func (s *EventService) CreateTimeSlot(ctx context.Context, callerID, eventID string, in TimeSlotInput) (ts *models.EventTimeSlot, err error) {
	ctx, span := startSpan(ctx, "EventService.CreateTimeSlot")
	defer func() { endSpan(span, err) }()

	switch {
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return nil, badRequest("Start time and end time are required")
	case !in.EndTime.After(in.StartTime):
		return nil, badRequest("End time must be after start time")
	case in.MaxCapacity < 1:
		return nil, badRequest("Max capacity must be at least 1")
	}

	err = s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.getOwnedEvent(ctx, tx, callerID, eventID); err != nil {
			return err
		}
		now := s.now()
		slot := &models.EventTimeSlot{
			ID:          uuid.NewString(),
			EventID:     eventID,
			StartTime:   in.StartTime.UTC(),
			EndTime:     in.EndTime.UTC(),
			MaxCapacity: in.MaxCapacity,
			Status:      models.TimeSlotStatusAvailable,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repomanager.TimeSlots(tx).Create(ctx, slot); err != nil {
			return fmt.Errorf("create time slot: %w", err)
		}
		ts = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// RegisterForEvent admits a registrant (and guests) to a published event.
// caller is nil for anonymous registrations.
//
// Checks run in this order: event exists, event is published, event has
// room, time slot belongs to the event and has room. The event and slot
// counters are then advanced with conditional updates and the registration
// row is inserted, all in one transaction.
func (s *EventService) RegisterForEvent(ctx context.Context, caller *Caller, in RegistrationInput) (reg *models.EventRegistration, err error) {
	ctx, span := startSpan(ctx, "EventService.RegisterForEvent")
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	seats := 1 + in.NumberOfGuests

	err = s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.getEvent(ctx, tx, in.EventID)
		if err != nil {
			return err
		}
		if e.Status != models.EventStatusPublished {
			return badRequest(MsgEventNotOpen)
		}
		if e.IsFull() {
			return badRequest(MsgEventFull)
		}

		if in.TimeSlotID != nil {
			slot, err := s.repomanager.TimeSlots(tx).GetByID(ctx, *in.TimeSlotID)
			if err != nil && !isNotFound(err) {
				return fmt.Errorf("get time slot: %w", err)
			}
			if slot == nil || slot.EventID != e.ID {
				return common.NewError(common.KindNotFound, MsgTimeSlotNotFound)
			}
			if slot.Status == models.TimeSlotStatusCancelled {
				return badRequest(MsgTimeSlotUnavailable)
			}
			if slot.IsFull() || slot.Status == models.TimeSlotStatusFull {
				return badRequest(MsgTimeSlotFull)
			}
		}

		if err := s.acquire(ctx, tx, e.ID, in.TimeSlotID, seats); err != nil {
			return err
		}

		now := s.now()
		r := &models.EventRegistration{
			ID:                 uuid.NewString(),
			EventID:            e.ID,
			TimeSlotID:         in.TimeSlotID,
			RegistrationStatus: models.RegistrationStatusPending,
			FirstName:          in.FirstName,
			LastName:           in.LastName,
			Email:              in.Email,
			PhoneNumber:        in.PhoneNumber,
			NumberOfGuests:     in.NumberOfGuests,
			AdditionalNotes:    in.AdditionalNotes,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if caller != nil && caller.UserID != "" {
			uid := caller.UserID
			r.UserID = &uid
		}
		if err := s.repomanager.Registrations(tx).Create(ctx, r); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "registration created", "registration_id", reg.ID, "event_id", reg.EventID, "seats", seats)
	return reg, nil
}

// acquire advances the event counter and, when slotID is set, the slot
// counter by seats. A rejected conditional update means the capacity was
// taken first.
func (s *EventService) acquire(ctx context.Context, tx dbx.DBTX, eventID string, slotID *string, seats int) error {
	if err := s.repomanager.Events(tx).ReserveSeats(ctx, eventID, seats); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return badRequest(MsgEventFull)
		}
		return fmt.Errorf("reserve event seats: %w", err)
	}
	if slotID == nil {
		return nil
	}
	if err := s.repomanager.TimeSlots(tx).Reserve(ctx, *slotID, seats); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return badRequest(MsgTimeSlotFull)
		}
		return fmt.Errorf("reserve time slot: %w", err)
	}
	return nil
}

// release gives seats back to the event and slot. A slot that no longer
// exists is skipped.
func (s *EventService) release(ctx context.Context, tx dbx.DBTX, eventID string, slotID *string, seats int) error {
	if err := s.repomanager.Events(tx).ReleaseSeats(ctx, eventID, seats); err != nil {
		return fmt.Errorf("release event seats: %w", err)
	}
	if slotID == nil {
		return nil
	}
	if err := s.repomanager.TimeSlots(tx).Release(ctx, *slotID, seats); err != nil && !isNotFound(err) {
		return fmt.Errorf("release time slot: %w", err)
	}
	return nil
}

// UpdateRegistrationStatus transitions a registration. Moving into
// cancelled releases its seats; moving out of cancelled takes them again
// and fails if they are no longer available.
func (s *EventService) UpdateRegistrationStatus(ctx context.Context, id string, status models.RegistrationStatus) (reg *models.EventRegistration, err error) {
	ctx, span := startSpan(ctx, "EventService.UpdateRegistrationStatus")
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return nil, badRequest("Invalid registration status")
	}

	err = s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		regs := s.repomanager.Registrations(tx)
		r, err := regs.GetByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return common.NewError(common.KindNotFound, MsgRegistrationNotFound)
			}
			return fmt.Errorf("get registration: %w", err)
		}
		if r.RegistrationStatus == status {
			reg = r
			return nil
		}

		held, holds := r.RegistrationStatus.HoldsCapacity(), status.HoldsCapacity()
		switch {
		case held && !holds:
			if err := s.release(ctx, tx, r.EventID, r.TimeSlotID, r.Seats()); err != nil {
				return err
			}
		case !held && holds:
			if err := s.acquire(ctx, tx, r.EventID, r.TimeSlotID, r.Seats()); err != nil {
				return err
			}
		}

		now := s.now()
		if err := regs.UpdateStatus(ctx, id, r.RegistrationStatus, status, now); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return common.NewError(common.KindConflict, "Registration was modified concurrently")
			}
			return fmt.Errorf("update registration status: %w", err)
		}
		r.RegistrationStatus = status
		r.UpdatedAt = now
		reg = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// MyRegistrations returns registrations made while signed in as callerID.
func (s *EventService) MyRegistrations(ctx context.Context, callerID string) (list []*models.EventRegistration, err error) {
	ctx, span := startSpan(ctx, "EventService.MyRegistrations")
	defer func() { endSpan(span, err) }()

	list, err = s.repomanager.Registrations(s.repomanager.DB()).ListByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return list, nil
}

// EventRegistrations lists registrations for an event. Only the event owner
// and admins may see them.
func (s *EventService) EventRegistrations(ctx context.Context, caller Caller, eventID string) (list []*models.EventRegistration, err error) {
	ctx, span := startSpan(ctx, "EventService.EventRegistrations")
	defer func() { endSpan(span, err) }()

	db := s.repomanager.DB()
	e, err := s.getEvent(ctx, db, eventID)
	if err != nil {
		return nil, err
	}
	if e.CreatedBy != caller.UserID && !caller.IsAdmin() {
		return nil, common.NewError(common.KindForbidden, "You are not authorized to view these registrations")
	}
	list, err = s.repomanager.Registrations(db).ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return list, nil
}

// EventPictureUploadURL presigns an upload for an event's picture and
// records the object key as the event's picture reference.
func (s *EventService) EventPictureUploadURL(ctx context.Context, callerID, eventID string) (up *storage.Upload, err error) {
	ctx, span := startSpan(ctx, "EventService.EventPictureUploadURL")
	defer func() { endSpan(span, err) }()

	if s.pictures == nil {
		return nil, errPicturesDisabled
	}

	err = s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.getOwnedEvent(ctx, tx, callerID, eventID)
		if err != nil {
			return err
		}
		upload, err := s.pictures.UploadURL(ctx, "events/"+eventID)
		if err != nil {
			return fmt.Errorf("presign upload: %w", err)
		}
		e.PictureURL = &upload.Key
		e.UpdatedAt = s.now()
		if err := s.repomanager.Events(tx).Update(ctx, e); err != nil {
			return fmt.Errorf("update event picture: %w", err)
		}
		up = upload
		return nil
	})
	if err != nil {
		return nil, err
	}
	return up, nil
}

// EventPictureDownloadURL returns a fetchable URL for an event's picture.
func (s *EventService) EventPictureDownloadURL(ctx context.Context, viewer Caller, eventID string) (d *storage.Download, err error) {
	ctx, span := startSpan(ctx, "EventService.EventPictureDownloadURL")
	defer func() { endSpan(span, err) }()

	e, err := s.getVisibleEvent(ctx, s.repomanager.DB(), viewer, eventID)
	if err != nil {
		return nil, err
	}
	return pictureDownload(ctx, s.pictures, e.PictureURL, "events/"+eventID)
}
