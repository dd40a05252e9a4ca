package workflows

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"

	"rental-chat/models"
)

// ReservationWorkflows contains DBOS workflows that durably record
// completed rental requests. Conversations are session-scoped and never
// persisted; these records are the one side effect that outlives a
// session.
type ReservationWorkflows struct {
	db *sql.DB
}

// NewReservationWorkflows creates a new ReservationWorkflows instance.
func NewReservationWorkflows(db *sql.DB) *ReservationWorkflows {
	return &ReservationWorkflows{db: db}
}

// ReservationRecord is a stored reserve request.
type ReservationRecord struct {
	ID                uuid.UUID `json:"id"`
	Location          string    `json:"location"`
	ArrivalTime       string    `json:"arrival_time"`
	VehiclePreference string    `json:"vehicle_preference"`
	Passengers        string    `json:"passengers"`
	CreatedAt         time.Time `json:"created_at"`
}

// ReturnRecord is a stored return request.
type ReturnRecord struct {
	ID            uuid.UUID `json:"id"`
	Location      string    `json:"location"`
	DepartureTime string    `json:"departure_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordReservationWorkflow durably writes a completed reserve request.
// If it fails mid-way it resumes from the last completed step.
func (w *ReservationWorkflows) RecordReservationWorkflow(ctx dbos.DBOSContext, input models.ReserveRequest) (ReservationRecord, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (ReservationRecord, error) {
		id := uuid.New()
		now := time.Now()

		_, err := w.db.ExecContext(stepCtx,
			"INSERT INTO reservations (id, location, arrival_time, vehicle_preference, passengers, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			id, input.Location, input.ArrivalTime, input.VehiclePreference, input.Passengers, now)
		if err != nil {
			return ReservationRecord{}, err
		}

		return ReservationRecord{
			ID:                id,
			Location:          input.Location,
			ArrivalTime:       input.ArrivalTime,
			VehiclePreference: input.VehiclePreference,
			Passengers:        input.Passengers,
			CreatedAt:         now,
		}, nil
	})
}

// RecordReturnWorkflow durably writes a completed return request.
func (w *ReservationWorkflows) RecordReturnWorkflow(ctx dbos.DBOSContext, input models.ReturnRequest) (ReturnRecord, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (ReturnRecord, error) {
		id := uuid.New()
		now := time.Now()

		_, err := w.db.ExecContext(stepCtx,
			"INSERT INTO vehicle_returns (id, location, departure_time, created_at) VALUES ($1, $2, $3, $4)",
			id, input.Location, input.DepartureTime, now)
		if err != nil {
			return ReturnRecord{}, err
		}

		return ReturnRecord{
			ID:            id,
			Location:      input.Location,
			DepartureTime: input.DepartureTime,
			CreatedAt:     now,
		}, nil
	})
}

// DurableActionHandler hands completed domain intents to the reservation
// workflows. Fire-and-forget: the turn is never blocked on the write, and
// failures are only logged.
type DurableActionHandler struct {
	dbosCtx dbos.DBOSContext
	wf      *ReservationWorkflows
}

// NewDurableActionHandler creates an action handler backed by DBOS.
func NewDurableActionHandler(dbosCtx dbos.DBOSContext, wf *ReservationWorkflows) *DurableActionHandler {
	return &DurableActionHandler{dbosCtx: dbosCtx, wf: wf}
}

// Handle records one completed domain intent.
func (h *DurableActionHandler) Handle(intent models.DomainIntent) {
	switch intent.Kind {
	case models.IntentReserve:
		handle, err := dbos.RunWorkflow(h.dbosCtx, h.wf.RecordReservationWorkflow, *intent.Reserve)
		if err != nil {
			log.Printf("Failed to start RecordReservation workflow: %v", err)
			return
		}
		go func() {
			if _, err := handle.GetResult(); err != nil {
				log.Printf("RecordReservation workflow failed: %v", err)
			}
		}()
	case models.IntentReturn:
		handle, err := dbos.RunWorkflow(h.dbosCtx, h.wf.RecordReturnWorkflow, *intent.Return)
		if err != nil {
			log.Printf("Failed to start RecordReturn workflow: %v", err)
			return
		}
		go func() {
			if _, err := handle.GetResult(); err != nil {
				log.Printf("RecordReturn workflow failed: %v", err)
			}
		}()
	}
}
