package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// HeatStore owns the heats, lanes and heat_ticket_types tables.
type HeatStore struct {
	db *sqlx.DB
}

const (
	heatsForCompetitionQuery = `
        SELECT h.* FROM heats h
        JOIN workouts w ON w.id = h.workout_id
        WHERE w.competition_id = ?
        ORDER BY h.start_time ASC, h.rowid ASC
    `
	heatTicketTypesForCompetitionQuery = `
        SELECT htt.* FROM heat_ticket_types htt
        JOIN heats h ON h.id = htt.heat_id
        JOIN workouts w ON w.id = h.workout_id
        WHERE w.competition_id = ?
    `
	placedLanesForCompetitionQuery = `
        SELECT l.*, e.ticket_type_id, tt.team_size, e.name AS entry_name FROM lanes l
        JOIN entries e ON e.id = l.entry_id
        JOIN ticket_types tt ON tt.id = e.ticket_type_id
        JOIN heats h ON h.id = l.heat_id
        JOIN workouts w ON w.id = h.workout_id
        WHERE w.competition_id = ?
        ORDER BY l.heat_id, l.number ASC
    `
	heatLoadQuery = `
        SELECT COUNT(l.id) AS entries, COALESCE(SUM(tt.team_size), 0) AS athletes FROM lanes l
        JOIN entries e ON e.id = l.entry_id
        JOIN ticket_types tt ON tt.id = e.ticket_type_id
        WHERE l.heat_id = ?
    `
)

func NewHeatStore(db *sqlx.DB) *HeatStore {
	return &HeatStore{db: db}
}

// DeleteForCompetitionTx removes every lane and heat of the competition's workouts.
func (s *HeatStore) DeleteForCompetitionTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM lanes WHERE heat_id IN (
            SELECT h.id FROM heats h JOIN workouts w ON w.id = h.workout_id WHERE w.competition_id = ?)`, competitionID)
	if err != nil {
		return fmt.Errorf("delete lanes: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM heat_ticket_types WHERE heat_id IN (
            SELECT h.id FROM heats h JOIN workouts w ON w.id = h.workout_id WHERE w.competition_id = ?)`, competitionID)
	if err != nil {
		return fmt.Errorf("delete heat ticket types: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM heats WHERE workout_id IN (
            SELECT id FROM workouts WHERE competition_id = ?)`, competitionID)
	if err != nil {
		return fmt.Errorf("delete heats: %w", err)
	}
	return nil
}

func (s *HeatStore) CreateHeatsTx(ctx context.Context, tx *sqlx.Tx, heats []heat.Heat) error {
	if len(heats) == 0 {
		return nil
	}
	rows := make([]heat.Heat, len(heats))
	for i, h := range heats {
		h.StartTime = h.StartTime.UTC()
		rows[i] = h
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO heats (id, workout_id, start_time, max_limit_per_heat)
        VALUES (:id, :workout_id, :start_time, :max_limit_per_heat)`, rows)
	return err
}

func (s *HeatStore) CreateHeatTicketTypesTx(ctx context.Context, tx *sqlx.Tx, allowed []heat.HeatTicketType) error {
	if len(allowed) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO heat_ticket_types (heat_id, ticket_type_id)
        VALUES (:heat_id, :ticket_type_id)`, allowed)
	return err
}

func (s *HeatStore) CreateLanesTx(ctx context.Context, tx *sqlx.Tx, lanes []heat.Lane) error {
	if len(lanes) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO lanes (id, heat_id, entry_id, number)
        VALUES (:id, :heat_id, :entry_id, :number)`, lanes)
	return err
}

func (s *HeatStore) GetHeatTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.Heat, error) {
	var h heat.Heat
	err := tx.GetContext(ctx, &h, "SELECT * FROM heats WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *HeatStore) GetHeats(ctx context.Context, competitionID uuid.UUID) ([]heat.Heat, error) {
	var heats []heat.Heat
	err := s.db.SelectContext(ctx, &heats, heatsForCompetitionQuery, competitionID)
	return heats, err
}

func (s *HeatStore) GetHeatsTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) ([]heat.Heat, error) {
	var heats []heat.Heat
	err := tx.SelectContext(ctx, &heats, heatsForCompetitionQuery, competitionID)
	return heats, err
}

func (s *HeatStore) GetWorkoutHeatsTx(ctx context.Context, tx *sqlx.Tx, workoutID uuid.UUID) ([]heat.Heat, error) {
	var heats []heat.Heat
	err := tx.SelectContext(ctx, &heats, "SELECT * FROM heats WHERE workout_id = ? ORDER BY start_time ASC, rowid ASC", workoutID)
	return heats, err
}

func (s *HeatStore) GetHeatTicketTypes(ctx context.Context, competitionID uuid.UUID) ([]heat.HeatTicketType, error) {
	var allowed []heat.HeatTicketType
	err := s.db.SelectContext(ctx, &allowed, heatTicketTypesForCompetitionQuery, competitionID)
	return allowed, err
}

func (s *HeatStore) GetHeatTicketTypesTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) ([]heat.HeatTicketType, error) {
	var allowed []heat.HeatTicketType
	err := tx.SelectContext(ctx, &allowed, heatTicketTypesForCompetitionQuery, competitionID)
	return allowed, err
}

// IsAllowedTx reports whether the ticket type is in the heat's allowed set.
func (s *HeatStore) IsAllowedTx(ctx context.Context, tx *sqlx.Tx, heatID, ticketTypeID uuid.UUID) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM heat_ticket_types WHERE heat_id = ? AND ticket_type_id = ?", heatID, ticketTypeID)
	return n > 0, err
}

func (s *HeatStore) GetPlacedLanes(ctx context.Context, competitionID uuid.UUID) ([]heat.PlacedLane, error) {
	var lanes []heat.PlacedLane
	err := s.db.SelectContext(ctx, &lanes, placedLanesForCompetitionQuery, competitionID)
	return lanes, err
}

func (s *HeatStore) GetPlacedLanesTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) ([]heat.PlacedLane, error) {
	var lanes []heat.PlacedLane
	err := tx.SelectContext(ctx, &lanes, placedLanesForCompetitionQuery, competitionID)
	return lanes, err
}

// HeatLoadTx counts the entries and athletes currently placed in a heat.
func (s *HeatStore) HeatLoadTx(ctx context.Context, tx *sqlx.Tx, heatID uuid.UUID) (heat.Load, error) {
	var load heat.Load
	err := tx.GetContext(ctx, &load, heatLoadQuery, heatID)
	return load, err
}

func (s *HeatStore) GetLaneTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.Lane, error) {
	var lane heat.Lane
	err := tx.GetContext(ctx, &lane, "SELECT * FROM lanes WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &lane, nil
}

func (s *HeatStore) GetHeatLanesTx(ctx context.Context, tx *sqlx.Tx, heatID uuid.UUID) ([]heat.Lane, error) {
	var lanes []heat.Lane
	err := tx.SelectContext(ctx, &lanes, "SELECT * FROM lanes WHERE heat_id = ? ORDER BY number ASC", heatID)
	return lanes, err
}

func (s *HeatStore) GetEntryLanesTx(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID) ([]heat.Lane, error) {
	var lanes []heat.Lane
	err := tx.SelectContext(ctx, &lanes, "SELECT * FROM lanes WHERE entry_id = ?", entryID)
	return lanes, err
}

// EntryInWorkoutTx reports whether the entry already holds a lane in any heat of the workout.
func (s *HeatStore) EntryInWorkoutTx(ctx context.Context, tx *sqlx.Tx, entryID, workoutID uuid.UUID) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM lanes l JOIN heats h ON h.id = l.heat_id
        WHERE l.entry_id = ? AND h.workout_id = ?`, entryID, workoutID)
	return n > 0, err
}

func (s *HeatStore) UpdateStartTimesTx(ctx context.Context, tx *sqlx.Tx, heats []heat.Heat) error {
	for _, h := range heats {
		if _, err := tx.ExecContext(ctx, "UPDATE heats SET start_time = ? WHERE id = ?", h.StartTime.UTC(), h.ID); err != nil {
			return fmt.Errorf("update start time of heat %s: %w", h.ID, err)
		}
	}
	return nil
}

func (s *HeatStore) UpdateLimitTx(ctx context.Context, tx *sqlx.Tx, heatID uuid.UUID, limit int) error {
	_, err := tx.ExecContext(ctx, "UPDATE heats SET max_limit_per_heat = ? WHERE id = ?", limit, heatID)
	return err
}

func (s *HeatStore) MoveLaneTx(ctx context.Context, tx *sqlx.Tx, laneID, heatID uuid.UUID, number int) error {
	_, err := tx.ExecContext(ctx, "UPDATE lanes SET heat_id = ?, number = ? WHERE id = ?", heatID, number, laneID)
	return err
}

func (s *HeatStore) DeleteLaneTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM lanes WHERE id = ?", id)
	return err
}

// RenumberLanesTx numbers the given lanes 1..N in slice order. Numbers are first moved out
// of the way so the (heat_id, number) unique constraint holds at every step.
func (s *HeatStore) RenumberLanesTx(ctx context.Context, tx *sqlx.Tx, heatID uuid.UUID, laneIDs []uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, "UPDATE lanes SET number = -number WHERE heat_id = ?", heatID); err != nil {
		return fmt.Errorf("park lane numbers: %w", err)
	}
	for i, id := range laneIDs {
		if _, err := tx.ExecContext(ctx, "UPDATE lanes SET number = ? WHERE id = ? AND heat_id = ?", i+1, id, heatID); err != nil {
			return fmt.Errorf("renumber lane %s: %w", id, err)
		}
	}
	return nil
}

// CompactLanesTx closes gaps in a heat's numbering while keeping relative order.
func (s *HeatStore) CompactLanesTx(ctx context.Context, tx *sqlx.Tx, heatID uuid.UUID) error {
	lanes, err := s.GetHeatLanesTx(ctx, tx, heatID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(lanes))
	for i, l := range lanes {
		ids[i] = l.ID
	}
	return s.RenumberLanesTx(ctx, tx, heatID, ids)
}
