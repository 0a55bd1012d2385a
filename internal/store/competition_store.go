package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CompetitionStore reads the records owned by the surrounding CRUD system. The Create
// methods exist for seeding and tests; scheduling never calls them.
type CompetitionStore struct {
	db *sqlx.DB
}

func NewCompetitionStore(db *sqlx.DB) *CompetitionStore {
	return &CompetitionStore{db: db}
}

func (s *CompetitionStore) CreateCompetition(ctx context.Context, tx *sqlx.Tx, competition *heat.Competition) error {
	c := *competition
	c.StartTime = c.StartTime.UTC()
	_, err := tx.NamedExecContext(ctx, `INSERT INTO competitions (id, name, start_time, timezone)
        VALUES (:id, :name, :start_time, :timezone)`, c)
	return err
}

func (s *CompetitionStore) CreateWorkouts(ctx context.Context, tx *sqlx.Tx, workouts []heat.Workout) error {
	if len(workouts) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO workouts (id, competition_id, name, created_at)
        VALUES (:id, :competition_id, :name, :created_at)`, workouts)
	return err
}

func (s *CompetitionStore) CreateTicketTypes(ctx context.Context, tx *sqlx.Tx, ticketTypes []heat.TicketType) error {
	if len(ticketTypes) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO ticket_types (id, competition_id, name, team_size, is_volunteer, allow_heat_selection)
        VALUES (:id, :competition_id, :name, :team_size, :is_volunteer, :allow_heat_selection)`, ticketTypes)
	return err
}

func (s *CompetitionStore) CreateEntries(ctx context.Context, tx *sqlx.Tx, entries []heat.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO entries (id, competition_id, ticket_type_id, name, created_at)
        VALUES (:id, :competition_id, :ticket_type_id, :name, :created_at)`, entries)
	return err
}

func (s *CompetitionStore) CreateScoreSetting(ctx context.Context, tx *sqlx.Tx, setting *heat.ScoreSetting) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO score_settings (id, competition_id, heats_every_x_minutes, max_limit_per_heat,
            heat_limit_type, one_ticket_per_heat, ticket_type_order_ids, total_heats_per_workout, first_heat_start_time, lanes)
        VALUES (:id, :competition_id, :heats_every_x_minutes, :max_limit_per_heat,
            :heat_limit_type, :one_ticket_per_heat, :ticket_type_order_ids, :total_heats_per_workout, :first_heat_start_time, :lanes)`, setting)
	return err
}

func (s *CompetitionStore) UpdateScoreSettingTx(ctx context.Context, tx *sqlx.Tx, setting *heat.ScoreSetting) error {
	res, err := tx.NamedExecContext(ctx, `UPDATE score_settings SET
        heats_every_x_minutes = :heats_every_x_minutes,
        max_limit_per_heat = :max_limit_per_heat,
        heat_limit_type = :heat_limit_type,
        one_ticket_per_heat = :one_ticket_per_heat,
        ticket_type_order_ids = :ticket_type_order_ids,
        total_heats_per_workout = :total_heats_per_workout,
        first_heat_start_time = :first_heat_start_time,
        lanes = :lanes
        WHERE id = :id`, setting)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("score setting %s: %d rows updated", setting.ID, n)
	}
	return nil
}

func (s *CompetitionStore) GetCompetition(ctx context.Context, id uuid.UUID) (*heat.Competition, error) {
	var competition heat.Competition
	err := s.db.GetContext(ctx, &competition, "SELECT * FROM competitions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &competition, nil
}

func (s *CompetitionStore) GetCompetitionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.Competition, error) {
	var competition heat.Competition
	err := tx.GetContext(ctx, &competition, "SELECT * FROM competitions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &competition, nil
}

func (s *CompetitionStore) GetScoreSetting(ctx context.Context, competitionID uuid.UUID) (*heat.ScoreSetting, error) {
	var setting heat.ScoreSetting
	err := s.db.GetContext(ctx, &setting, "SELECT * FROM score_settings WHERE competition_id = ?", competitionID)
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *CompetitionStore) GetScoreSettingTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) (*heat.ScoreSetting, error) {
	var setting heat.ScoreSetting
	err := tx.GetContext(ctx, &setting, "SELECT * FROM score_settings WHERE competition_id = ?", competitionID)
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *CompetitionStore) GetWorkoutsTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) ([]heat.Workout, error) {
	var workouts []heat.Workout
	err := tx.SelectContext(ctx, &workouts, "SELECT * FROM workouts WHERE competition_id = ? ORDER BY created_at ASC, id ASC", competitionID)
	return workouts, err
}

func (s *CompetitionStore) GetWorkouts(ctx context.Context, competitionID uuid.UUID) ([]heat.Workout, error) {
	var workouts []heat.Workout
	err := s.db.SelectContext(ctx, &workouts, "SELECT * FROM workouts WHERE competition_id = ? ORDER BY created_at ASC, id ASC", competitionID)
	return workouts, err
}

func (s *CompetitionStore) GetTicketTypesTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) ([]heat.TicketType, error) {
	var ticketTypes []heat.TicketType
	err := tx.SelectContext(ctx, &ticketTypes, "SELECT * FROM ticket_types WHERE competition_id = ? ORDER BY rowid ASC", competitionID)
	return ticketTypes, err
}

func (s *CompetitionStore) GetTicketTypeTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.TicketType, error) {
	var ticketType heat.TicketType
	err := tx.GetContext(ctx, &ticketType, "SELECT * FROM ticket_types WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &ticketType, nil
}

// GetEntriesTx returns entries in arrival order, which is also queue order for placement.
func (s *CompetitionStore) GetEntriesTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) ([]heat.Entry, error) {
	var entries []heat.Entry
	err := tx.SelectContext(ctx, &entries, "SELECT * FROM entries WHERE competition_id = ? ORDER BY created_at ASC, rowid ASC", competitionID)
	return entries, err
}

func (s *CompetitionStore) GetEntryTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.Entry, error) {
	var entry heat.Entry
	err := tx.GetContext(ctx, &entry, "SELECT * FROM entries WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *CompetitionStore) CountEntriesByTicketTypeTx(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		TicketTypeID uuid.UUID `db:"ticket_type_id"`
		Count        int       `db:"count"`
	}
	err := tx.SelectContext(ctx, &rows, `SELECT ticket_type_id, COUNT(*) AS count FROM entries
        WHERE competition_id = ? GROUP BY ticket_type_id`, competitionID)
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		counts[r.TicketTypeID] = r.Count
	}
	return counts, nil
}

func (s *CompetitionStore) GetWorkoutTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.Workout, error) {
	var workout heat.Workout
	err := tx.GetContext(ctx, &workout, "SELECT * FROM workouts WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &workout, nil
}
