package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
)

var _ repository.SafetySettingsRepository = (*PostgresSettingsRepo)(nil)

type PostgresSettingsRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSettingsRepo(pool *pgxpool.Pool) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{pool: pool}
}

const settingsColumns = `
user_id, is_safe_mode, hide_from_search, allow_messages, safe_exit_enabled, safe_exit_url,
hidden_chat_ids, blocked_user_ids, emergency_contacts, panic_button_enabled,
activity_log_enabled, disguised_app_icon, notifications_safe, created_at, updated_at`

func (r *PostgresSettingsRepo) Get(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	return r.get(ctx, tx, userID, false)
}

// GetForUpdate locks the row until tx ends. Without a tx it degrades to Get.
func (r *PostgresSettingsRepo) GetForUpdate(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	return r.get(ctx, tx, userID, tx != nil)
}

func (r *PostgresSettingsRepo) get(ctx context.Context, tx repository.Tx, userID string, lock bool) (*model.SafetySettings, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if err := r.materialize(ctx, exec, userID); err != nil {
		return nil, err
	}
	s, err := selectSettings(ctx, exec, userID, lock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// Lookup never inserts: an unknown user reads as unsaved defaults.
func (r *PostgresSettingsRepo) Lookup(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	s, err := selectSettings(ctx, exec, userID, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewDefaultSafetySettings(userID), nil
	}
	return s, err
}

// selectSettings passes pgx.ErrNoRows through unwrapped.
func selectSettings(ctx context.Context, exec executor, userID string, lock bool) (*model.SafetySettings, error) {
	q := `SELECT ` + settingsColumns + ` FROM safety_settings WHERE user_id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	s, err := scanSettings(exec.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("select settings: %w", err)
	}
	return s, nil
}

// materialize inserts the default row; a concurrent insert wins silently.
func (r *PostgresSettingsRepo) materialize(ctx context.Context, exec executor, userID string) error {
	d := model.NewDefaultSafetySettings(userID)
	contacts, err := json.Marshal(d.EmergencyContacts)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO safety_settings (` + settingsColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (user_id) DO NOTHING;`
	_, err = exec.Exec(ctx, q,
		d.UserID, d.IsSafeMode, d.HideFromSearch, d.AllowMessages, d.SafeExitEnabled, d.SafeExitURL,
		d.HiddenChatIDs, d.BlockedUserIDs, contacts, d.PanicButton,
		d.ActivityLog, d.DisguisedAppIcon, d.NotificationsSafe, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("materialize settings: %w", err)
	}
	return nil
}

func (r *PostgresSettingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.SafetySettings) error {
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	contacts, err := json.Marshal(s.EmergencyContacts)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO safety_settings (` + settingsColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (user_id) DO UPDATE SET
  is_safe_mode=$2, hide_from_search=$3, allow_messages=$4, safe_exit_enabled=$5, safe_exit_url=$6,
  hidden_chat_ids=$7, blocked_user_ids=$8, emergency_contacts=$9, panic_button_enabled=$10,
  activity_log_enabled=$11, disguised_app_icon=$12, notifications_safe=$13, updated_at=$15;`
	_, err = exec.Exec(ctx, q,
		s.UserID, s.IsSafeMode, s.HideFromSearch, s.AllowMessages, s.SafeExitEnabled, s.SafeExitURL,
		nonNil(s.HiddenChatIDs), nonNil(s.BlockedUserIDs), contacts, s.PanicButton,
		s.ActivityLog, s.DisguisedAppIcon, s.NotificationsSafe, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func scanSettings(row pgx.Row) (*model.SafetySettings, error) {
	var (
		s        model.SafetySettings
		contacts []byte
	)
	if err := row.Scan(
		&s.UserID, &s.IsSafeMode, &s.HideFromSearch, &s.AllowMessages, &s.SafeExitEnabled, &s.SafeExitURL,
		&s.HiddenChatIDs, &s.BlockedUserIDs, &contacts, &s.PanicButton,
		&s.ActivityLog, &s.DisguisedAppIcon, &s.NotificationsSafe, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contacts, &s.EmergencyContacts); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	s.HiddenChatIDs = nonNil(s.HiddenChatIDs)
	s.BlockedUserIDs = nonNil(s.BlockedUserIDs)
	if s.EmergencyContacts == nil {
		s.EmergencyContacts = []model.EmergencyContact{}
	}
	return &s, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
