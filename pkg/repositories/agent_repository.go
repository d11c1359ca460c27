package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/database"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// AgentRepository provides data access for data agents and their environments.
// Profiles are stored as JSONB; secrets never reach this table, only the vault key.
type AgentRepository interface {
	CreateDataAgent(ctx context.Context, agent *models.DataAgent) error
	// GetDataAgent returns apperrors.ErrNotFound when the agent does not exist.
	GetDataAgent(ctx context.Context, id uuid.UUID) (*models.DataAgent, error)
	ListDataAgents(ctx context.Context) ([]*models.DataAgent, error)

	CreateEnvironment(ctx context.Context, env *models.Environment) error
	// GetEnvironment returns apperrors.ErrNotFound when the environment does not exist.
	GetEnvironment(ctx context.Context, id uuid.UUID) (*models.Environment, error)
	ListEnvironments(ctx context.Context, agentID uuid.UUID) ([]*models.Environment, error)
}

type agentRepository struct {
	db *database.DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *database.DB) AgentRepository {
	return &agentRepository{db: db}
}

var _ AgentRepository = (*agentRepository)(nil)

func (r *agentRepository) CreateDataAgent(ctx context.Context, agent *models.DataAgent) error {
	now := time.Now()
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	agent.CreatedAt = now
	agent.UpdatedAt = now

	query := `
		INSERT INTO data_agents (id, name, engine, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Querier(ctx).Exec(ctx, query, agent.ID, agent.Name, agent.Engine, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create data agent: %w", err)
	}
	return nil
}

func (r *agentRepository) GetDataAgent(ctx context.Context, id uuid.UUID) (*models.DataAgent, error) {
	query := `
		SELECT id, name, engine, created_at, updated_at
		FROM data_agents
		WHERE id = $1`

	var a models.DataAgent
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(&a.ID, &a.Name, &a.Engine, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data agent: %w", err)
	}
	return &a, nil
}

func (r *agentRepository) ListDataAgents(ctx context.Context) ([]*models.DataAgent, error) {
	query := `
		SELECT id, name, engine, created_at, updated_at
		FROM data_agents
		ORDER BY name, id`

	rows, err := r.db.Querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list data agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*models.DataAgent, 0)
	for rows.Next() {
		var a models.DataAgent
		if err := rows.Scan(&a.ID, &a.Name, &a.Engine, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan data agent: %w", err)
		}
		agents = append(agents, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data agents: %w", err)
	}
	return agents, nil
}

func (r *agentRepository) CreateEnvironment(ctx context.Context, env *models.Environment) error {
	now := time.Now()
	if env.ID == uuid.Nil {
		env.ID = uuid.New()
	}
	env.CreatedAt = now
	env.UpdatedAt = now

	profileJSON, err := json.Marshal(env.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO data_agent_environments (id, data_agent_id, name, profile, vault_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Querier(ctx).Exec(ctx, query,
		env.ID, env.DataAgentID, env.Name, profileJSON, env.VaultKey, env.CreatedAt, env.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create environment: %w", err)
	}
	return nil
}

func (r *agentRepository) GetEnvironment(ctx context.Context, id uuid.UUID) (*models.Environment, error) {
	query := `
		SELECT id, data_agent_id, name, profile, vault_key, created_at, updated_at
		FROM data_agent_environments
		WHERE id = $1`

	env, err := scanEnvironment(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	return env, nil
}

func (r *agentRepository) ListEnvironments(ctx context.Context, agentID uuid.UUID) ([]*models.Environment, error) {
	query := `
		SELECT id, data_agent_id, name, profile, vault_key, created_at, updated_at
		FROM data_agent_environments
		WHERE data_agent_id = $1
		ORDER BY name`

	rows, err := r.db.Querier(ctx).Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	envs := make([]*models.Environment, 0)
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating environments: %w", err)
	}
	return envs, nil
}

func scanEnvironment(row pgx.Row) (*models.Environment, error) {
	var (
		env         models.Environment
		profileJSON []byte
	)
	if err := row.Scan(&env.ID, &env.DataAgentID, &env.Name, &profileJSON, &env.VaultKey, &env.CreatedAt, &env.UpdatedAt); err != nil {
		return nil, err
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &env.Profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
	}
	return &env, nil
}
