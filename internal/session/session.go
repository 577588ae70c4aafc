package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/querypilot/querypilot/internal/database"
	apperrors "github.com/querypilot/querypilot/internal/errors"
	"github.com/querypilot/querypilot/internal/observability"
)

const sessionPrefix = "session:"

// State holds the last answered query for one session. Exports read it
// back so a download does not re-run the SQL.
type State struct {
	Question  string              `json:"question"`
	SQL       string              `json:"sql"`
	Result    *database.ResultSet `json:"result,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Manager handles session state storage and retrieval
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a new session manager
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Save stores the session state, resetting the TTL on every write
func (m *Manager) Save(ctx context.Context, sessionID string, state *State) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		observability.GetGlobalMetrics().Inc(observability.MetricSessionErrors, map[string]string{"operation": "save"})
		return apperrors.NewSessionWriteError(err)
	}

	key := sessionPrefix + sessionID
	if err := m.redis.Set(ctx, key, data, m.ttl).Err(); err != nil {
		observability.GetGlobalMetrics().Inc(observability.MetricSessionErrors, map[string]string{"operation": "save"})
		return apperrors.NewSessionWriteError(err)
	}

	observability.GetGlobalMetrics().Inc(observability.MetricSessionWrites, nil)
	return nil
}

// Get retrieves the session state by ID
func (m *Manager) Get(ctx context.Context, sessionID string) (*State, error) {
	key := sessionPrefix + sessionID
	data, err := m.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound, "no stored state for this session").
			WithDetails("Run a query first, then retry this operation").
			WithMetadata("session_id", sessionID)
	}
	if err != nil {
		observability.GetGlobalMetrics().Inc(observability.MetricSessionErrors, map[string]string{"operation": "get"})
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSessionWrite, "failed to read session state")
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		observability.GetGlobalMetrics().Inc(observability.MetricSessionErrors, map[string]string{"operation": "get"})
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSessionWrite, "failed to decode session state")
	}

	observability.GetGlobalMetrics().Inc(observability.MetricSessionReads, nil)
	return &state, nil
}

// Delete removes the session state
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	key := sessionPrefix + sessionID
	return m.redis.Del(ctx, key).Err()
}

// Refresh extends the session TTL without rewriting the payload
func (m *Manager) Refresh(ctx context.Context, sessionID string) error {
	key := sessionPrefix + sessionID
	return m.redis.Expire(ctx, key, m.ttl).Err()
}
