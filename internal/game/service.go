package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"firma/internal/achieve"
	"firma/internal/decision"
	"firma/internal/event"
	"firma/internal/sim"
)

// Service owns all game state persistence and orchestrates the
// simulation engine around it. Every mutating operation runs in a
// serializable transaction guarded by an idempotency key.
type Service struct {
	db   *pgxpool.Pool
	log  *slog.Logger
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:   db,
		log:  logger,
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) nextSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Int63()
}

func (s *Service) EnsurePlayer(ctx context.Context, userID, email, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		username = usernameFromEmail(email)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users.profiles (user_id, email, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, email, username)
	return err
}

// gameRow is the persisted form of one game, jsonb columns unpacked.
type gameRow struct {
	ID           string
	OwnerID      string
	CompanyName  string
	Industry     string
	Status       string
	Seed         int64
	RngSeq       int64
	MonthsPlayed int
	State        sim.State
	Scores       sim.HealthScores
	Recurring    []sim.RecurringImpact
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (g gameRow) view() GameView {
	return GameView{
		ID:           g.ID,
		CompanyName:  g.CompanyName,
		Industry:     g.Industry,
		Status:       g.Status,
		MonthsPlayed: g.MonthsPlayed,
		State:        g.State,
		Scores:       g.Scores,
		Recurring:    g.Recurring,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func (s *Service) StartGame(ctx context.Context, in StartGameInput) (GameView, error) {
	var out GameView
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	if err := ValidateCompanyName(in.CompanyName); err != nil {
		return out, err
	}
	ind, err := validIndustry(in.Industry)
	if err != nil {
		return out, err
	}

	now := time.Now()
	state := sim.NewGameState(ind, now.Year(), int(now.Month()))
	scores := sim.Score(state)
	seed := s.nextSeed()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return out, err
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return out, err
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "start_game"); err != nil {
			return err
		}
		var id string
		var createdAt time.Time
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.games
			    (owner_user_id, company_name, industry, status, seed, rng_seq, months_played, state, scores, recurring)
			VALUES
			    ($1, $2, $3, $4, $5, 0, 0, $6::jsonb, $7::jsonb, '[]'::jsonb)
			RETURNING id, created_at
		`, in.UserID, in.CompanyName, ind, StatusActive, seed, string(stateJSON), string(scoresJSON)).Scan(&id, &createdAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.state_history (game_id, months_played, state, scores, metrics)
			VALUES ($1, 0, $2::jsonb, $3::jsonb, '{}'::jsonb)
		`, id, string(stateJSON), string(scoresJSON)); err != nil {
			return err
		}
		out = GameView{
			ID:           id,
			CompanyName:  in.CompanyName,
			Industry:     ind,
			Status:       StatusActive,
			State:        state,
			Scores:       scores,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}
		return nil
	})
	if err != nil {
		return GameView{}, err
	}
	s.log.Info("game started", "game_id", out.ID, "industry", out.Industry)
	return out, nil
}

func (s *Service) ListGames(ctx context.Context, userID string) ([]GameSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, company_name, industry, status, months_played,
		       (state->>'month')::int,
		       (state->>'year')::int,
		       (state->>'cash')::float8,
		       (scores->>'overall')::float8,
		       created_at, updated_at
		FROM sim.games
		WHERE owner_user_id = $1 AND status <> $2
		ORDER BY updated_at DESC
	`, userID, StatusAbandoned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.ID, &g.CompanyName, &g.Industry, &g.Status, &g.MonthsPlayed,
			&g.Month, &g.Year, &g.Cash, &g.OverallScore, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Service) GameDetail(ctx context.Context, userID, gameID string) (GameView, error) {
	var g gameRow
	var stateJSON, scoresJSON, recurringJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_user_id, company_name, industry, status, months_played,
		       state, scores, recurring, created_at, updated_at
		FROM sim.games
		WHERE id = $1
	`, gameID).Scan(&g.ID, &g.OwnerID, &g.CompanyName, &g.Industry, &g.Status, &g.MonthsPlayed,
		&stateJSON, &scoresJSON, &recurringJSON, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GameView{}, ErrGameNotFound
		}
		return GameView{}, err
	}
	if g.OwnerID != userID {
		return GameView{}, ErrUnauthorized
	}
	if err := unpackGame(&g, stateJSON, scoresJSON, recurringJSON); err != nil {
		return GameView{}, err
	}
	return g.view(), nil
}

func (s *Service) SetStatus(ctx context.Context, userID, gameID, from, to string) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE sim.games
		SET status = $1, updated_at = now()
		WHERE id = $2 AND owner_user_id = $3 AND status = $4
	`, to, gameID, userID, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Disambiguate: missing, foreign or wrong status.
		var owner, status string
		err := s.db.QueryRow(ctx, `SELECT owner_user_id, status FROM sim.games WHERE id = $1`, gameID).Scan(&owner, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		if owner != userID {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: status is %q", ErrGameNotActive, status)
	}
	return nil
}

func (s *Service) PauseGame(ctx context.Context, userID, gameID string) error {
	return s.SetStatus(ctx, userID, gameID, StatusActive, StatusPaused)
}

func (s *Service) ResumeGame(ctx context.Context, userID, gameID string) error {
	return s.SetStatus(ctx, userID, gameID, StatusPaused, StatusActive)
}

// EndGame completes an active or paused game and credits the
// completion to the player's lifetime stats.
func (s *Service) EndGame(ctx context.Context, userID, gameID string) error {
	return s.runSerializable(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT status FROM sim.games
			WHERE id = $1 AND owner_user_id = $2
			FOR UPDATE
		`, gameID, userID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		if status != StatusActive && status != StatusPaused {
			return fmt.Errorf("%w: status is %q", ErrGameNotActive, status)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE sim.games SET status = $1, updated_at = now() WHERE id = $2
		`, StatusCompleted, gameID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.stats (user_id, games_completed)
			VALUES ($1, 1)
			ON CONFLICT (user_id) DO UPDATE SET games_completed = sim.stats.games_completed + 1, updated_at = now()
		`, userID); err != nil {
			return err
		}
		_, err = s.checkAchievementsTx(ctx, tx, userID)
		return err
	})
}

// DeleteGame marks the game abandoned; history rows stay for stats.
func (s *Service) DeleteGame(ctx context.Context, userID, gameID string) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE sim.games
		SET status = $1, updated_at = now()
		WHERE id = $2 AND owner_user_id = $3
	`, StatusAbandoned, gameID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

// AdvanceMonth moves one game forward a month: overdue events resolve
// with their default first, then the engine runs, events fire for the
// new month and stats and achievements update.
func (s *Service) AdvanceMonth(ctx context.Context, in AdvanceInput) (AdvanceResult, error) {
	var out AdvanceResult
	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		out = AdvanceResult{}
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "advance"); err != nil {
			return err
		}
		g, err := loadGameForUpdate(ctx, tx, in.GameID)
		if err != nil {
			return err
		}
		if g.OwnerID != in.UserID {
			return ErrUnauthorized
		}
		if g.Status != StatusActive {
			return fmt.Errorf("%w: status is %q", ErrGameNotActive, g.Status)
		}

		st := g.State
		if err := st.Validate(); err != nil {
			return err
		}

		// Overdue events resolve with their declared default before the
		// month runs, so a lapsed deadline can never be outwaited.
		st, autoResolved, err := s.resolveOverdueTx(ctx, tx, g, st)
		if err != nil {
			return err
		}
		out.AutoResolved = autoResolved

		next, metrics := sim.Advance(st, g.Recurring)
		if err := next.Validate(); err != nil {
			return err
		}
		scores := sim.Score(next)
		monthsPlayed := g.MonthsPlayed + 1

		rng := mathrand.New(mathrand.NewSource(g.Seed + g.RngSeq + 1))
		fired := event.Select(next, monthsPlayed, rng)
		views, err := insertEventInstances(ctx, tx, g.ID, monthsPlayed, fired)
		if err != nil {
			return err
		}
		out.NewEvents = views

		if err := persistGame(ctx, tx, g.ID, monthsPlayed, g.RngSeq+1, next, scores, metrics.Recurring); err != nil {
			return err
		}
		if err := insertHistory(ctx, tx, g.ID, monthsPlayed, next, scores, metrics); err != nil {
			return err
		}
		if err := bumpStatsTx(ctx, tx, in.UserID, next, scores, metrics); err != nil {
			return err
		}
		unlocked, err := s.checkAchievementsTx(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		out.Unlocked = unlocked

		g.State = next
		g.Scores = scores
		g.Recurring = metrics.Recurring
		g.MonthsPlayed = monthsPlayed
		out.Game = g.view()
		out.Metrics = metrics
		return nil
	})
	if err != nil {
		return AdvanceResult{}, err
	}
	s.log.Info("month advanced",
		"game_id", in.GameID,
		"months_played", out.Game.MonthsPlayed,
		"profit", out.Metrics.Profit,
		"events", len(out.NewEvents))
	return out, nil
}

// MakeDecision applies one catalog decision inside the game's current
// month. Cooldowns are derived from the decision history.
func (s *Service) MakeDecision(ctx context.Context, in DecisionInput) (DecisionOutcome, error) {
	var out DecisionOutcome
	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		out = DecisionOutcome{}
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "decision"); err != nil {
			return err
		}
		g, err := loadGameForUpdate(ctx, tx, in.GameID)
		if err != nil {
			return err
		}
		if g.OwnerID != in.UserID {
			return ErrUnauthorized
		}
		if g.Status != StatusActive {
			return fmt.Errorf("%w: status is %q", ErrGameNotActive, g.Status)
		}

		remaining, err := cooldownRemainingTx(ctx, tx, g.ID, in.DecisionID, g.MonthsPlayed)
		if err != nil {
			return err
		}

		rng := mathrand.New(mathrand.NewSource(g.Seed + g.RngSeq + 1))
		next, result, err := decision.Apply(g.State, in.DecisionID, in.Params, remaining, rng)
		if err != nil {
			return err
		}
		scores := sim.Score(next)
		recurring := append(g.Recurring, result.Recurring...)

		paramsJSON, err := json.Marshal(in.Params)
		if err != nil {
			return err
		}
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.decisions (game_id, decision_id, months_played, params, result)
			VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
		`, g.ID, in.DecisionID, g.MonthsPlayed, string(paramsJSON), string(resultJSON)); err != nil {
			return err
		}
		if err := persistGame(ctx, tx, g.ID, g.MonthsPlayed, g.RngSeq+1, next, scores, recurring); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.stats (user_id, decisions_made)
			VALUES ($1, 1)
			ON CONFLICT (user_id) DO UPDATE SET decisions_made = sim.stats.decisions_made + 1, updated_at = now()
		`, in.UserID); err != nil {
			return err
		}
		out = DecisionOutcome{Result: result, State: next, Scores: scores}
		return nil
	})
	if err != nil {
		return DecisionOutcome{}, err
	}
	s.log.Info("decision applied", "game_id", in.GameID, "decision", in.DecisionID, "risks", len(out.Result.RiskEvents))
	return out, nil
}

// AvailableDecisions lists the catalog with per-game cooldown status.
func (s *Service) AvailableDecisions(ctx context.Context, userID, gameID string) ([]DecisionView, error) {
	g, err := s.GameDetail(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	lastUsed := make(map[string]int)
	rows, err := s.db.Query(ctx, `
		SELECT decision_id, MAX(months_played)
		FROM sim.decisions
		WHERE game_id = $1
		GROUP BY decision_id
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var at int
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		lastUsed[id] = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DecisionView, 0, len(decision.All()))
	for _, d := range decision.All() {
		v := DecisionView{Definition: d, Requirements: d.RequirementTexts()}
		if at, ok := lastUsed[d.ID]; ok {
			if remaining := d.Cooldown - (g.MonthsPlayed - at); remaining > 0 {
				v.CooldownRemaining = remaining
			}
		}
		v.Available = v.CooldownRemaining == 0
		if v.Available {
			for _, req := range d.Requirements {
				if !req.Met(g.State) {
					v.Available = false
					break
				}
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// PendingEvents lists the unanswered event instances for a game.
func (s *Service) PendingEvents(ctx context.Context, userID, gameID string) ([]EventView, error) {
	if _, err := s.GameDetail(ctx, userID, gameID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, fired_at_month, deadline_month
		FROM sim.events
		WHERE game_id = $1 AND status = 'pending'
		ORDER BY created_at
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventView
	for rows.Next() {
		var v EventView
		if err := rows.Scan(&v.InstanceID, &v.EventID, &v.FiredAtMonth, &v.DeadlineMonth); err != nil {
			return nil, err
		}
		d, err := event.Get(v.EventID)
		if err != nil {
			return nil, err
		}
		v.Title = d.Title
		v.Description = d.Description
		v.Type = d.Type
		v.Severity = d.Severity.String()
		v.Status = "pending"
		v.Responses = d.Responses
		out = append(out, v)
	}
	return out, rows.Err()
}

// RespondToEvent resolves one pending event with the chosen response.
// Chained follow-ups fire immediately, bypassing probability.
func (s *Service) RespondToEvent(ctx context.Context, in RespondInput) (RespondOutcome, error) {
	var out RespondOutcome
	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		out = RespondOutcome{}
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "respond"); err != nil {
			return err
		}
		g, err := loadGameForUpdate(ctx, tx, in.GameID)
		if err != nil {
			return err
		}
		if g.OwnerID != in.UserID {
			return ErrUnauthorized
		}
		if g.Status != StatusActive {
			return fmt.Errorf("%w: status is %q", ErrGameNotActive, g.Status)
		}

		var eventID, status string
		err = tx.QueryRow(ctx, `
			SELECT event_id, status
			FROM sim.events
			WHERE id = $1 AND game_id = $2
			FOR UPDATE
		`, in.InstanceID, in.GameID).Scan(&eventID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %q", event.ErrUnknownEvent, in.InstanceID)
		}
		if err != nil {
			return err
		}
		if status != "pending" {
			return fmt.Errorf("%w: status is %q", ErrEventNotPending, status)
		}

		next, outcome, err := event.Resolve(eventID, in.ResponseID, g.State)
		if err != nil {
			return err
		}
		scores := sim.Score(next)

		outcomeJSON, err := json.Marshal(outcome)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE sim.events
			SET status = 'resolved', response_id = $1, outcome = $2::jsonb, resolved_at = now()
			WHERE id = $3
		`, in.ResponseID, string(outcomeJSON), in.InstanceID); err != nil {
			return err
		}

		chained, err := forceInsertChain(ctx, tx, g.ID, g.MonthsPlayed, outcome.Chain)
		if err != nil {
			return err
		}
		if err := persistGame(ctx, tx, g.ID, g.MonthsPlayed, g.RngSeq, next, scores, g.Recurring); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.stats (user_id, events_resolved)
			VALUES ($1, 1)
			ON CONFLICT (user_id) DO UPDATE SET events_resolved = sim.stats.events_resolved + 1, updated_at = now()
		`, in.UserID); err != nil {
			return err
		}
		out = RespondOutcome{Outcome: outcome, State: next, Chained: chained}
		return nil
	})
	if err != nil {
		return RespondOutcome{}, err
	}
	return out, nil
}

// SweepDeadlines auto-resolves overdue events across all active games.
// The worker runs it on a ticker so abandoned sessions do not sit on
// lapsed deadlines forever.
func (s *Service) SweepDeadlines(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT g.id
		FROM sim.games g
		JOIN sim.events e ON e.game_id = g.id
		WHERE g.status = $1
		  AND e.status = 'pending'
		  AND e.deadline_month IS NOT NULL
		  AND e.deadline_month <= g.months_played
	`, StatusActive)
	if err != nil {
		return 0, err
	}
	var gameIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		gameIDs = append(gameIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	swept := 0
	for _, gameID := range gameIDs {
		err := s.runSerializable(ctx, func(tx pgx.Tx) error {
			g, err := loadGameForUpdate(ctx, tx, gameID)
			if err != nil {
				return err
			}
			if g.Status != StatusActive {
				return nil
			}
			next, resolved, err := s.resolveOverdueTx(ctx, tx, g, g.State)
			if err != nil {
				return err
			}
			if len(resolved) == 0 {
				return nil
			}
			swept += len(resolved)
			return persistGame(ctx, tx, g.ID, g.MonthsPlayed, g.RngSeq, next, sim.Score(next), g.Recurring)
		})
		if err != nil {
			s.log.Warn("deadline sweep failed", "game_id", gameID, "error", err)
		}
	}
	return swept, nil
}

// Leaderboard ranks games by overall health score.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT pr.username, g.company_name, g.industry,
		       (g.scores->>'overall')::float8, g.months_played
		FROM sim.games g
		JOIN users.profiles pr ON pr.user_id = g.owner_user_id
		WHERE g.months_played > 0 AND g.status <> $1
		ORDER BY (g.scores->>'overall')::float8 DESC, g.months_played DESC
		LIMIT $2
	`, StatusAbandoned, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardRow
	var rank int64 = 1
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.Username, &r.CompanyName, &r.Industry, &r.OverallScore, &r.MonthsPlayed); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

// UserStats builds the profile view: lifetime aggregates, XP, level and
// unlocked achievements.
func (s *Service) UserStats(ctx context.Context, userID string) (PlayerStats, error) {
	var out PlayerStats
	if err := s.db.QueryRow(ctx, `
		SELECT username FROM users.profiles WHERE user_id = $1
	`, userID).Scan(&out.Username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, ErrUnauthorized
		}
		return out, err
	}

	err := s.db.QueryRow(ctx, `
		SELECT months_played, profitable_months, total_revenue, total_profit, peak_cash,
		       max_employees, max_market_share, best_overall_score,
		       decisions_made, events_resolved, games_completed
		FROM sim.stats
		WHERE user_id = $1
	`, userID).Scan(&out.Stats.MonthsPlayed, &out.Stats.ProfitableMonths, &out.Stats.TotalRevenue,
		&out.Stats.TotalProfit, &out.Stats.PeakCash, &out.Stats.MaxEmployees, &out.Stats.MaxMarketShare,
		&out.Stats.BestOverallScore, &out.Stats.DecisionsMade, &out.Stats.EventsResolved, &out.Stats.GamesCompleted)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return out, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT achievement_id FROM sim.achievements WHERE user_id = $1 ORDER BY unlocked_at
	`, userID)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return out, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return out, err
	}
	for _, id := range ids {
		if d, err := achieve.Get(id); err == nil {
			out.Achievements = append(out.Achievements, d)
		}
	}
	out.XP = achieve.XPFor(ids)
	out.Level = achieve.Level(out.XP)
	return out, nil
}

// ----- transaction helpers -----

// runSerializable executes fn in a serializable transaction, retrying
// on serialization failures with capped exponential backoff.
func (s *Service) runSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, userID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO sim.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

func loadGameForUpdate(ctx context.Context, tx pgx.Tx, gameID string) (gameRow, error) {
	var g gameRow
	var stateJSON, scoresJSON, recurringJSON []byte
	err := tx.QueryRow(ctx, `
		SELECT id, owner_user_id, company_name, industry, status, seed, rng_seq, months_played,
		       state, scores, recurring, created_at, updated_at
		FROM sim.games
		WHERE id = $1
		FOR UPDATE
	`, gameID).Scan(&g.ID, &g.OwnerID, &g.CompanyName, &g.Industry, &g.Status, &g.Seed, &g.RngSeq,
		&g.MonthsPlayed, &stateJSON, &scoresJSON, &recurringJSON, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, ErrGameNotFound
	}
	if err != nil {
		return g, err
	}
	if err := unpackGame(&g, stateJSON, scoresJSON, recurringJSON); err != nil {
		return g, err
	}
	return g, nil
}

func unpackGame(g *gameRow, stateJSON, scoresJSON, recurringJSON []byte) error {
	if err := json.Unmarshal(stateJSON, &g.State); err != nil {
		return fmt.Errorf("corrupt state for game %s: %w", g.ID, err)
	}
	if err := json.Unmarshal(scoresJSON, &g.Scores); err != nil {
		return fmt.Errorf("corrupt scores for game %s: %w", g.ID, err)
	}
	if len(recurringJSON) > 0 {
		if err := json.Unmarshal(recurringJSON, &g.Recurring); err != nil {
			return fmt.Errorf("corrupt recurring ledger for game %s: %w", g.ID, err)
		}
	}
	return nil
}

func persistGame(ctx context.Context, tx pgx.Tx, gameID string, monthsPlayed int, rngSeq int64, st sim.State, scores sim.HealthScores, recurring []sim.RecurringImpact) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return err
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	if recurring == nil {
		recurring = []sim.RecurringImpact{}
	}
	recurringJSON, err := json.Marshal(recurring)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE sim.games
		SET months_played = $1, rng_seq = $2, state = $3::jsonb, scores = $4::jsonb,
		    recurring = $5::jsonb, updated_at = now()
		WHERE id = $6
	`, monthsPlayed, rngSeq, string(stateJSON), string(scoresJSON), string(recurringJSON), gameID)
	return err
}

func insertHistory(ctx context.Context, tx pgx.Tx, gameID string, monthsPlayed int, st sim.State, scores sim.HealthScores, metrics sim.Metrics) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return err
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sim.state_history (game_id, months_played, state, scores, metrics)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb)
	`, gameID, monthsPlayed, string(stateJSON), string(scoresJSON), string(metricsJSON))
	return err
}

func insertEventInstances(ctx context.Context, tx pgx.Tx, gameID string, monthsPlayed int, fired []event.Definition) ([]EventView, error) {
	var out []EventView
	for _, d := range fired {
		var deadline *int
		if d.Deadline > 0 {
			dm := monthsPlayed + d.Deadline
			deadline = &dm
		}
		var instanceID string
		if err := tx.QueryRow(ctx, `
			INSERT INTO sim.events (game_id, event_id, fired_at_month, deadline_month, status)
			VALUES ($1, $2, $3, $4, 'pending')
			RETURNING id
		`, gameID, d.ID, monthsPlayed, deadline).Scan(&instanceID); err != nil {
			return nil, err
		}
		out = append(out, EventView{
			InstanceID:    instanceID,
			EventID:       d.ID,
			Title:         d.Title,
			Description:   d.Description,
			Type:          d.Type,
			Severity:      d.Severity.String(),
			FiredAtMonth:  monthsPlayed,
			DeadlineMonth: deadline,
			Status:        "pending",
			Responses:     d.Responses,
		})
	}
	return out, nil
}

func forceInsertChain(ctx context.Context, tx pgx.Tx, gameID string, monthsPlayed int, chain []string) ([]EventView, error) {
	defs := make([]event.Definition, 0, len(chain))
	for _, id := range chain {
		d, err := event.Get(id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return insertEventInstances(ctx, tx, gameID, monthsPlayed, defs)
}

// resolveOverdueTx applies the default response to every pending event
// whose deadline has passed and marks the rows expired. Chained
// follow-ups from a default still fire.
func (s *Service) resolveOverdueTx(ctx context.Context, tx pgx.Tx, g gameRow, st sim.State) (sim.State, []event.Outcome, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id
		FROM sim.events
		WHERE game_id = $1 AND status = 'pending'
		  AND deadline_month IS NOT NULL AND deadline_month <= $2
		ORDER BY created_at
		FOR UPDATE
	`, g.ID, g.MonthsPlayed)
	if err != nil {
		return st, nil, err
	}
	type overdue struct {
		instanceID string
		eventID    string
	}
	var items []overdue
	for rows.Next() {
		var o overdue
		if err := rows.Scan(&o.instanceID, &o.eventID); err != nil {
			rows.Close()
			return st, nil, err
		}
		items = append(items, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, nil, err
	}

	var outcomes []event.Outcome
	for _, o := range items {
		d, err := event.Get(o.eventID)
		if err != nil {
			return st, nil, err
		}
		next, outcome, err := event.Resolve(d.ID, d.DefaultResponse().ID, st)
		if err != nil {
			return st, nil, err
		}
		st = next
		outcomeJSON, err := json.Marshal(outcome)
		if err != nil {
			return st, nil, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE sim.events
			SET status = 'expired', response_id = $1, outcome = $2::jsonb, resolved_at = now()
			WHERE id = $3
		`, outcome.ResponseID, string(outcomeJSON), o.instanceID); err != nil {
			return st, nil, err
		}
		if _, err := forceInsertChain(ctx, tx, g.ID, g.MonthsPlayed, outcome.Chain); err != nil {
			return st, nil, err
		}
		outcomes = append(outcomes, outcome)
		s.log.Info("event deadline lapsed", "game_id", g.ID, "event", d.ID, "response", outcome.ResponseID)
	}
	return st, outcomes, nil
}

func cooldownRemainingTx(ctx context.Context, tx pgx.Tx, gameID, decisionID string, monthsPlayed int) (int, error) {
	d, err := decision.Get(decisionID)
	if err != nil {
		return 0, err
	}
	if d.Cooldown <= 0 {
		return 0, nil
	}
	var lastUsed *int
	if err := tx.QueryRow(ctx, `
		SELECT MAX(months_played)
		FROM sim.decisions
		WHERE game_id = $1 AND decision_id = $2
	`, gameID, decisionID).Scan(&lastUsed); err != nil {
		return 0, err
	}
	if lastUsed == nil {
		return 0, nil
	}
	remaining := d.Cooldown - (monthsPlayed - *lastUsed)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func bumpStatsTx(ctx context.Context, tx pgx.Tx, userID string, st sim.State, scores sim.HealthScores, metrics sim.Metrics) error {
	profitable := 0
	if metrics.Profit > 0 {
		profitable = 1
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO sim.stats
		    (user_id, months_played, profitable_months, total_revenue, total_profit,
		     peak_cash, max_employees, max_market_share, best_overall_score)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
		    months_played      = sim.stats.months_played + 1,
		    profitable_months  = sim.stats.profitable_months + $2,
		    total_revenue      = sim.stats.total_revenue + $3,
		    total_profit       = sim.stats.total_profit + $4,
		    peak_cash          = GREATEST(sim.stats.peak_cash, $5),
		    max_employees      = GREATEST(sim.stats.max_employees, $6),
		    max_market_share   = GREATEST(sim.stats.max_market_share, $7),
		    best_overall_score = GREATEST(sim.stats.best_overall_score, $8),
		    updated_at         = now()
	`, userID, profitable, metrics.Revenue, metrics.Profit, st.Cash, st.Employees, st.MarketShare, scores.Overall)
	return err
}

// checkAchievementsTx re-evaluates the unlock conditions against the
// player's stats and records anything new. Safe to call after every
// mutating operation.
func (s *Service) checkAchievementsTx(ctx context.Context, tx pgx.Tx, userID string) ([]achieve.Definition, error) {
	var stats achieve.Stats
	err := tx.QueryRow(ctx, `
		SELECT months_played, profitable_months, total_revenue, total_profit, peak_cash,
		       max_employees, max_market_share, best_overall_score,
		       decisions_made, events_resolved, games_completed
		FROM sim.stats
		WHERE user_id = $1
	`, userID).Scan(&stats.MonthsPlayed, &stats.ProfitableMonths, &stats.TotalRevenue,
		&stats.TotalProfit, &stats.PeakCash, &stats.MaxEmployees, &stats.MaxMarketShare,
		&stats.BestOverallScore, &stats.DecisionsMade, &stats.EventsResolved, &stats.GamesCompleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	unlocked := make(map[string]bool)
	rows, err := tx.Query(ctx, `SELECT achievement_id FROM sim.achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		unlocked[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fresh := achieve.Check(stats, unlocked)
	for _, d := range fresh {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sim.achievements (user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, now())
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, userID, d.ID); err != nil {
			return nil, err
		}
	}
	return fresh, nil
}

func usernameFromEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	parts := strings.Split(email, "@")
	if len(parts) == 0 || parts[0] == "" {
		return "player"
	}
	return parts[0]
}
