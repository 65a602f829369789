package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"firma/internal/achieve"
	"firma/internal/decision"
	"firma/internal/event"
	"firma/internal/market"
	"firma/internal/sim"
)

const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

var (
	ErrGameNotFound         = errors.New("game not found")
	ErrGameNotActive        = errors.New("game is not active")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrTxConflict           = errors.New("transaction conflict, retry")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrEventNotPending      = errors.New("event is not pending")
	ErrInvalidCompanyName   = errors.New("invalid company name")
	ErrInvalidIndustry      = errors.New("unknown industry")
)

var blockedNameFragments = []string{
	"admin",
	"mod",
	"support",
	"shit",
	"fuck",
	"bitch",
	"nazi",
}

// ValidateCompanyName enforces the length and content rules applied at
// game creation.
func ValidateCompanyName(name string) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCompanyName)
	}
	if len(clean) < 2 || len(clean) > 64 {
		return fmt.Errorf("%w: name must be 2-64 characters", ErrInvalidCompanyName)
	}
	lower := strings.ToLower(clean)
	for _, fragment := range blockedNameFragments {
		if strings.Contains(lower, fragment) {
			return fmt.Errorf("%w: name contains blocked content", ErrInvalidCompanyName)
		}
	}
	return nil
}

// GameSummary is the list-view row for a player's games.
type GameSummary struct {
	ID           string    `json:"id"`
	CompanyName  string    `json:"company_name"`
	Industry     string    `json:"industry"`
	Status       string    `json:"status"`
	MonthsPlayed int       `json:"months_played"`
	Month        int       `json:"month"`
	Year         int       `json:"year"`
	Cash         float64   `json:"cash"`
	OverallScore float64   `json:"overall_score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GameView is the full detail of one game: current state, scores and
// the recurring ledger still in force.
type GameView struct {
	ID           string                `json:"id"`
	CompanyName  string                `json:"company_name"`
	Industry     string                `json:"industry"`
	Status       string                `json:"status"`
	MonthsPlayed int                   `json:"months_played"`
	State        sim.State             `json:"state"`
	Scores       sim.HealthScores      `json:"scores"`
	Recurring    []sim.RecurringImpact `json:"recurring,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// EventView is one pending or resolved event instance attached to a
// game. DeadlineMonth is the last months_played value at which the
// player can still respond; nil means no deadline.
type EventView struct {
	InstanceID    string           `json:"instance_id"`
	EventID       string           `json:"event_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Type          event.Type       `json:"type"`
	Severity      string           `json:"severity"`
	FiredAtMonth  int              `json:"fired_at_month"`
	DeadlineMonth *int             `json:"deadline_month,omitempty"`
	Status        string           `json:"status"`
	Responses     []event.Response `json:"responses,omitempty"`
}

// DecisionView pairs a catalog entry with the per-game cooldown and
// requirement status for display.
type DecisionView struct {
	decision.Definition
	Requirements      []string `json:"requirements,omitempty"`
	CooldownRemaining int      `json:"cooldown_remaining"`
	Available         bool     `json:"available"`
}

// AdvanceResult reports one month transition: the new state, the
// month's financial breakdown, events fired, and deadline defaults
// applied on the way in.
type AdvanceResult struct {
	Game         GameView             `json:"game"`
	Metrics      sim.Metrics          `json:"metrics"`
	NewEvents    []EventView          `json:"new_events,omitempty"`
	AutoResolved []event.Outcome      `json:"auto_resolved,omitempty"`
	Unlocked     []achieve.Definition `json:"unlocked,omitempty"`
}

// DecisionOutcome reports an applied decision plus the state it left
// behind.
type DecisionOutcome struct {
	Result decision.Result  `json:"result"`
	State  sim.State        `json:"state"`
	Scores sim.HealthScores `json:"scores"`
}

// RespondOutcome reports an event resolution, including any chained
// events it spawned.
type RespondOutcome struct {
	Outcome event.Outcome `json:"outcome"`
	State   sim.State     `json:"state"`
	Chained []EventView   `json:"chained,omitempty"`
}

// LeaderboardRow ranks players by their best-run overall health score.
type LeaderboardRow struct {
	Rank         int64   `json:"rank"`
	Username     string  `json:"username"`
	CompanyName  string  `json:"company_name"`
	Industry     string  `json:"industry"`
	OverallScore float64 `json:"overall_score"`
	MonthsPlayed int     `json:"months_played"`
}

// PlayerStats is the profile view: lifetime aggregates, XP and level,
// and unlocked achievements.
type PlayerStats struct {
	Username     string               `json:"username"`
	Stats        achieve.Stats        `json:"stats"`
	XP           int                  `json:"xp"`
	Level        achieve.LevelInfo    `json:"level"`
	Achievements []achieve.Definition `json:"achievements"`
}

// StartGameInput creates a new company.
type StartGameInput struct {
	UserID         string
	CompanyName    string
	Industry       string
	IdempotencyKey string
}

// AdvanceInput advances one game by one month.
type AdvanceInput struct {
	UserID         string
	GameID         string
	IdempotencyKey string
}

// DecisionInput applies one catalog decision to a game.
type DecisionInput struct {
	UserID         string
	GameID         string
	DecisionID     string
	Params         decision.Params
	IdempotencyKey string
}

// RespondInput answers one pending event instance.
type RespondInput struct {
	UserID         string
	GameID         string
	InstanceID     string
	ResponseID     string
	IdempotencyKey string
}

func validIndustry(industry string) (string, error) {
	ind := strings.ToLower(strings.TrimSpace(industry))
	if !market.KnownIndustry(ind) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIndustry, industry)
	}
	return ind, nil
}
