package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"firma/internal/auth"
	"firma/internal/config"
	"firma/internal/decision"
	"firma/internal/event"
	"firma/internal/game"
	"firma/internal/sim"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	auth *auth.SupabaseClient
	game *game.Service
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, authClient *auth.SupabaseClient, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		auth: authClient,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/games", s.handleListGames)
			r.Post("/games", s.handleStartGame)
			r.Get("/games/{id}", s.handleGameDetail)
			r.Delete("/games/{id}", s.handleDeleteGame)
			r.Post("/games/{id}/advance", s.handleAdvance)
			r.Post("/games/{id}/pause", s.handlePause)
			r.Post("/games/{id}/resume", s.handleResume)
			r.Post("/games/{id}/end", s.handleEnd)

			r.Get("/games/{id}/decisions", s.handleAvailableDecisions)
			r.Post("/games/{id}/decisions", s.handleMakeDecision)
			r.Get("/games/{id}/events", s.handlePendingEvents)
			r.Post("/games/{id}/events/{instance_id}/respond", s.handleRespondEvent)

			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/me/stats", s.handleMyStats)
			r.Post("/sync/replay", s.handleSyncReplay)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session.User.ID != "" {
		if err := s.game.EnsurePlayer(r.Context(), session.User.ID, session.User.Email, in.Username); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.game.EnsurePlayer(r.Context(), session.User.ID, session.User.Email, ""); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.RefreshSession(r.Context(), strings.TrimSpace(in.RefreshToken))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.ListGames(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out})
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		CompanyName string `json:"company_name"`
		Industry    string `json:"industry"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.StartGame(r.Context(), game.StartGameInput{
		UserID:         user.UserID,
		CompanyName:    in.CompanyName,
		Industry:       in.Industry,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGameDetail(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.GameDetail(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.game.DeleteGame(r.Context(), user.UserID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.AdvanceMonth(r.Context(), game.AdvanceInput{
		UserID:         user.UserID,
		GameID:         chi.URLParam(r, "id"),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleStatusChange(w, r, s.game.PauseGame)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleStatusChange(w, r, s.game.ResumeGame)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.handleStatusChange(w, r, s.game.EndGame)
}

func (s *Server) handleStatusChange(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) error) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := op(r.Context(), user.UserID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAvailableDecisions(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.AvailableDecisions(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": out})
}

func (s *Server) handleMakeDecision(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		DecisionID string          `json:"decision_id"`
		Params     decision.Params `json:"params"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.MakeDecision(r.Context(), game.DecisionInput{
		UserID:         user.UserID,
		GameID:         chi.URLParam(r, "id"),
		DecisionID:     in.DecisionID,
		Params:         in.Params,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePendingEvents(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.PendingEvents(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleRespondEvent(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ResponseID string `json:"response_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.RespondToEvent(r.Context(), game.RespondInput{
		UserID:         user.UserID,
		GameID:         chi.URLParam(r, "id"),
		InstanceID:     chi.URLParam(r, "instance_id"),
		ResponseID:     in.ResponseID,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.LeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	out, err := s.game.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.UserStats(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// replayCommand is one queued offline operation the CLI submits for
// replay once connectivity returns.
type replayCommand struct {
	Op             string          `json:"op"`
	GameID         string          `json:"game_id"`
	DecisionID     string          `json:"decision_id,omitempty"`
	Params         decision.Params `json:"params,omitempty"`
	InstanceID     string          `json:"instance_id,omitempty"`
	ResponseID     string          `json:"response_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func (s *Server) handleSyncReplay(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Commands []replayCommand `json:"commands"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]map[string]any, 0, len(in.Commands))
	for _, cmd := range in.Commands {
		key := cmd.IdempotencyKey
		if key == "" {
			key = uuid.NewString()
		}
		var opErr error
		switch cmd.Op {
		case "advance":
			_, opErr = s.game.AdvanceMonth(r.Context(), game.AdvanceInput{
				UserID: user.UserID, GameID: cmd.GameID, IdempotencyKey: key,
			})
		case "decision":
			_, opErr = s.game.MakeDecision(r.Context(), game.DecisionInput{
				UserID: user.UserID, GameID: cmd.GameID,
				DecisionID: cmd.DecisionID, Params: cmd.Params, IdempotencyKey: key,
			})
		case "respond":
			_, opErr = s.game.RespondToEvent(r.Context(), game.RespondInput{
				UserID: user.UserID, GameID: cmd.GameID,
				InstanceID: cmd.InstanceID, ResponseID: cmd.ResponseID, IdempotencyKey: key,
			})
		default:
			opErr = fmt.Errorf("unknown op %q", cmd.Op)
		}
		row := map[string]any{"op": cmd.Op, "game_id": cmd.GameID, "idempotency_key": key}
		if opErr != nil {
			// Duplicates mean the command already landed; report as applied.
			if errors.Is(opErr, game.ErrDuplicateIdempotency) {
				row["status"] = "already_applied"
			} else {
				row["status"] = "failed"
				row["error"] = opErr.Error()
			}
		} else {
			row["status"] = "applied"
		}
		results = append(results, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, decision.ErrUnknownDecision),
		errors.Is(err, event.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrInvalidCompanyName),
		errors.Is(err, game.ErrInvalidIndustry),
		errors.Is(err, decision.ErrRequirementsNotMet),
		errors.Is(err, decision.ErrParamOutOfRange),
		errors.Is(err, event.ErrUnknownResponse),
		errors.Is(err, sim.ErrContractViolation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrDuplicateIdempotency),
		errors.Is(err, game.ErrGameNotActive),
		errors.Is(err, game.ErrEventNotPending),
		errors.Is(err, game.ErrTxConflict),
		errors.Is(err, decision.ErrCooldownActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
