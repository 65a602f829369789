package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "firma/internal/cli"
	"firma/internal/config"
	"firma/internal/decision"
	"firma/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "firma",
		Short:        "Firma CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newRefreshCmd(&apiBase),
		newGamesCmd(&apiBase),
		newDecisionsCmd(&apiBase),
		newDecideCmd(&apiBase),
		newEventsCmd(&apiBase),
		newRespondCmd(&apiBase),
		newBoardCmd(&apiBase),
		newStatsCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Firma account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			username, err := promptOptional("Username (optional)")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Signup(ctx, email, password, username)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `firma login`.")
				return nil
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Firma",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newRefreshCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the saved session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			if strings.TrimSpace(sess.RefreshToken) == "" {
				return fmt.Errorf("no refresh token stored, run `firma login`")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			session, err := client.Refresh(ctx, sess.RefreshToken)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Session refreshed.")
			return nil
		},
	}
}

func newGamesCmd(apiBase *string) *cobra.Command {
	games := &cobra.Command{
		Use:     "games",
		Short:   "Company game commands",
		Aliases: []string{"game"},
	}

	games.AddCommand(newGamesListCmd(apiBase))
	games.AddCommand(newGamesNewCmd(apiBase))
	games.AddCommand(newGamesShowCmd(apiBase))
	games.AddCommand(newGamesAdvanceCmd(apiBase))
	games.AddCommand(newGamesStatusCmd(apiBase, "pause", "Pause an active game"))
	games.AddCommand(newGamesStatusCmd(apiBase, "resume", "Resume a paused game"))
	games.AddCommand(newGamesStatusCmd(apiBase, "end", "End a game and record final stats"))
	games.AddCommand(newGamesDeleteCmd(apiBase))

	return games
}

func newGamesListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.ListGames(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderGamesList(out)
		},
	}
}

func newGamesNewCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "new [company_name]",
		Short: "Found a new company",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			name := ""
			if len(args) > 0 {
				name = strings.TrimSpace(args[0])
			} else {
				name, err = promptRequired("Company name")
				if err != nil {
					return err
				}
			}
			industry, err := promptChoice("Industry", []string{"tech", "retail", "manufacturing", "services", "agriculture", "construction", "horeca"}, "services")
			if err != nil {
				return err
			}

			idem := uuid.NewString()
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.StartGame(ctx, sess.AccessToken, name, industry, idem)
			if err != nil {
				return err
			}
			return renderGameDetail(out)
		},
	}
}

func newGamesShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [game_id]",
		Short: "Show full company state and scores",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.GameDetail(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderGameDetail(out)
		},
	}
}

func newGamesAdvanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "advance [game_id]",
		Short: "Advance a company by one month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Advance(ctx, sess.AccessToken, gameID, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Op:             "advance",
					GameID:         gameID,
					IdempotencyKey: idem,
				})
			}
			return renderAdvanceResult(out)
		},
	}
}

func newGamesStatusCmd(apiBase *string, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " [game_id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.SetGameStatus(ctx, sess.AccessToken, gameID, op)
			if err != nil {
				return err
			}
			return renderSimpleOK(out, fmt.Sprintf("Game %s: %s applied.", gameID, op))
		},
	}
}

func newGamesDeleteCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [game_id]",
		Short: "Abandon a game (history is kept)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			confirm, err := promptChoice("Abandon this game", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if confirm != "yes" {
				printInfo("Cancelled.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.DeleteGame(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderSimpleOK(out, fmt.Sprintf("Game %s abandoned.", gameID))
		},
	}
}

func newDecisionsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "decisions [game_id]",
		Short: "List decisions available to a company",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.ListDecisions(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderDecisionsList(out)
		},
	}
}

func newDecideCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "decide [game_id] [decision_id]",
		Short: "Apply a decision to a company",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			var decisionID string
			if len(args) >= 2 {
				decisionID = strings.ToLower(strings.TrimSpace(args[1]))
			} else {
				decisionID, err = promptRequired("Decision ID")
				if err != nil {
					return err
				}
				decisionID = strings.ToLower(strings.TrimSpace(decisionID))
			}

			def, err := decision.Get(decisionID)
			if err != nil {
				return err
			}
			params := map[string]float64{}
			for _, p := range def.Params {
				v, err := promptFloatDefault(fmt.Sprintf("%s (%.0f-%.0f)", p.Name, p.Min, p.Max), p.Default)
				if err != nil {
					return err
				}
				params[p.Name] = v
			}

			idem := uuid.NewString()
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.MakeDecision(ctx, sess.AccessToken, gameID, decisionID, params, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Op:             "decision",
					GameID:         gameID,
					DecisionID:     decisionID,
					Params:         params,
					IdempotencyKey: idem,
				})
			}
			return renderDecisionOutcome(out, def.Title)
		},
	}
}

func newEventsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "events [game_id]",
		Short: "List pending events for a company",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.ListEvents(ctx, sess.AccessToken, gameID)
			if err != nil {
				return err
			}
			return renderEventsList(out)
		},
	}
}

func newRespondCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "respond [game_id] [instance_id]",
		Short: "Respond to a pending event",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			gameID, err := gameIDFromArgOrPrompt(args)
			if err != nil {
				return err
			}
			var instanceID string
			if len(args) >= 2 {
				instanceID = strings.TrimSpace(args[1])
			} else {
				instanceID, err = promptRequired("Event instance ID")
				if err != nil {
					return err
				}
			}
			responseID, err := promptRequired("Response ID")
			if err != nil {
				return err
			}
			responseID = strings.ToLower(strings.TrimSpace(responseID))

			idem := uuid.NewString()
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.RespondEvent(ctx, sess.AccessToken, gameID, instanceID, responseID, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Op:             "respond",
					GameID:         gameID,
					InstanceID:     instanceID,
					ResponseID:     responseID,
					IdempotencyKey: idem,
				})
			}
			return renderRespondOutcome(out)
		},
	}
}

func newBoardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the global leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Leaderboard(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderLeaderboard(out, "Leaderboard")
		},
	}
}

func newStatsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your lifetime stats and achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.MyStats(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderPlayerStats(out)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline writes to cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}

			commands := make([]map[string]any, 0, len(queue))
			for _, q := range queue {
				entry := map[string]any{
					"op":              q.Op,
					"game_id":         q.GameID,
					"idempotency_key": q.IdempotencyKey,
				}
				if q.DecisionID != "" {
					entry["decision_id"] = q.DecisionID
				}
				if len(q.Params) > 0 {
					entry["params"] = q.Params
				}
				if q.InstanceID != "" {
					entry["instance_id"] = q.InstanceID
				}
				if q.ResponseID != "" {
					entry["response_id"] = q.ResponseID
				}
				commands = append(commands, entry)
			}

			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			out, err := client.SyncReplay(ctx, sess.AccessToken, commands)
			if err != nil {
				return err
			}

			results, err := decodeInto[replayResultsPayload](out)
			if err != nil {
				return err
			}
			remaining := make([]syncq.Command, 0)
			applied := 0
			for i, res := range results.Results {
				switch res.Status {
				case "applied", "already_applied":
					applied++
				default:
					if i < len(queue) {
						remaining = append(remaining, queue[i])
					}
					printError(fmt.Sprintf("Sync failed for %s on game %s: %s", res.Op, res.GameID, res.Error))
				}
			}
			if len(remaining) == 0 {
				if err := syncq.Clear(); err != nil {
					return err
				}
			} else if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", applied, len(remaining)))
			return nil
		},
	}
}

// queueOnNetworkError stores write commands locally when the API is
// unreachable. Structured API errors (validation, conflicts) are the
// server's verdict and are never queued.
func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	if isAPIStructuredError(err) {
		return err
	}
	if pushErr := syncq.Push(cmd); pushErr != nil {
		return fmt.Errorf("request failed and queueing failed: %v (original: %w)", pushErr, err)
	}
	printWarn(fmt.Sprintf("Offline: queued %s for game %s. Run `firma sync` when back online.", cmd.Op, cmd.GameID))
	return nil
}

func isAPIStructuredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "api status")
}

func gameIDFromArgOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		id := strings.TrimSpace(args[0])
		if _, err := uuid.Parse(id); err != nil {
			return "", fmt.Errorf("invalid game id")
		}
		return id, nil
	}
	for {
		id, err := promptRequired("Game ID")
		if err != nil {
			return "", err
		}
		id = strings.TrimSpace(id)
		if _, err := uuid.Parse(id); err == nil {
			return id, nil
		}
		printWarn("Enter a valid game ID (UUID).")
	}
}
