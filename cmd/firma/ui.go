package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"firma/internal/game"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type gamesPayload struct {
	Games []game.GameSummary `json:"games"`
}

type decisionsPayload struct {
	Decisions []game.DecisionView `json:"decisions"`
}

type eventsPayload struct {
	Events []game.EventView `json:"events"`
}

type leaderboardPayload struct {
	Rows []game.LeaderboardRow `json:"rows"`
}

type replayResult struct {
	Op     string `json:"op"`
	GameID string `json:"game_id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type replayResultsPayload struct {
	Results []replayResult `json:"results"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptFloatDefault(label string, defaultValue float64) (float64, error) {
	for {
		fmt.Printf("%s [%g]: ", label, defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return defaultValue, nil
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		return v, nil
	}
}

func renderGamesList(raw map[string]any) error {
	payload, err := decodeInto[gamesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== YOUR COMPANIES ==")
	if len(payload.Games) == 0 {
		printInfo("No companies yet. Run `firma games new` to found one.")
		return nil
	}
	fmt.Printf("%-38s %-22s %-14s %-10s %8s %12s %8s\n", "ID", "COMPANY", "INDUSTRY", "STATUS", "MONTHS", "CASH", "SCORE")
	for _, g := range payload.Games {
		fmt.Printf("%-38s %-22s %-14s %-10s %8d %12s %8.1f\n",
			g.ID,
			truncate(g.CompanyName, 22),
			g.Industry,
			g.Status,
			g.MonthsPlayed,
			formatMoney(g.Cash),
			g.OverallScore,
		)
	}
	fmt.Println()
	return nil
}

func renderGameDetail(raw map[string]any) error {
	g, err := decodeInto[game.GameView](raw)
	if err != nil {
		return err
	}
	st := g.State

	accent.Printf("\n== %s (%s) ==\n", g.CompanyName, strings.ToUpper(g.Industry))
	fmt.Printf("Game ID:    %s\n", g.ID)
	fmt.Printf("Status:     %s\n", g.Status)
	fmt.Printf("Period:     %02d/%d (month %d)\n", st.Month, st.Year, g.MonthsPlayed)

	fmt.Println()
	accent.Println("Financial")
	fmt.Printf("Cash:        %s\n", formatMoney(st.Cash))
	fmt.Printf("Revenue:     %s\n", formatMoney(st.Revenue))
	fmt.Printf("Expenses:    %s\n", formatMoney(st.Expenses))
	fmt.Printf("Profit:      %s\n", colorizeMoney(st.Profit))
	fmt.Printf("Receivables: %s  Payables: %s\n", formatMoney(st.Receivables), formatMoney(st.Payables))
	fmt.Printf("Loans:       %s  (payment %s/mo)\n", formatMoney(st.Loans), formatMoney(st.LoanPayments))

	fmt.Println()
	accent.Println("Operations")
	fmt.Printf("Employees:   %d @ %s avg salary\n", st.Employees, formatMoney(st.AverageSalary))
	fmt.Printf("Capacity:    %.0f  Utilization: %.1f%%\n", st.Capacity, st.Utilization)
	fmt.Printf("Quality:     %.1f  Morale: %.1f\n", st.Quality, st.Morale)

	fmt.Println()
	accent.Println("Market")
	fmt.Printf("Price:       %s  Share: %.2f%%  Customers: %d\n", formatMoney(st.Price), st.MarketShare, st.CustomerCount)
	fmt.Printf("Reputation:  %.1f  Satisfaction: %.1f\n", st.Reputation, st.CustomerSatisfaction)

	fmt.Println()
	accent.Println("Compliance")
	fmt.Printf("Tax owed:    %s  VAT balance: %s\n", formatMoney(st.TaxOwed), formatMoney(st.VATBalance))
	fmt.Printf("Audit risk:  %.1f  Penalties risk: %.1f  Compliance: %.1f\n", st.AuditRisk, st.PenaltiesRisk, st.ComplianceScore)

	fmt.Println()
	accent.Println("Health Scores")
	fmt.Printf("Financial: %5.1f  Operations: %5.1f  Compliance: %5.1f  Growth: %5.1f\n",
		g.Scores.Financial, g.Scores.Operations, g.Scores.Compliance, g.Scores.Growth)
	fmt.Printf("Overall:   %s\n", colorizeScore(g.Scores.Overall))

	if len(g.Recurring) > 0 {
		fmt.Println()
		accent.Println("Recurring Effects")
		for _, r := range g.Recurring {
			fmt.Printf("%-24s %-20s %12s %6d mo left\n", truncate(r.Source, 24), r.Metric, signedMoney(r.Delta), r.MonthsLeft)
		}
	}
	fmt.Println()
	return nil
}

func renderAdvanceResult(raw map[string]any) error {
	out, err := decodeInto[game.AdvanceResult](raw)
	if err != nil {
		return err
	}
	st := out.Game.State

	accent.Printf("\n== MONTH %02d/%d ==\n", st.Month, st.Year)
	fmt.Printf("Revenue:     %s (seasonal x%.2f)\n", formatMoney(out.Metrics.Revenue), out.Metrics.SeasonalFactor)
	fmt.Printf("Expenses:    %s (payroll %s, loans %s)\n",
		formatMoney(out.Metrics.Expenses), formatMoney(out.Metrics.Payroll), formatMoney(out.Metrics.LoanPayment))
	fmt.Printf("Profit:      %s\n", colorizeMoney(out.Metrics.Profit))
	fmt.Printf("Cash:        %s\n", formatMoney(st.Cash))
	if out.Metrics.TaxSettled > 0 || out.Metrics.VATSettled > 0 {
		fmt.Printf("Settled:     tax %s, VAT %s\n", formatMoney(out.Metrics.TaxSettled), formatMoney(out.Metrics.VATSettled))
	}
	fmt.Printf("Overall:     %s\n", colorizeScore(out.Game.Scores.Overall))

	for _, res := range out.AutoResolved {
		printWarn(fmt.Sprintf("Deadline passed: %s resolved with default response %q.", res.EventID, res.ResponseID))
	}
	if len(out.NewEvents) > 0 {
		fmt.Println()
		accent.Println("New Events")
		for _, e := range out.NewEvents {
			deadline := "none"
			if e.DeadlineMonth != nil {
				deadline = fmt.Sprintf("month %d", *e.DeadlineMonth)
			}
			danger.Printf("[%s] %s\n", e.Severity, e.Title)
			fmt.Printf("  %s\n", e.Description)
			fmt.Printf("  instance=%s deadline=%s\n", e.InstanceID, deadline)
			for _, r := range e.Responses {
				fmt.Printf("    - %s: %s\n", r.ID, r.Label)
			}
		}
	}
	for _, a := range out.Unlocked {
		printSuccess(fmt.Sprintf("Achievement unlocked: %s (%s, +%d XP)", a.Title, a.Tier, a.XP))
	}
	fmt.Println()
	return nil
}

func renderDecisionsList(raw map[string]any) error {
	payload, err := decodeInto[decisionsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== AVAILABLE DECISIONS ==")
	if len(payload.Decisions) == 0 {
		printInfo("No decisions in the catalog.")
		return nil
	}
	fmt.Printf("%-22s %-28s %-12s %-10s %-10s\n", "ID", "TITLE", "CATEGORY", "COOLDOWN", "AVAILABLE")
	for _, d := range payload.Decisions {
		availability := "yes"
		if !d.Available {
			availability = "no"
		}
		cooldown := "-"
		if d.CooldownRemaining > 0 {
			cooldown = fmt.Sprintf("%d mo", d.CooldownRemaining)
		}
		fmt.Printf("%-22s %-28s %-12s %-10s %-10s\n",
			d.ID,
			truncate(d.Title, 28),
			d.Category,
			cooldown,
			availability,
		)
		for _, req := range d.Requirements {
			fmt.Printf("  requires: %s\n", req)
		}
	}
	fmt.Println()
	return nil
}

func renderDecisionOutcome(raw map[string]any, title string) error {
	out, err := decodeInto[game.DecisionOutcome](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== DECISION: %s ==\n", strings.ToUpper(title))
	for _, d := range out.Result.Applied {
		fmt.Printf("%-22s %12s\n", d.Metric, signedMoney(d.Amount))
	}
	for _, risk := range out.Result.RiskEvents {
		printWarn("Risk triggered: " + risk)
	}
	for _, r := range out.Result.Recurring {
		fmt.Printf("recurring: %-20s %12s for %d months\n", r.Metric, signedMoney(r.Delta), r.MonthsLeft)
	}
	fmt.Printf("Cash now:    %s\n", formatMoney(out.State.Cash))
	fmt.Printf("Overall:     %s\n", colorizeScore(out.Scores.Overall))
	fmt.Println()
	return nil
}

func renderEventsList(raw map[string]any) error {
	payload, err := decodeInto[eventsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== PENDING EVENTS ==")
	if len(payload.Events) == 0 {
		printInfo("No pending events.")
		return nil
	}
	for _, e := range payload.Events {
		deadline := "none"
		if e.DeadlineMonth != nil {
			deadline = fmt.Sprintf("month %d", *e.DeadlineMonth)
		}
		danger.Printf("[%s] %s\n", e.Severity, e.Title)
		fmt.Printf("  %s\n", e.Description)
		fmt.Printf("  instance=%s fired=month %d deadline=%s\n", e.InstanceID, e.FiredAtMonth, deadline)
		for _, r := range e.Responses {
			fmt.Printf("    - %s: %s\n", r.ID, r.Label)
		}
	}
	fmt.Println()
	return nil
}

func renderRespondOutcome(raw map[string]any) error {
	out, err := decodeInto[game.RespondOutcome](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== EVENT RESOLVED: %s ==\n", out.Outcome.EventID)
	fmt.Printf("Response:    %s\n", out.Outcome.ResponseID)
	for _, d := range out.Outcome.Applied {
		fmt.Printf("%-22s %12s\n", d.Metric, signedMoney(d.Amount))
	}
	fmt.Printf("Cash now:    %s\n", formatMoney(out.State.Cash))
	for _, e := range out.Chained {
		printWarn(fmt.Sprintf("Follow-up event: [%s] %s (instance=%s)", e.Severity, e.Title, e.InstanceID))
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any, title string) error {
	payload, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", strings.ToUpper(title))
	if len(payload.Rows) == 0 {
		printInfo("No leaderboard rows yet.")
		return nil
	}
	fmt.Printf("%-6s %-18s %-22s %-14s %8s %8s\n", "RANK", "PLAYER", "COMPANY", "INDUSTRY", "MONTHS", "SCORE")
	for _, row := range payload.Rows {
		fmt.Printf("%-6d %-18s %-22s %-14s %8d %8.1f\n",
			row.Rank,
			truncate(row.Username, 18),
			truncate(row.CompanyName, 22),
			row.Industry,
			row.MonthsPlayed,
			row.OverallScore,
		)
	}
	fmt.Println()
	return nil
}

func renderPlayerStats(raw map[string]any) error {
	out, err := decodeInto[game.PlayerStats](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", strings.ToUpper(out.Username))
	fmt.Printf("Level:       %d (%s), %d XP\n", out.Level.Level, out.Level.Title, out.XP)
	fmt.Printf("Months:      %d played, %d profitable\n", out.Stats.MonthsPlayed, out.Stats.ProfitableMonths)
	fmt.Printf("Revenue:     %s lifetime\n", formatMoney(out.Stats.TotalRevenue))
	fmt.Printf("Profit:      %s lifetime\n", colorizeMoney(out.Stats.TotalProfit))
	fmt.Printf("Peak cash:   %s\n", formatMoney(out.Stats.PeakCash))
	fmt.Printf("Best score:  %.1f\n", out.Stats.BestOverallScore)
	fmt.Printf("Decisions:   %d  Events: %d  Games finished: %d\n",
		out.Stats.DecisionsMade, out.Stats.EventsResolved, out.Stats.GamesCompleted)

	fmt.Println()
	accent.Println("Achievements")
	if len(out.Achievements) == 0 {
		printInfo("None unlocked yet.")
	} else {
		for _, a := range out.Achievements {
			fmt.Printf("[%-8s] %-24s %s (+%d XP)\n", a.Tier, a.Title, a.Description, a.XP)
		}
	}
	fmt.Println()
	return nil
}

func renderSimpleOK(raw map[string]any, successMessage string) error {
	ok := false
	if v, has := raw["ok"]; has {
		switch t := v.(type) {
		case bool:
			ok = t
		case string:
			ok = strings.EqualFold(strings.TrimSpace(t), "true")
		}
	}
	if ok || successMessage != "" {
		printSuccess(successMessage)
		return nil
	}
	printInfo("Done.")
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeMoney(v float64) string {
	text := signedMoney(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizeScore(v float64) string {
	text := fmt.Sprintf("%.1f", v)
	switch {
	case v >= 70:
		return success.Sprint(text)
	case v >= 40:
		return warn.Sprint(text)
	default:
		return danger.Sprint(text)
	}
}

func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := int64(v)
	frac := int64(math.Round((v - float64(whole)) * 100))
	if frac >= 100 {
		whole++
		frac -= 100
	}
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func signedMoney(v float64) string {
	if v > 0 {
		return "+" + formatMoney(v)
	}
	return formatMoney(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
