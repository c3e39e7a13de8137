package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"week-planner/internal/app"
	"week-planner/internal/commit"
	"week-planner/internal/config"
	"week-planner/internal/export"
	"week-planner/internal/gcal"
	"week-planner/internal/history"
	"week-planner/internal/planner"
	"week-planner/internal/tasks"
	"week-planner/internal/week"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	env, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	switch os.Args[1] {
	case "plan":
		cmdPlan(ctx, env, os.Args[2:])
	case "busy":
		cmdBusy(ctx, env, os.Args[2:])
	case "history":
		cmdHistory(ctx, env, os.Args[2:])
	case "cleanup":
		cmdCleanup(ctx, env, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: week-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  plan       Build a weekly plan (dry-run by default; --push commits it)")
	fmt.Println("  busy       List merged busy blocks for a week")
	fmt.Println("  history    Show recent planning runs")
	fmt.Println("  cleanup    Remove old run records")
}

func loadBlueprint(env *config.Env) *config.Blueprint {
	bp, err := config.Load(env.BlueprintPath)
	if err != nil {
		log.Fatalf("Failed to load blueprint: %v", err)
	}
	return bp
}

func credentials(env *config.Env) gcal.Credentials {
	if err := env.RequireCredentials(); err != nil {
		log.Fatalf("Failed to locate credentials: %v", err)
	}
	if env.GoogleServiceAccountFile != "" {
		return gcal.ServiceAccountKey{Path: env.GoogleServiceAccountFile}
	}
	return gcal.TokenFile{Path: env.GoogleTokenFile}
}

func newApp(ctx context.Context, env *config.Env, bp *config.Blueprint, withTasks bool) *app.App {
	creds := credentials(env)
	client, err := gcal.NewClient(ctx, creds, bp.Location())
	if err != nil {
		log.Fatalf("Failed to initialize calendar client: %v", err)
	}

	hist, err := history.Open(env.HistoryDBPath)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}

	var taskClient *tasks.Client
	if withTasks {
		ts, err := creds.TokenSource(ctx)
		if err != nil {
			log.Fatalf("Failed to build token source: %v", err)
		}
		taskClient, err = tasks.NewClient(ctx, ts)
		if err != nil {
			log.Fatalf("Failed to initialize tasks client: %v", err)
		}
	}

	return app.NewApp(bp, client, hist, taskClient)
}

// resolveWeek parses --week, defaulting to next week's Monday.
func resolveWeek(weekFlag string, loc *time.Location) time.Time {
	if weekFlag == "" {
		return week.NextMonday(time.Now().In(loc))
	}
	monday, err := week.ParseISOWeek(weekFlag)
	if err != nil {
		log.Fatalf("Invalid --week: %v", err)
	}
	return monday
}

func cmdPlan(ctx context.Context, env *config.Env, args []string) {
	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	weekFlag := planCmd.String("week", "", "ISO week, e.g. 2026-W37; defaults to next week")
	push := planCmd.Bool("push", false, "Commit the plan to the calendar (default is dry-run)")
	partial := planCmd.Bool("partial", false, "Plan even if some calendars fail to load")
	icsPath := planCmd.String("ics", "", "Write the dry-run plan to an .ics file")
	followUps := planCmd.Bool("follow-ups", false, "Push unresolved demands to Google Tasks")
	planCmd.Parse(args)

	bp := loadBlueprint(env)
	application := newApp(ctx, env, bp, *followUps)
	weekStart := resolveWeek(*weekFlag, bp.Location())

	plan, err := application.Plan(ctx, weekStart, *partial)
	if err != nil {
		log.Fatalf("Planning failed: %v", err)
	}
	printPlan(plan, bp.Location())

	if *icsPath != "" {
		if err := export.WriteICS(plan, *icsPath); err != nil {
			log.Fatalf("ICS export failed: %v", err)
		}
		fmt.Printf("\nWrote preview to %s\n", *icsPath)
	}

	if *followUps {
		pushed, err := application.SyncFollowUps(ctx, plan)
		if err != nil {
			log.Fatalf("Follow-up sync failed: %v", err)
		}
		fmt.Printf("Pushed %d follow-up tasks.\n", pushed)
	}

	if !*push {
		fmt.Println("\nDry-run only. Use --push to create these events.")
		return
	}

	results, err := application.Commit(ctx, plan)
	if err != nil {
		log.Fatalf("Commit failed: %v", err)
	}
	printResults(results)
}

func cmdBusy(ctx context.Context, env *config.Env, args []string) {
	busyCmd := flag.NewFlagSet("busy", flag.ExitOnError)
	weekFlag := busyCmd.String("week", "", "ISO week, e.g. 2026-W37; defaults to next week")
	busyCmd.Parse(args)

	bp := loadBlueprint(env)
	application := newApp(ctx, env, bp, false)
	weekStart := resolveWeek(*weekFlag, bp.Location())
	window := application.WeekWindow(weekStart)

	blocks, err := application.ListBusy(ctx, window)
	if err != nil {
		log.Fatalf("Busy listing failed: %v", err)
	}

	fmt.Printf("Week: %s to %s (%s)\n", window.Start.Format("2006-01-02"),
		window.End.AddDate(0, 0, -1).Format("2006-01-02"), bp.Timezone)
	if len(blocks) == 0 {
		fmt.Println("No busy blocks.")
		return
	}
	for _, b := range blocks {
		marker := ""
		if b.Transparent {
			marker = " (free)"
		}
		fmt.Printf("[%s] %s | %s -> %s%s\n", b.Category, b.Summary,
			b.Interval.Start.In(bp.Location()).Format("Mon 15:04"),
			b.Interval.End.In(bp.Location()).Format("15:04"), marker)
	}
}

func cmdHistory(ctx context.Context, env *config.Env, args []string) {
	histCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := histCmd.Int("limit", 10, "Number of runs to show")
	histCmd.Parse(args)

	store, err := history.Open(env.HistoryDBPath)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	for _, r := range runs {
		mode := "dry-run"
		if r.Pushed {
			mode = "pushed"
		}
		fmt.Printf("%s  %s  %s  placed=%d unresolved=%d (%s)\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.PlanID,
			r.WeekStart.Format("2006-01-02"), r.Placed, r.Unresolved, mode)
	}
}

func cmdCleanup(ctx context.Context, env *config.Env, args []string) {
	cleanupCmd := flag.NewFlagSet("cleanup", flag.ExitOnError)
	days := cleanupCmd.Int("days", 90, "Keep records for the last N days")
	cleanupCmd.Parse(args)

	store, err := history.Open(env.HistoryDBPath)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	affected, err := store.Cleanup(ctx, *days)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	fmt.Printf("Removed %d old run records.\n", affected)
}

func printPlan(plan *planner.Plan, loc *time.Location) {
	placed := plan.Placed()
	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].Slot.Start.Before(placed[j].Slot.Start)
	})

	fmt.Printf("Plan %s (%d placed):\n", plan.ID, len(placed))
	for _, a := range placed {
		fmt.Printf("[%s] %s | %s -> %s\n", a.Demand.Category, a.Demand.Name,
			a.Slot.Start.In(loc).Format("Mon 15:04"), a.Slot.End.In(loc).Format("15:04"))
	}

	for _, a := range plan.Assignments {
		if a.Status == planner.StatusSkipped {
			fmt.Printf("skipped: %s (%s)\n", a.Demand.Name, a.Reason)
		}
	}
	if len(plan.Unresolved) > 0 {
		fmt.Printf("\nUnresolved (%d):\n", len(plan.Unresolved))
		for _, a := range plan.Unresolved {
			fmt.Printf("- %s: %s\n", a.Demand.Name, a.Reason)
		}
	}
}

func printResults(results []commit.Result) {
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Outcome, r.Assignment.Demand.Name)
		if r.ExternalID != "" {
			line += " (" + r.ExternalID + ")"
		}
		if r.Err != "" {
			line += ": " + r.Err
		}
		fmt.Println(line)
	}
}
