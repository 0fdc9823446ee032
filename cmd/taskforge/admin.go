package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/TaskForge/internal/adapter/postgres"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain/task"
)

// runAdmin dispatches admin subcommands (migrate-status, migrate-up,
// migrate-rollback, list-tasks).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	case "migrate-up":
		return runAdminMigrateUp(args[1:])
	case "migrate-rollback":
		return runAdminMigrateRollback(args[1:])
	case "list-tasks":
		return runAdminListTasks(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: taskforge admin <command> [options]

Commands:
  migrate-status     Show the current schema migration version
  migrate-up         Apply all pending schema migrations
  migrate-rollback   Roll back schema migrations (default: one step)
  list-tasks         List pending tasks in selection order
  help               Show this help message

Examples:
  taskforge admin migrate-status
  taskforge admin migrate-rollback --steps 2 -y
  taskforge admin list-tasks --sort time --order asc --limit 20
`)
}

func loadAdminStore() (*postgres.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}
	return postgres.NewStore(pool), cleanup, nil
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	version, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}

	fmt.Printf("Schema version: %d\n", version)
	return nil
}

func runAdminMigrateUp(args []string) error {
	fs := flag.NewFlagSet("migrate-up", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.RunMigrations(context.Background(), cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Migrations applied")
	return nil
}

func runAdminMigrateRollback(args []string) error {
	fs := flag.NewFlagSet("migrate-rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migration steps to roll back")
	yes := fs.Bool("y", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	if !*yes {
		ok, err := confirmRollback(*steps)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Aborted")
			return nil
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return fmt.Errorf("rollback migrations: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Rolled back %d migration step(s)\n", *steps)
	return nil
}

func runAdminListTasks(args []string) error {
	fs := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	sortBy := fs.String("sort", "", "sort field: time or submitted_at (default: time)")
	order := fs.String("order", "", "sort order: asc or desc (default: asc)")
	limit := fs.String("limit", "", "maximum number of tasks to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params, err := task.ParseListParams(*sortBy, *order, *limit)
	if err != nil {
		return err
	}

	store, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	tasks, err := store.ListPendingTasks(context.Background(), params)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No pending tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK_ID\tEST_MIN\tSTATUS\tSUBMITTED_AT\tDESCRIPTION")
	for i := range tasks {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			tasks[i].TaskStrID, tasks[i].EstimatedTimeMinutes, tasks[i].Status,
			tasks[i].SubmittedAt.Format(time.RFC3339), tasks[i].Description)
	}
	return w.Flush()
}

// confirmRollback asks for interactive confirmation before destructive
// schema changes. Without a terminal on stdin the caller must pass -y.
func confirmRollback(steps int) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal; pass -y to confirm rollback")
	}

	fmt.Fprintf(os.Stderr, "Roll back %d migration step(s)? [y/N]: ", steps)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
