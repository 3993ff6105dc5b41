// Command admin is the maintenance CLI: schema migrations, badge catalog and
// roster imports. It reads the same environment as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alem-hub/alem-gamification/config"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/catalog"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence/redis"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	stores *persistence.Stores
	cfg    *config.Config
	out    io.Writer
	log    *slog.Logger
}

func main() {
	if len(os.Args) < 2 {
		(&commandLine{out: os.Stdout}).printUsage()
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	stores, err := persistence.Open(ctx, persistence.Options{
		Driver:      cfg.Database.Driver,
		PostgresURL: cfg.Database.URL,
		Pool:        postgres.DefaultPoolOptions(),
		SQLitePath:  cfg.Database.SQLitePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	cli := &commandLine{
		stores: stores,
		cfg:    cfg,
		out:    os.Stdout,
		log:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                       - apply pending migrations")
	fmt.Fprintln(cli.out, "  rollback                      - revert the latest migration")
	fmt.Fprintln(cli.out, "  status                        - print the schema version")
	fmt.Fprintln(cli.out, "  seed-badges [-file FILE]      - upsert badge definitions (built-in catalog by default)")
	fmt.Fprintln(cli.out, "  export-badges                 - print stored badge definitions as YAML")
	fmt.Fprintln(cli.out, "  import-roster -file FILE      - upsert students and class membership")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seed-badges", flag.ExitOnError)
	seedFile := seedCmd.String("file", "", "Badge catalog YAML. The built-in catalog is used when empty.")

	rosterCmd := flag.NewFlagSet("import-roster", flag.ExitOnError)
	rosterFile := rosterCmd.String("file", "", "Roster YAML with students and their classes.")

	switch args[1] {
	case "migrate":
		if err := cli.stores.Migrate(ctx); err != nil {
			return err
		}
		return cli.status(ctx)

	case "rollback":
		if err := cli.stores.Rollback(ctx); err != nil {
			return err
		}
		return cli.status(ctx)

	case "status":
		return cli.status(ctx)

	case "seed-badges":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.seedBadges(ctx, *seedFile)

	case "export-badges":
		defs, err := cli.stores.Badges.ListDefinitions(ctx, false)
		if err != nil {
			return err
		}
		return catalog.WriteBadges(cli.out, defs)

	case "import-roster":
		if err := rosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rosterFile == "" {
			rosterCmd.Usage()
			return errHelp
		}
		return cli.importRoster(ctx, *rosterFile)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) status(ctx context.Context) error {
	v, err := cli.stores.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "driver: %s\nschema version: %d\n", cli.stores.Driver, v)
	return nil
}

func (cli *commandLine) seedBadges(ctx context.Context, path string) error {
	defs, err := catalog.DefaultBadges()
	if path != "" {
		defs, err = catalog.LoadBadgesFile(path)
	}
	if err != nil {
		return err
	}
	if err := cli.stores.Badges.UpsertDefinitions(ctx, defs); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "upserted %d badge definitions\n", len(defs))

	// Cached leaderboards carry badge counts.
	cli.purgeLeaderboardCache(ctx)
	return nil
}

func (cli *commandLine) importRoster(ctx context.Context, path string) error {
	students, err := catalog.LoadRosterFile(path)
	if err != nil {
		return err
	}
	if err := cli.stores.Roster.Upsert(ctx, students); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "upserted %d students\n", len(students))

	// Class leaderboards depend on membership.
	cli.purgeLeaderboardCache(ctx)
	return nil
}

// purgeLeaderboardCache is best effort: entries expire by TTL anyway.
func (cli *commandLine) purgeLeaderboardCache(ctx context.Context) {
	if cli.cfg == nil || cli.cfg.Redis.Disabled {
		return
	}
	cache, err := redis.NewCache(ctx, redis.Config{
		URL:         cli.cfg.Redis.URL,
		Addr:        cli.cfg.Redis.Addr(),
		Password:    cli.cfg.Redis.Password,
		DB:          cli.cfg.Redis.DB,
		DialTimeout: cli.cfg.Redis.DialTimeout,
		KeyPrefix:   cli.cfg.Redis.KeyPrefix,
	})
	if err != nil {
		cli.log.Warn("redis unavailable, leaderboard cache not purged", "error", err)
		return
	}
	defer cache.Close()

	if err := redis.NewLeaderboardCache(cache).Purge(ctx); err != nil {
		cli.log.Warn("failed to purge leaderboard cache", "error", err)
	}
}
