package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/database"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/server"
	"github.com/customeros/mailsync/services"
)

func main() {
	app := &cli.App{
		Name:  "mailsync",
		Usage: "imports mailbox messages, threads them and links them to orders",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
			{
				Name:  "backfill",
				Usage: "Import the most recent messages of a mailbox folder",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mailbox", Usage: "mailbox id", Required: true},
					&cli.StringFlag{Name: "folder", Usage: "folder name, defaults to the first configured folder"},
					&cli.IntFlag{Name: "limit", Usage: "number of messages, defaults to SYNC_BACKFILL_LIMIT"},
					&cli.BoolFlag{Name: "force", Usage: "backfill even when the folder already has a checkpoint"},
				},
				Action: backfill,
			},
			{
				Name:  "sync",
				Usage: "Run an incremental sync of one mailbox",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mailbox", Usage: "mailbox id", Required: true},
				},
				Action: syncMailbox,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is empty")
	}

	mailsyncDB, err := database.NewConnection(cfg.MailsyncDatabaseConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("mailsync database initialization failed: %w", err)
	}
	return cfg, mailsyncDB, nil
}

func migrate(_ *cli.Context) error {
	_, mailsyncDB, err := setup()
	if err != nil {
		return err
	}
	if err := repository.MigrateMailsyncDB(mailsyncDB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func runServer(_ *cli.Context) error {
	cfg, mailsyncDB, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("MailSync starting up...")

	srv, err := server.NewServer(cfg, mailsyncDB)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func cliServices() (*services.Services, error) {
	cfg, mailsyncDB, err := setup()
	if err != nil {
		return nil, err
	}
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	return services.InitServices(cfg, appLogger, repository.InitRepositories(mailsyncDB))
}

func backfill(c *cli.Context) error {
	svcs, err := cliServices()
	if err != nil {
		return err
	}
	defer svcs.EventsService.Close()

	summary, err := svcs.SyncService.Backfill(cliContext(c), c.String("mailbox"), c.String("folder"), c.Int("limit"), c.Bool("force"), enum.SyncTriggerCLI)
	printSummary(summary)
	return err
}

func syncMailbox(c *cli.Context) error {
	svcs, err := cliServices()
	if err != nil {
		return err
	}
	defer svcs.EventsService.Close()

	summary, err := svcs.SyncService.SyncMailbox(cliContext(c), c.String("mailbox"), enum.SyncTriggerCLI)
	printSummary(summary)
	return err
}

func cliContext(c *cli.Context) context.Context {
	return utils.SetAppSourceInContext(c.Context, "mailsync-cli")
}

func printSummary(summary *dto.MailboxSyncCompleted) {
	if summary == nil {
		return
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Printf("could not encode summary: %v", err)
		return
	}
	fmt.Println(string(out))
}
