package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/internal/database"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/internal/utils"
	"github.com/customeros/mailbackup/server"
	"github.com/customeros/mailbackup/services"
)

const appSourceCLI = "mailbackup-cli"

func main() {
	var (
		cfg *config.Config
		db  *gorm.DB
	)

	app := &cli.App{
		Name:  "mailbackup",
		Usage: "back up IMAP and POP3 mailboxes",
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = config.InitConfig()
			if err != nil {
				return errors.Wrap(err, "config initialization failed")
			}
			db, err = database.InitDatabase(cfg.DatabaseConfig)
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
						return errors.Wrap(err, "database migration failed")
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("Mailbackup starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return errors.Wrap(err, "server setup failed")
					}
					if err := srv.Run(); err != nil {
						return errors.Wrap(err, "server startup failed")
					}

					log.Println("Shutdown complete")
					return nil
				},
			},
			{
				Name:  "sync",
				Usage: "Run one synchronization and print the run summaries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "account",
						Usage: "account id to sync; all sync-enabled accounts when empty",
					},
				},
				Action: func(c *cli.Context) error {
					return runSync(c.Context, cfg, db, c.String("account"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runSync(ctx context.Context, cfg *config.Config, db *gorm.DB, accountID string) error {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(db))
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = utils.SetAppSourceInContext(ctx, appSourceCLI)

	var result any
	if accountID != "" {
		result, err = svcs.SyncService.SyncAccountByID(ctx, accountID)
	} else {
		result, err = svcs.SyncService.SyncAll(ctx)
	}

	out, marshalErr := json.MarshalIndent(result, "", "  ")
	if marshalErr == nil {
		fmt.Println(string(out))
	}
	return err
}
