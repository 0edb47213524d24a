package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jurisdesk/backupd/internal/core/service"
	"github.com/jurisdesk/backupd/internal/engine"
	"github.com/jurisdesk/backupd/internal/infrastructure/sqlite"
	"github.com/jurisdesk/backupd/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "backupd",
	Short: "Backupd - backup orchestration for the JurisDesk platform",
	Long: `Backupd manages data-protection jobs for the JurisDesk legal-services platform.

It provides:
- On-demand and scheduled backup jobs with per-job settings snapshots
- Bounded concurrent execution per settings profile
- Compressed and optionally encrypted artifacts with checksums
- Atomic cascade deletion of jobs and their records
- REST API for the platform's admin surface`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			// token can run without a config file; it prompts for the secret.
			if cmd.Name() == "token" {
				cfg = &config.Config{LogLevel: config.DefaultLogLevel}
			} else {
				return fmt.Errorf("failed to load config: %w", err)
			}
		}

		logger = newLogger(cfg)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/backupd/config.yml)")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.IsDevMode() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// services wires the persistence layer, engine and domain services.
type services struct {
	DB              *sqlite.DB
	Runner          *engine.Runner
	BackupService   *service.BackupService
	ScheduleService *service.ScheduleService
}

func initServices() (*services, error) {
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	backupRepo := sqlite.NewBackupRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)
	logRepo := sqlite.NewLogRepository(db)
	fileRepo := sqlite.NewFileRepository(db)

	limiter := engine.NewLimiter()
	source := engine.NewDirSource(cfg.DataDir)
	archiver := engine.NewArchiver(cfg.EncryptionKey)

	runner := engine.NewRunner(
		backupRepo, logRepo, fileRepo,
		limiter, source, archiver,
		cfg.BackupDir, cfg.ExecutionTimeout, logger,
	)

	backupService := service.NewBackupService(backupRepo, logRepo, runner, cfg.StopTimeout, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, backupRepo, backupService, logger)

	return &services{
		DB:              db,
		Runner:          runner,
		BackupService:   backupService,
		ScheduleService: scheduleService,
	}, nil
}

func (s *services) Close() {
	s.Runner.Wait()
	_ = s.DB.Close()
}
