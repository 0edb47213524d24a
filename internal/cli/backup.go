package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

var (
	backupName        string
	backupType        string
	backupCompression string
	backupEncrypt     bool
	backupExclude     []string
	backupMaxConc     int
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run a one-off backup job",
	Long:  "Create and execute a backup job from the command line, waiting for it to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		settings := &domain.BackupSettings{
			Compression:   domain.CompressionLevel(backupCompression),
			Encryption:    backupEncrypt,
			ExcludedPaths: backupExclude,
			MaxConcurrent: backupMaxConc,
		}
		if settings.ExcludedPaths == nil {
			settings.ExcludedPaths = []string{}
		}

		ctx := cmd.Context()
		job, err := services.BackupService.CreateJob(ctx, backupName, domain.BackupType(backupType), settings)
		if err != nil {
			return fmt.Errorf("failed to create backup job: %w", err)
		}

		logger.Info().Str("backup_id", job.ID).Msg("backup job created")
		services.BackupService.StartJob(job)
		services.Runner.Wait()

		final, err := services.BackupService.GetJob(context.Background(), job.ID)
		if err != nil {
			return fmt.Errorf("failed to read backup result: %w", err)
		}

		fmt.Printf("backup %s finished with status %s\n", final.ID, final.Status)
		if final.Status != domain.BackupStatusCompleted {
			return fmt.Errorf("backup did not complete")
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupName, "name", "", "job name (generated if empty)")
	backupCmd.Flags().StringVar(&backupType, "type", "full", "backup type: full or incremental")
	backupCmd.Flags().StringVar(&backupCompression, "compression", "medium", "compression level: low, medium or high")
	backupCmd.Flags().BoolVar(&backupEncrypt, "encrypt", false, "encrypt artifacts")
	backupCmd.Flags().StringArrayVar(&backupExclude, "exclude", nil, "path pattern to exclude (repeatable)")
	backupCmd.Flags().IntVar(&backupMaxConc, "max-concurrent", 1, "concurrency cap for this settings profile")
	rootCmd.AddCommand(backupCmd)
}
