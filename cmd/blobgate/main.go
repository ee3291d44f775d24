package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"blobgate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "blobgate",
	Short:   "Blob storage gateway with pluggable backends",
	Long: `Blobgate is a small blob storage gateway that exposes a REST API
over interchangeable content backends: local filesystem, S3-compatible
object storage, FTP, and a SQL database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "content backend: fs, s3, ftp, db (default: fs, env: BLOBGATE_BACKEND_TYPE)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: BLOBGATE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: blobgate.db, env: BLOBGATE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-path", "", "filesystem backend directory (default: ./data, env: BLOBGATE_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("auth-token", "", "static bearer token; empty disables auth (env: BLOBGATE_AUTH_TOKEN)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var files []string
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		files = append(files, configFile)
	}
	return config.Load(files, cmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
