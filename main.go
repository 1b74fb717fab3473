package main

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"panostitch/config"
)

func main() {
	if err := Execute(); err != nil {
		logrus.WithError(err).Fatal("panostitch failed")
	}
}

var (
	rootCmd = &cobra.Command{
		Use:           "panostitch",
		Short:         "Estimate and refine panorama cameras from pairwise correspondences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	homographyCmd = &cobra.Command{
		Use:   "homography",
		Short: "Fit a homography to one correspondence CSV with RANSAC",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			report, err := app.Homography(pairsFile)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
	estimateCmd = &cobra.Command{
		Use:   "estimate",
		Short: "Estimate every camera of a project and run bundle adjustment",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			estimate, report, err := app.Estimate(projectFile)
			if err != nil {
				return err
			}
			if err := app.Export(estimate, csvOut, jsonOut); err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}

	configFile  string
	logLevel    string
	pairsFile   string
	projectFile string
	csvOut      string
	jsonOut     string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides log_level of the configuration")

	homographyCmd.Flags().StringVarP(&pairsFile, "pairs", "p", "", "correspondence CSV (from_x,from_y,to_x,to_y)")
	homographyCmd.MarkFlagRequired("pairs")

	estimateCmd.Flags().StringVarP(&projectFile, "project", "p", "", "project manifest (JSON)")
	estimateCmd.Flags().StringVarP(&csvOut, "out", "o", "", "write refined cameras as CSV")
	estimateCmd.Flags().StringVar(&jsonOut, "json", "", "write refined cameras as JSON")
	estimateCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(homographyCmd, estimateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(path, level string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if level != "" {
		cfg.LogLevel = level
		if err := config.Validate(cfg); err != nil {
			return nil, errors.Wrap(err, "--log-level")
		}
	}
	return cfg, nil
}

func newApp() (*App, error) {
	cfg, err := loadConfig(configFile, logLevel)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(level)
	return NewApp(cfg, logger), nil
}

func writeReport(w io.Writer, report interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(report), "writing report")
}
