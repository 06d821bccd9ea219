package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/app"
	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/server"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "document-qa",
		Short:         "Question answering over uploaded documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	var reset bool
	ingestCmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Index documents from disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestFiles(cmd.Context(), configPath, args, reset)
		},
	}
	ingestCmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the index before ingesting")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd.Context(), configPath, strings.Join(args, " "))
		},
	}

	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
	}
}

func loadApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Log)
	log.Debug().Str("config", configPath).Str("backend", cfg.Index.Backend).Msg("Loaded config")

	return app.New(ctx, cfg)
}

func serve(ctx context.Context, configPath string) error {
	a, err := loadApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(a.Config.Server, a.RAG, a.Pipeline)
	return srv.Run(ctx)
}

func ingestFiles(ctx context.Context, configPath string, paths []string, reset bool) error {
	a, err := loadApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if reset {
		if err := a.Reset(ctx); err != nil {
			return err
		}
	}

	total := 0
	for _, path := range paths {
		file, err := a.Pipeline.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		total += file.Chunks
	}
	log.Info().Int("files", len(paths)).Int("chunks", total).Msg("Ingestion completed")
	return nil
}

func ask(ctx context.Context, configPath, question string) error {
	a, err := loadApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.RAG.Ask(ctx, question)
	if err != nil {
		return err
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", question)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, s := range answer.Sources {
		fmt.Printf("%s\n", filepath.Base(s))
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Response)

	if log.Debug().Enabled() {
		helper.PrettyPrint(answer)
	}
	return nil
}
