package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/empire-ui/report-ocr-service/internal/ai"
	"github.com/empire-ui/report-ocr-service/internal/auth"
	"github.com/empire-ui/report-ocr-service/internal/config"
	"github.com/empire-ui/report-ocr-service/internal/intake"
	"github.com/empire-ui/report-ocr-service/internal/ocr"
	"github.com/empire-ui/report-ocr-service/internal/pipeline"
	"github.com/empire-ui/report-ocr-service/internal/render"
	"github.com/empire-ui/report-ocr-service/internal/services"
)

func newReportCmd() *cobra.Command {
	var (
		format   string
		provider string
		apiKey   string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "report FILE...",
		Short: "Run the report pipeline on local page images and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// Logs go to stderr so stdout carries only the report
			cfg.Log.Pretty = true
			logger := newLogger(cfg.Log)
			ctx := logger.WithContext(cmd.Context())

			engine, err := ocr.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create OCR engine: %w", err)
			}

			batch, err := intake.FromFiles(args)
			if err != nil {
				return err
			}

			var writer pipeline.SectionWriter
			p, err := ai.NewProvider(cfg.AI, provider, apiKey)
			switch {
			case errors.Is(err, ai.ErrProviderNotConfigured):
				logger.Warn().Err(err).Msg("text provider not configured, sections will use the fallback")
			case err != nil:
				return err
			default:
				writer = ai.NewAnalyzer(p)
			}

			if d := cfg.Pipeline.RequestTimeout; d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			start := time.Now()
			resp, err := pipeline.New(engine, cfg.Pipeline).Run(ctx, batch.Images, apiKey, writer)
			if err != nil {
				return err
			}
			review := services.NewReportValidator().Validate(resp)
			logger.Info().
				Int("pages", len(batch.Images)).
				Bool("partial", resp.Partial).
				Bool("needs_review", review.NeedsReview).
				Dur("took", time.Since(start)).
				Msg("report generated")
			for _, w := range review.Warnings {
				logger.Warn().Str("field", w.Field).Str("code", w.Code).Msg(w.Message)
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				out = file
			}
			return render.Render(out, f, resp)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, text, markdown or html")
	cmd.Flags().StringVar(&provider, "provider", "", "Text provider (defaults to ai.default_provider)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key overriding the configured OCR and text provider keys")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to this file instead of stdout")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the report API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret (JWT_SECRET) is not set")
			}
			token, err := auth.GenerateToken(cfg.Auth.JWTSecret, subject, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject; owns the reports created with the token")
	cmd.Flags().StringVar(&email, "email", "", "Optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}
