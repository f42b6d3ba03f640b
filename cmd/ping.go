package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pdf2md/internal/config"
	"pdf2md/internal/logger"
	"pdf2md/internal/ocr"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the OCR backend is reachable",
	Long: `Send a lightweight request to the configured OCR backend and report whether it
answers. For OpenAI-compatible servers this lists the served models and warns
when the configured model is not among them. Backends without a health check
only verify that a client can be created.`,
	Example: `  pdf2md ping
  pdf2md ping --endpoint http://gpu-box:8000/v1 --model LightOnOCR-2-1B`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("ping")

		ctx, cancel := createContext(0, log)
		defer cancel()

		client, closeClient, err := createOCRClient(ctx, log)
		if err != nil {
			return err
		}
		defer closeClient()

		target := cfg.OCR.Backend
		if target == config.BackendOpenAI {
			target = cfg.OCR.Endpoint
		}

		if err := client.Ping(ctx); err != nil {
			log.Error().Err(err).Str("target", target).Msg("Ping failed")
			if errors.Is(err, ocr.ErrClientError) {
				return fmt.Errorf("%s answered but rejected the request. Check OCR_API_KEY: %w", target, err)
			}
			return fmt.Errorf("%s is not reachable: %w", target, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (model %s)\n", target, cfg.OCR.Model)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
