package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdf2md/internal/config"
	"pdf2md/internal/logger"
)

var version = "1.0.0"

// cfg is loaded once flags are parsed, before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pdf2md",
	Short: "Convert PDF documents to Markdown with a remote OCR model",
	Long: `pdf2md renders every page of a PDF to an image, sends the pages concurrently
to an OCR or vision-language model endpoint, and writes the recognized text as
Markdown.

The default backend is any OpenAI-compatible chat-completions server (vLLM,
LM Studio, llama.cpp) serving a vision model such as LightOnOCR. Google Gemini,
Cloud Vision and Document AI are available as alternative backends.

Settings are read from flags, then environment variables (a .env file in the
working directory is loaded first), then built-in defaults.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("backend", "", "OCR backend: openai, gemini, vision or documentai (env OCR_BACKEND)")
	flags.String("endpoint", "", "OpenAI-compatible API base URL (env OCR_ENDPOINT, default http://localhost:9090/v1)")
	flags.String("model", "", "Model name (env OCR_MODEL, default LightOnOCR-2-1B)")
	flags.String("prompt", "", "Instruction sent with every page image (env OCR_PROMPT)")
	flags.Int("workers", 0, "Maximum concurrent OCR requests (env OCR_MAX_WORKERS, default 8)")
	flags.Float64("timeout", 0, "Per-request timeout in seconds (env OCR_REQUEST_TIMEOUT_SECONDS, default 120)")
	flags.Int("max-retries", 0, "Retries per page after the first attempt (env OCR_MAX_RETRIES, default 3)")
	flags.Float64("rps", 0, "Maximum requests per second across workers, 0 for unlimited (env OCR_REQUESTS_PER_SECOND)")
	flags.Bool("preflight", false, "Check the endpoint is reachable before converting (env OCR_PREFLIGHT)")
	flags.Int("dpi", 0, "Render resolution in DPI (env RENDER_DPI, default 200)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
}
