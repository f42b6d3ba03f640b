package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pdf2md/internal/logger"
	"pdf2md/internal/ocr"
	"pdf2md/internal/output"
	"pdf2md/internal/pipeline"
	"pdf2md/internal/render"
)

// ErrPagesFailed is returned in --strict mode when at least one page could not be read.
var ErrPagesFailed = errors.New("some pages could not be converted")

var convertCmd = &cobra.Command{
	Use:   "convert [pdf-file]",
	Short: "Convert a PDF to Markdown",
	Long: `Render every page of a PDF, run OCR on the pages concurrently and write two
Markdown files:

  <output>.md                   text of all pages, separated by blank lines
  <output>_with_separators.md   the same text with a "## Page N" heading per page

Pages that still fail after all retries are left out of the first file and
marked "[OCR failed: ...]" in the second. The command succeeds as long as the
document could be processed, unless --strict is given.

Rendering requires poppler-utils (pdftoppm).`,
	Example: `  # Convert with a local vLLM server on the default endpoint
  pdf2md convert scan.pdf

  # Choose the output location and be gentler on the server
  pdf2md convert scan.pdf -o out/scan.md --workers 4 --max-retries 5

  # Upload the results to S3
  pdf2md convert scan.pdf -o s3://my-bucket/docs/scan.md

  # Use Gemini instead of a local model
  GEMINI_API_KEY=... pdf2md convert scan.pdf --backend gemini --model gemini-2.5-flash`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("output", "o", "", "Output Markdown path or s3:// URL (default: next to the PDF)")
	convertCmd.Flags().String("separated-output", "", "Path of the page-separated output (default: <output>_with_separators.md)")
	convertCmd.Flags().Int("deadline", 0, "Overall time limit in seconds, 0 for none")
	convertCmd.Flags().Bool("strict", false, "Exit with an error if any page fails")
	convertCmd.Flags().Bool("stdout", false, "Also print the concatenated Markdown to stdout")
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("convert")

	outputPath, _ := cmd.Flags().GetString("output")
	separatedPath, _ := cmd.Flags().GetString("separated-output")
	deadline, _ := cmd.Flags().GetInt("deadline")
	strict, _ := cmd.Flags().GetBool("strict")
	toStdout, _ := cmd.Flags().GetBool("stdout")

	pdfPath := args[0]
	if outputPath == "" {
		outputPath = output.DefaultPath(pdfPath)
	}
	if separatedPath == "" {
		separatedPath = output.SeparatedPath(outputPath)
	}

	log.Info().
		Str("file", pdfPath).
		Str("output", outputPath).
		Str("separated_output", separatedPath).
		Str("backend", cfg.OCR.Backend).
		Str("model", cfg.OCR.Model).
		Int("workers", cfg.OCR.MaxWorkers).
		Int("max_retries", cfg.OCR.MaxRetries).
		Msg("Starting conversion")

	ctx, cancel := createContext(deadline, log)
	defer cancel()

	client, closeClient, err := createOCRClient(ctx, log)
	if err != nil {
		return err
	}
	defer closeClient()

	renderer := render.NewPoppler(cfg.Render.Command, cfg.Render.DPI)
	if err := renderer.Available(); err != nil {
		return handleConvertError(err, log)
	}

	converter := pipeline.NewConverter(
		renderer,
		client,
		pipeline.Options{
			Workers:   cfg.OCR.MaxWorkers,
			Preflight: cfg.OCR.Preflight,
		},
	)

	start := time.Now()
	doc, err := converter.Convert(ctx, pdfPath)
	if err != nil {
		return handleConvertError(err, log)
	}

	sink := output.NewSink(cfg.S3)
	if err := sink.Write(ctx, outputPath, []byte(doc.ConcatenatedText)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := sink.Write(ctx, separatedPath, []byte(doc.SeparatedText)); err != nil {
		return fmt.Errorf("failed to write separated output: %w", err)
	}

	if toStdout {
		if _, err := io.WriteString(cmd.OutOrStdout(), doc.ConcatenatedText+"\n"); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	failed := doc.FailedPages()
	fmt.Fprintf(cmd.ErrOrStderr(), "Converted %d pages in %s: %s, %s\n",
		doc.PageCount(), time.Since(start).Round(time.Millisecond), outputPath, separatedPath)
	if len(failed) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: OCR failed for pages %s\n", joinInts(failed))
		if strict {
			return fmt.Errorf("%w: %d of %d", ErrPagesFailed, len(failed), doc.PageCount())
		}
	}
	return nil
}

// createContext returns a context cancelled on SIGINT/SIGTERM and, when
// timeoutSecs > 0, after that many seconds.
func createContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	if timeoutSecs > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling conversion")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createOCRClient builds the configured backend and wraps it with the retry
// policy. The returned func releases backend connections.
func createOCRClient(ctx context.Context, log zerolog.Logger) (*ocr.Client, func(), error) {
	httpClient := ocr.NewHTTPClient(cfg.OCR.MaxWorkers)

	recognizer, err := ocr.NewRecognizer(ctx, cfg, httpClient)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().
				Err(err).
				Msg("Google Cloud credentials not configured")
			return nil, nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
				"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n" +
				"3. Use Application Default Credentials (if gcloud is configured):\n" +
				"   gcloud auth application-default login")
		}
		log.Error().
			Err(err).
			Str("backend", cfg.OCR.Backend).
			Msg("Failed to create OCR backend")
		return nil, nil, fmt.Errorf("failed to create OCR backend: %w", err)
	}

	closeFn := func() {
		httpClient.CloseIdleConnections()
		if c, ok := recognizer.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close OCR backend")
			}
		}
	}

	log.Debug().
		Str("backend", cfg.OCR.Backend).
		Msg("OCR backend created successfully")
	return ocr.NewClient(recognizer, ocr.ClientConfigFrom(cfg)), closeFn, nil
}

// handleConvertError provides user-friendly error messages for conversion failures
func handleConvertError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Conversion failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("conversion timed out. Try increasing --deadline or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("conversion was canceled")
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%s not found. Install poppler-utils (apt install poppler-utils, brew install poppler): %w",
			cfg.Render.Command, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("PDF file not found: %w", err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("permission denied accessing PDF file: %w", err)
	case errors.Is(err, render.ErrNotPDF):
		return fmt.Errorf("input is not a PDF document: %w", err)
	case errors.Is(err, pipeline.ErrEndpointUnreachable):
		return fmt.Errorf("OCR endpoint %s is not reachable. Check that the model server is running and OCR_ENDPOINT is correct: %w",
			cfg.OCR.Endpoint, err)
	case errors.Is(err, pipeline.ErrIncompleteResults):
		return fmt.Errorf("internal error, page results are incomplete: %w", err)
	case errors.Is(err, ocr.ErrClientError):
		return fmt.Errorf("the OCR endpoint rejected the request. Check the model name and API key: %w", err)
	default:
		return fmt.Errorf("conversion failed: %w", err)
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
