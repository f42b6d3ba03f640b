package render

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	rpdf "rsc.io/pdf"

	"pdf2md/internal/logger"
	"pdf2md/internal/ocr"
)

// DefaultDPI matches a 2.77x scale of the 72 DPI PDF user space.
const DefaultDPI = 200

// ErrNotPDF is returned for inputs that are empty, not regular files or lack
// a PDF header.
var ErrNotPDF = errors.New("not a PDF file")

// pdftoppm accepts a header anywhere in the first KiB.
const headerWindow = 1024

// CheckFile verifies that pdfPath is a readable, non-empty regular file with a
// %PDF- header. Missing or unreadable files return the *fs.PathError from open.
func CheckFile(pdfPath string) error {
	f, err := os.Open(pdfPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotPDF, pdfPath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrNotPDF, pdfPath)
	}

	head := make([]byte, headerWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read %s: %w", pdfPath, err)
	}
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return fmt.Errorf("%w: %s has no PDF header", ErrNotPDF, pdfPath)
	}
	return nil
}

// Poppler renders pages to PNG with the pdftoppm command line tool.
type Poppler struct {
	// Command is the pdftoppm executable; defaults to "pdftoppm".
	Command string

	// InfoCommand is the pdfinfo executable used when the document cannot be
	// opened by the built-in parser; defaults to "pdfinfo".
	InfoCommand string

	DPI int

	log zerolog.Logger
}

// NewPoppler creates a renderer using command at dpi.
func NewPoppler(command string, dpi int) *Poppler {
	if command == "" {
		command = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Poppler{
		Command:     command,
		InfoCommand: "pdfinfo",
		DPI:         dpi,
		log:         logger.WithComponent("render"),
	}
}

// Available reports an error wrapping exec.ErrNotFound when pdftoppm is not
// installed, whether Command is a bare name or a path.
func (p *Poppler) Available() error {
	_, err := exec.LookPath(p.Command)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist) && !errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("render command %s: %w: %w", p.Command, exec.ErrNotFound, err)
	default:
		return fmt.Errorf("render command %s: %w", p.Command, err)
	}
}

// PageCount checks the file, reads the page tree with rsc.io/pdf and falls
// back to pdfinfo for files it cannot parse (cross-reference streams, broken
// trailers).
func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	if err := CheckFile(pdfPath); err != nil {
		return 0, err
	}
	n, err := countPages(pdfPath)
	if err == nil {
		return n, nil
	}
	p.log.Debug().Err(err).Str("file", pdfPath).Msg("Falling back to pdfinfo for page count")

	n, infoErr := p.pdfinfoPages(ctx, pdfPath)
	if infoErr != nil {
		return 0, fmt.Errorf("count pages of %s: %w", pdfPath, errors.Join(err, infoErr))
	}
	return n, nil
}

func countPages(pdfPath string) (n int, err error) {
	// rsc.io/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	doc, err := rpdf.NewReader(f, info.Size())
	if err != nil {
		return 0, err
	}
	return doc.NumPage(), nil
}

func (p *Poppler) pdfinfoPages(ctx context.Context, pdfPath string) (int, error) {
	output, err := exec.CommandContext(ctx, p.InfoCommand, pdfPath).Output()
	if err != nil {
		return 0, fmt.Errorf("%s failed: %w", p.InfoCommand, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if total, convErr := strconv.Atoi(fields[1]); convErr == nil {
				return total, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("failed to determine page count from pdfinfo output")
}

// RenderPage rasterizes page index (0-based) to PNG.
func (p *Poppler) RenderPage(ctx context.Context, pdfPath string, index int) (ocr.PageImage, error) {
	workDir, err := os.MkdirTemp("", "pdf2md-page-")
	if err != nil {
		return ocr.PageImage{}, err
	}
	defer os.RemoveAll(workDir)

	page := strconv.Itoa(index + 1)
	prefix := filepath.Join(workDir, "page")
	args := []string{
		"-png",
		"-r", strconv.Itoa(p.DPI),
		"-f", page,
		"-l", page,
		"-singlefile",
		pdfPath,
		prefix,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ocr.PageImage{}, fmt.Errorf("%s failed on page %d: %w: %s",
			p.Command, index+1, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return ocr.PageImage{}, fmt.Errorf("rendered image not found for page %d: %w", index+1, err)
	}
	return ocr.PageImage{Index: index, Data: data, MIMEType: "image/png"}, nil
}
