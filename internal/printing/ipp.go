// Package printing dispatches card documents to kiosk print agents, first
// over IPP and falling back to the agent's plain HTTP endpoint.
package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ipp "github.com/phin1x/go-ipp"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
)

type Dispatcher struct {
	cfg        config.PrintConfig
	httpClient *http.Client
	log        *logger.Logger
}

func NewDispatcher(cfg config.PrintConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// Dispatch sends a job's document to the kiosk printer. The document is
// fetched from documentURL and submitted over IPP; when that fails the job is
// handed to the agent's HTTP endpoint, which fetches the URL itself.
func (d *Dispatcher) Dispatch(ctx context.Context, kiosk *models.Kiosk, job *models.PrintJob, documentURL string) error {
	printer, err := d.printerConfig(kiosk)
	if err != nil {
		return err
	}

	document, fetchErr := d.fetchDocument(ctx, documentURL)
	if fetchErr == nil {
		ippErr := d.printViaIPP(printer, job, document, documentURL)
		if ippErr == nil {
			return nil
		}
		d.log.LogPrint("IPP_FAILED", job.ID, fmt.Sprintf("IPP submission failed, trying HTTP agent: %v", ippErr))
	} else {
		d.log.LogPrint("FETCH_FAILED", job.ID, fmt.Sprintf("Could not fetch document, trying HTTP agent: %v", fetchErr))
	}

	return d.printViaAgent(ctx, printer, job, documentURL)
}

func (d *Dispatcher) printViaIPP(printer *models.KioskPrinterConfig, job *models.PrintJob, document []byte, documentURL string) error {
	client := ipp.NewIPPClient(printer.PrinterHost, d.cfg.IPPPort, d.cfg.Username, d.cfg.Password, false)

	doc := ipp.Document{
		Document: bytes.NewReader(document),
		Size:     len(document),
		Name:     job.ID,
		MimeType: mimeTypeForURL(documentURL),
	}

	attributes := map[string]interface{}{}
	if job.Copies > 1 {
		attributes["copies"] = job.Copies
	}

	jobID, err := client.PrintJob(doc, printer.PrinterName, attributes)
	if err != nil {
		return err
	}

	d.log.LogPrint("IPP_SENT", job.ID, fmt.Sprintf("Submitted to printer %s on %s as IPP job %d", printer.PrinterName, printer.PrinterHost, jobID))
	return nil
}

func (d *Dispatcher) printViaAgent(ctx context.Context, printer *models.KioskPrinterConfig, job *models.PrintJob, documentURL string) error {
	port := printer.AgentPort
	if port == 0 {
		port = d.cfg.AgentPort
	}
	url := fmt.Sprintf("http://%s:%d/print", printer.PrinterHost, port)

	payload, err := json.Marshal(map[string]interface{}{
		"job_id":       job.ID,
		"document_url": documentURL,
		"printer":      printer.PrinterName,
		"copies":       job.Copies,
	})
	if err != nil {
		return fmt.Errorf("failed to encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("print agent unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("print agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	d.log.LogPrint("AGENT_SENT", job.ID, fmt.Sprintf("Handed to print agent at %s", url))
	return nil
}

func (d *Dispatcher) fetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (d *Dispatcher) printerConfig(kiosk *models.Kiosk) (*models.KioskPrinterConfig, error) {
	if len(kiosk.Config) == 0 {
		return nil, fmt.Errorf("kiosk %s has no printer configuration", kiosk.ID)
	}

	printer := &models.KioskPrinterConfig{}
	if err := json.Unmarshal(kiosk.Config, printer); err != nil {
		return nil, fmt.Errorf("invalid printer configuration for kiosk %s: %w", kiosk.ID, err)
	}
	if printer.PrinterHost == "" {
		return nil, fmt.Errorf("kiosk %s printer configuration is missing a host", kiosk.ID)
	}
	if printer.PrinterName == "" {
		printer.PrinterName = "default"
	}
	return printer, nil
}

func mimeTypeForURL(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
