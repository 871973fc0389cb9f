package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	"saldo/internal/log"
	ports "saldo/internal/sheets"
)

// DefaultClosuresSheet is the tab closures are appended to.
const DefaultClosuresSheet = "Cierres"

// Client appends closures to a spreadsheet tab, one row per closure, with
// the closure id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	closuresSheet string
	logger        *log.Logger

	// serializes the lookup-then-append sequence
	mu sync.Mutex
}

var _ ports.ClosureExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. When no
// client options are given the credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		creds, err := serviceAccountCredentials(ctx, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultClosuresSheet
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		closuresSheet: sheetName,
		logger:        logger,
	}, nil
}

func serviceAccountCredentials(ctx context.Context, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling keeps a small pool of connections to the Sheets
// API open between exports.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ExportClosure appends the closure unless a row with its id already
// exists, in which case the existing row is returned. The header row is
// written the first time the tab is used.
func (c *Client) ExportClosure(ctx context.Context, closure core.MonthClosure) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if closure.ID <= 0 {
		return "", fmt.Errorf("export closure: missing closure id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	row := ports.ClosureRow(closure)
	idRange := fmt.Sprintf("%s!A:A", c.closuresSheet)
	existing, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, idRange).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read closure ids: %w", err)
	}
	if n := findRow(existing.Values, row[0]); n > 0 {
		ref := fmt.Sprintf("%s!A%d", c.closuresSheet, n)
		c.logger.InfoContext(ctx, "Closure already exported",
			log.FieldClosureID, closure.ID,
			"row_ref", ref)
		return ref, nil
	}

	var values [][]any
	if len(existing.Values) == 0 {
		values = append(values, toCells(ports.ClosureHeader))
	}
	values = append(values, toCells(row))

	appendRange := fmt.Sprintf("%s!A:J", c.closuresSheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, appendRange, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append closure row: %w", err)
	}

	ref := appendRange
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Closure exported",
		log.FieldClosureID, closure.ID,
		log.FieldUserID, closure.UserID,
		"row_ref", ref)
	return ref, nil
}

// findRow returns the 1-based row whose first cell equals id, or 0.
func findRow(rows [][]any, id string) int {
	for i, r := range rows {
		if len(r) > 0 && strings.TrimSpace(fmt.Sprint(r[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
