// Package sheets talks to the Google Sheets spreadsheet that optionally holds the
// question list and receives the poll event log.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/dailypoll/backend/config"
	"github.com/dailypoll/backend/internal/models"
)

// Client reads questions from and appends rows to a single spreadsheet.
type Client struct {
	svc            *gsheets.Service
	spreadsheetID  string
	questionsRange string
	logRange       string
	logger         *zap.Logger
}

// New builds a client from cfg. Without explicit opts the service account credentials
// file from cfg is used.
func New(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gsheets.SpreadsheetsScope),
		}
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	logger.Info("google sheets client ready", zap.String("spreadsheet_id", cfg.SpreadsheetID))
	return &Client{
		svc:            svc,
		spreadsheetID:  cfg.SpreadsheetID,
		questionsRange: cfg.QuestionsRange,
		logRange:       cfg.LogRange,
		logger:         logger,
	}, nil
}

// GetQuestions reads the question range. Columns are A, B and an optional tag; rows
// missing either option are skipped.
func (c *Client) GetQuestions(ctx context.Context) ([]models.Question, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.questionsRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	out := make([]models.Question, 0, len(resp.Values))
	for _, row := range resp.Values {
		q := models.Question{A: cell(row, 0), B: cell(row, 1), Tag: cell(row, 2)}
		if q.A == "" || q.B == "" {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// AddQuestion appends one question row.
func (c *Client) AddQuestion(ctx context.Context, q models.Question) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{{q.A, q.B, q.Tag}}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.questionsRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append question: %w", err)
	}
	return nil
}

// AppendEvent writes evt as one row of the log range.
func (c *Client) AppendEvent(ctx context.Context, evt models.Event) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{evt.Row()}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.logRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s event: %w", evt.Type, err)
	}
	return nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}
