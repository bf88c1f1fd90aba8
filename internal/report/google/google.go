// Package google pushes report rows into a Google Sheets spreadsheet.
// Authentication uses a user OAuth token minted by cmd/oauth-init when
// one is configured, and falls back to a service account for headless
// deployments.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"elaun/internal/report"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ report.RowWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus credentials, either a user
// OAuth pair (GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE,
// with a token from cmd/oauth-init in GOOGLE_OAUTH_TOKEN_JSON or
// GOOGLE_OAUTH_TOKEN_FILE) or a service account in
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME
// (default "Elaun").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Elaun"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	clientJSON, tokenJSON, err := oauthCredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	if clientJSON != nil {
		httpClient, err := oauthHTTPClient(ctx, clientJSON, tokenJSON)
		if err != nil {
			return nil, err
		}
		service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	}

	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing Google credentials (set GOOGLE_OAUTH_CLIENT_JSON/FILE plus a token, or GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// oauthCredentialsFromEnv loads the OAuth client config and the saved
// token pair. A nil clientJSON with a nil error means no OAuth client
// is configured and the caller should fall back to a service account.
func oauthCredentialsFromEnv() (clientJSON, tokenJSON []byte, err error) {
	inlineClient := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	clientFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))
	switch {
	case inlineClient != "":
		clientJSON = []byte(inlineClient)
	case clientFile != "":
		clientJSON, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, nil, nil
	}

	inlineToken := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"))
	tokenFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"))
	switch {
	case inlineToken != "":
		tokenJSON = []byte(inlineToken)
	case tokenFile != "":
		tokenJSON, err = os.ReadFile(tokenFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read oauth token file: %w", err)
		}
	default:
		return nil, nil, errors.New("oauth client configured without a token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE, or run oauth-init)")
	}
	return clientJSON, tokenJSON, nil
}

// oauthHTTPClient builds an authenticated HTTP client from the OAuth
// client config and a previously saved token. The client refreshes the
// token transparently as long as a refresh token is present.
func oauthHTTPClient(ctx context.Context, clientJSON, tokenJSON []byte) (*http.Client, error) {
	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(tokenJSON, tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token has no access or refresh token")
	}
	return cfg.Client(ctx, tok), nil
}

// WriteRows upserts the record's rows. Each spreadsheet row is keyed in
// column A by "<recordID>/<role>/<personID>"; existing keys are
// overwritten in place, new ones appended, and keys of participants no
// longer on the record are blanked.
func (c *Client) WriteRows(ctx context.Context, recordID string, rows []report.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read keys from %s: %w", rng, err)
	}

	// 1-based spreadsheet row number per existing key.
	existing := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		key := strings.TrimSpace(fmt.Sprint(row[0]))
		if key != "" {
			existing[key] = i + 1
		}
	}
	nextRow := len(resp.Values) + 1

	written := make(map[string]bool, len(rows))
	for _, r := range rows {
		key := rowKey(recordID, r)
		written[key] = true

		target, ok := existing[key]
		if !ok {
			target = nextRow
			nextRow++
		}
		dataRange := fmt.Sprintf("%s!A%d:N%d", c.sheetName, target, target)
		vr := &gsheet.ValueRange{Values: [][]any{{
			key, r.Month, r.ClassName, r.State, r.Location,
			r.PersonID, r.Name, r.IdentityNo, string(r.Role), r.Kategori,
			r.Sessions, float64(r.Stipend.Sen) / 100.0,
			r.BankName, r.BankAccount,
		}}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write row %s: %w", key, err)
		}
	}

	// Blank stale rows of participants removed from the record.
	prefix := recordID + "/"
	for key, rowNum := range existing {
		if !strings.HasPrefix(key, prefix) || written[key] {
			continue
		}
		dataRange := fmt.Sprintf("%s!A%d:N%d", c.sheetName, rowNum, rowNum)
		vr := &gsheet.ValueRange{Values: [][]any{{
			"", "", "", "", "", "", "", "", "", "", "", "", "", "",
		}}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear stale row %s: %w", key, err)
		}
	}

	slog.InfoContext(ctx, "Synced record to Google Sheets",
		"record_id", recordID,
		"rows", len(rows),
		"sheet", c.sheetName)
	return nil
}

func rowKey(recordID string, r report.Row) string {
	return recordID + "/" + string(r.Role) + "/" + r.PersonID
}
