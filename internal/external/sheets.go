package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"mentorship/internal/types"
)

// SheetsClientConfig configures a SheetsClient.
type SheetsClientConfig struct {
	// CredentialsJSON is a service-account key file's contents.
	CredentialsJSON []byte
	SpreadsheetID   string
	// Endpoint overrides the Sheets API base URL. Tests point it at httptest.
	Endpoint string
	Logger   *slog.Logger
}

// SheetsClient appends rows through the Sheets v4 API, authenticated as a
// service account. Appends are sent once and never retried.
type SheetsClient struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsClient parses the service-account credentials, performs one token
// exchange under ctx to prove they work, and returns a client whose transport
// refreshes the token as needed. httpClient is used for the token endpoint
// and, wrapped with OAuth2, for API calls.
func NewSheetsClient(ctx context.Context, httpClient *http.Client, cfg SheetsClientConfig) (*SheetsClient, error) {
	if cfg.SpreadsheetID == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamSheets, "spreadsheet id is empty", nil)
	}

	jwtCfg, err := google.JWTConfigFromJSON(cfg.CredentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSheets, "invalid service-account credentials", err)
	}

	token, err := jwtCfg.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, httpClient)).Token()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSheets, "service-account token exchange failed", err)
	}

	// The long-lived token source must not inherit a request-scoped context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	authed := oauth2.NewClient(tokenCtx, oauth2.ReuseTokenSource(token, jwtCfg.TokenSource(tokenCtx)))
	authed.Timeout = httpClient.Timeout

	opts := []option.ClientOption{option.WithHTTPClient(authed)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSheets, "failed to create sheets service", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SheetsClient{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger.With("client", "google-sheets", "client_email", jwtCfg.Email),
	}, nil
}

// AppendRow appends values as a single row after the last row of rng. Values
// are written RAW and always inserted as new rows.
func (c *SheetsClient) AppendRow(ctx context.Context, rng string, values []string) (AppendResult, error) {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}

	resp, err := c.values.Append(c.spreadsheetID, rng, &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]any{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return AppendResult{}, mapSheetsError(err)
	}

	if resp.Updates == nil {
		c.logger.WarnContext(ctx, "sheets append succeeded without update details")
		return AppendResult{}, nil
	}
	return AppendResult{
		UpdatedRange: resp.Updates.UpdatedRange,
		UpdatedRows:  int(resp.Updates.UpdatedRows),
	}, nil
}

func mapSheetsError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		code := types.ErrCodeUpstreamSheets
		if gErr.Code == http.StatusTooManyRequests {
			code = types.ErrCodeUpstreamRateLimited
		}
		return types.NewAppError(code, fmt.Sprintf("sheets append returned %d: %s", gErr.Code, gErr.Message), err)
	}
	return types.NewAppError(types.ErrCodeUpstreamSheets, "sheets append failed", err)
}

var _ RowAppender = (*SheetsClient)(nil)
