package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"stockwatch/internal/model"
)

const smartAPIRoot = "https://apiconnect.angelone.in"

// SmartAPIConfig holds the Angel One credentials. The TOTP secret is the
// base32 seed; login codes are generated per request.
type SmartAPIConfig struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
}

// SmartAPI fetches historical candles from the Angel One SmartAPI. Tickers
// take the form "EXCHANGE:SYMBOLTOKEN", e.g. "NSE:3045". Sessions are
// created lazily and renewed once on an auth failure.
type SmartAPI struct {
	cfg    SmartAPIConfig
	client *http.Client

	mu    sync.Mutex
	token string
}

func NewSmartAPI(cfg SmartAPIConfig) *SmartAPI {
	return &SmartAPI{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SmartAPI) Name() string { return "smartapi" }

// smartInterval maps bar intervals onto SmartAPI candle interval names.
// 4h and 1wk have no native representation and are resampled client-side.
func smartInterval(iv model.Interval) (string, bool) {
	switch iv {
	case model.Interval5m:
		return "FIVE_MINUTE", true
	case model.Interval15m:
		return "FIFTEEN_MINUTE", true
	case model.Interval30m:
		return "THIRTY_MINUTE", true
	case model.Interval1h, model.Interval4h:
		return "ONE_HOUR", true
	case model.Interval1d, model.Interval1w:
		return "ONE_DAY", true
	}
	return "", false
}

func (s *SmartAPI) FetchSeries(ctx context.Context, ticker string, interval model.Interval, days int) (model.Series, error) {
	wire, ok := smartInterval(interval)
	if !ok {
		return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: fmt.Sprintf("unsupported interval %q", interval)}
	}

	exchange, symbolToken, found := strings.Cut(ticker, ":")
	if !found || exchange == "" || symbolToken == "" {
		return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: `ticker must be "EXCHANGE:SYMBOLTOKEN"`}
	}

	now := time.Now()
	params := map[string]any{
		"exchange":    exchange,
		"symboltoken": symbolToken,
		"interval":    wire,
		"fromdate":    now.AddDate(0, 0, -days).Format("2006-01-02 15:04"),
		"todate":      now.Format("2006-01-02 15:04"),
	}

	rows, err := s.candleData(ctx, ticker, params)
	if err != nil {
		return nil, err
	}

	series := make(model.Series, 0, len(rows))
	for _, row := range rows {
		bar, err := parseCandleRow(row)
		if err != nil {
			return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "parse candle", Err: err}
		}
		series = append(series, bar)
	}
	if len(series) == 0 {
		return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "no data returned"}
	}

	switch interval {
	case model.Interval4h:
		series = model.Resample(series, 4*time.Hour)
	case model.Interval1w:
		series = model.Resample(series, 7*24*time.Hour)
	}
	return series, nil
}

// candleData calls getCandleData, logging in first if there is no session
// and retrying once with a fresh session on an auth rejection.
func (s *SmartAPI) candleData(ctx context.Context, ticker string, params map[string]any) ([][]any, error) {
	token, err := s.session(ctx, ticker, false)
	if err != nil {
		return nil, err
	}

	rows, err := s.postCandles(ctx, ticker, token, params)
	if isAuthError(err) {
		token, err = s.session(ctx, ticker, true)
		if err != nil {
			return nil, err
		}
		rows, err = s.postCandles(ctx, ticker, token, params)
	}
	if isAuthError(err) {
		return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "auth failed after relogin", Err: err}
	}
	return rows, err
}

func (s *SmartAPI) postCandles(ctx context.Context, ticker, token string, params map[string]any) ([][]any, error) {
	var resp struct {
		Status  bool    `json:"status"`
		Message string  `json:"message"`
		Errcode string  `json:"errorcode"`
		Data    [][]any `json:"data"`
	}
	if err := s.post(ctx, "/rest/secure/angelbroking/historical/v1/getCandleData", token, params, &resp); err != nil {
		return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "candle request", Err: err}
	}
	if !resp.Status {
		reason := fmt.Sprintf("api error %s: %s", resp.Errcode, resp.Message)
		if isAuthCode(resp.Errcode) {
			return nil, &authError{reason}
		}
		return nil, &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: reason}
	}
	return resp.Data, nil
}

// session returns the current access token, performing a TOTP login when
// there is none or when force is set.
func (s *SmartAPI) session(ctx context.Context, ticker string, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && !force {
		return s.token, nil
	}

	code, err := totp.GenerateCode(s.cfg.TOTPSecret, time.Now())
	if err != nil {
		return "", &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "generate totp", Err: err}
	}

	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			JwtToken string `json:"jwtToken"`
		} `json:"data"`
	}
	params := map[string]any{
		"clientcode": s.cfg.ClientCode,
		"password":   s.cfg.Password,
		"totp":       code,
	}
	if err := s.post(ctx, "/rest/auth/angelbroking/user/v1/loginByPassword", "", params, &resp); err != nil {
		return "", &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "login request", Err: err}
	}
	if !resp.Status || resp.Data.JwtToken == "" {
		return "", &model.FetchError{Source: s.Name(), Ticker: ticker, Reason: "login rejected: " + resp.Message}
	}
	s.token = resp.Data.JwtToken
	return s.token, nil
}

func (s *SmartAPI) post(ctx context.Context, route, token string, params map[string]any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, smartAPIRoot+route, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-PrivateKey", s.cfg.APIKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return &authError{fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	return json.Unmarshal(raw, out)
}

// parseCandleRow converts one SmartAPI candle row
// ["2024-01-02T09:15:00+05:30", o, h, l, c, v] into a bar.
func parseCandleRow(row []any) (model.Bar, error) {
	if len(row) < 6 {
		return model.Bar{}, fmt.Errorf("short candle row: %d fields", len(row))
	}
	tsStr, ok := row[0].(string)
	if !ok {
		return model.Bar{}, fmt.Errorf("candle timestamp is %T", row[0])
	}
	ts, err := time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return model.Bar{}, err
	}
	return model.Bar{
		TS:     ts.UTC(),
		Open:   toFloat(row[1]),
		High:   toFloat(row[2]),
		Low:    toFloat(row[3]),
		Close:  toFloat(row[4]),
		Volume: int64(toFloat(row[5])),
	}, nil
}

type authError struct{ msg string }

func (e *authError) Error() string { return "smartapi auth: " + e.msg }

func isAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

func isAuthCode(code string) bool {
	// AG8001 invalid token, AG8002 token expired, AG8003 missing token
	return strings.HasPrefix(code, "AG80")
}
