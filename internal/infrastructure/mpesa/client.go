package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/config"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

var _ ports.PaymentInitiator = (*Client)(nil)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"

	// Daraja responde 500 con este código mientras el usuario no ha contestado el prompt.
	errCodeStillProcessing = "500.001.1001"

	// margen para renovar el token antes de que venza
	tokenSkew = time.Minute
)

// eat hora de Nairobi, en la que Daraja valida el Timestamp.
var eat = time.FixedZone("EAT", 3*60*60)

// Client adaptador de PaymentInitiator sobre la API REST Daraja (STK push y consulta).
type Client struct {
	cfg        config.MPesaConfig
	httpClient *http.Client
	clock      clock.Clock
	log        *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient construye el adaptador. Sin credenciales las llamadas devuelven ErrProviderConfig.
func NewClient(cfg config.MPesaConfig, clk clock.Clock, log *logger.Logger) *Client {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clk,
		log:        log.Component("mpesa"),
	}
}

// ── Estructuras del protocolo Daraja ─────────────────────────────────────────

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          any    `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// ── PaymentInitiator ─────────────────────────────────────────────────────────

// Initiate envía el STK push. Daraja solo acepta montos enteros: se redondea hacia arriba.
func (c *Client) Initiate(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}
	if c.cfg.CallbackURL == "" {
		return "", fmt.Errorf("mpesa: MPESA_CALLBACK_URL vacío: %w", domain.ErrProviderConfig)
	}
	ts := c.timestamp()
	req := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            amount.Ceil().IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(reference, 12),
		TransactionDesc:   truncate(reference, 13),
	}

	var resp stkPushResponse
	status, raw, err := c.postJSON(ctx, stkPushPath, req, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return "", fmt.Errorf("mpesa: stk push rechazado (HTTP %d): %s", status, describe(raw, resp.ResponseDescription))
	}
	c.log.Info().
		Str("checkout_id", resp.CheckoutRequestID).
		Str("reference", reference).
		Msg("stk push enviado")
	return resp.CheckoutRequestID, nil
}

// QueryStatus consulta un checkout. pending=true mientras el usuario no conteste.
func (c *Client) QueryStatus(ctx context.Context, checkoutID string) (*settlement.Callback, bool, error) {
	if err := c.configured(); err != nil {
		return nil, false, err
	}
	ts := c.timestamp()
	req := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutID,
	}

	var resp stkQueryResponse
	status, raw, err := c.postJSON(ctx, stkQueryPath, req, &resp)
	if err != nil {
		return nil, false, err
	}
	if status != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.ErrorCode == errCodeStillProcessing {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("mpesa: stk query (HTTP %d): %s", status, describe(raw, e.ErrorMessage))
	}

	code, ok := settlement.ResultCodeOf(resp.ResultCode)
	if !ok {
		return nil, true, nil
	}
	return &settlement.Callback{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: checkoutID,
		ResultCode:        code,
		ResultDesc:        resp.ResultDesc,
	}, false, nil
}

// ── Transporte ───────────────────────────────────────────────────────────────

func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, []byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("mpesa: serializar request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("mpesa: crear request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	status, raw, err := c.do(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if status == http.StatusOK && out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return status, raw, fmt.Errorf("mpesa: respuesta ilegible: %w", err)
		}
	}
	return status, raw, nil
}

// accessToken devuelve el token OAuth cacheado o pide uno nuevo.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if c.token != "" && now.Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: crear request oauth: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	status, raw, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("mpesa: oauth (HTTP %d): %s", status, describe(raw, ""))
	}
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", errors.New("mpesa: oauth sin access_token")
	}
	ttl := time.Hour
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.token = tr.AccessToken
	c.tokenExpiry = now.Add(ttl - tokenSkew)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("mpesa: timeout o cancelación: %w", ctx.Err())
		}
		return 0, nil, fmt.Errorf("mpesa: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("mpesa: leer respuesta: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) configured() error {
	if c.cfg.BaseURL == "" || c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" ||
		c.cfg.ShortCode == "" || c.cfg.PassKey == "" {
		return fmt.Errorf("mpesa: credenciales incompletas: %w", domain.ErrProviderConfig)
	}
	return nil
}

func (c *Client) timestamp() string {
	return c.clock.Now().In(eat).Format(timestampLayout)
}

// Password base64(shortcode + passkey + timestamp), como lo exige Daraja.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

func describe(raw []byte, fallback string) string {
	if fallback != "" {
		return fallback
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
