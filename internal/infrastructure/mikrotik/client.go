package mikrotik

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/pkg/config"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

var _ ports.AccessGateway = (*Client)(nil)

const hotspotUserPath = "/rest/ip/hotspot/user"

// Client adaptador de AccessGateway sobre la API REST de RouterOS v7.
// El acceso se concede como usuario hotspot con nombre = MAC y limit-uptime = duración.
type Client struct {
	cfg        config.MikroTikConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient construye el adaptador. Con Insecure acepta el certificado autofirmado del router.
func NewClient(cfg config.MikroTikConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // router con certificado autofirmado
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		log:        log.Component("mikrotik"),
	}
}

type hotspotUser struct {
	ID          string `json:".id,omitempty"`
	Name        string `json:"name"`
	MACAddress  string `json:"mac-address"`
	LimitUptime string `json:"limit-uptime"`
	Server      string `json:"server,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

type routerError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Grant crea (o actualiza) el usuario hotspot del dispositivo. Cualquier error, incluido
// un timeout del contexto, es un fallo de la concesión.
func (c *Client) Grant(ctx context.Context, mac string, duration time.Duration) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("mikrotik: MIKROTIK_URL vacío: %w", domain.ErrProviderConfig)
	}
	user := hotspotUser{
		Name:        mac,
		MACAddress:  mac,
		LimitUptime: FormatDuration(duration),
		Server:      c.cfg.Server,
		Comment:     "hotspot-billing " + time.Now().UTC().Format(time.RFC3339),
	}

	status, raw, err := c.send(ctx, http.MethodPut, hotspotUserPath, user)
	if err != nil {
		return err
	}
	if status == http.StatusOK || status == http.StatusCreated {
		c.log.Info().Str("mac", mac).Str("limit_uptime", user.LimitUptime).Msg("acceso concedido")
		return nil
	}
	if status != http.StatusBadRequest || !strings.Contains(strings.ToLower(string(raw)), "already") {
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrGrantFailed, status, routerMessage(raw))
	}

	// el dispositivo ya tenía usuario: renovar su límite y reiniciar contadores
	id, err := c.findUserID(ctx, mac)
	if err != nil {
		return err
	}
	patch := map[string]string{"limit-uptime": user.LimitUptime, "comment": user.Comment}
	status, raw, err = c.send(ctx, http.MethodPatch, hotspotUserPath+"/"+url.PathEscape(id), patch)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: actualizar usuario HTTP %d: %s", domain.ErrGrantFailed, status, routerMessage(raw))
	}
	status, raw, err = c.send(ctx, http.MethodPost, hotspotUserPath+"/reset-counters", map[string]string{".id": id})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: reiniciar contadores HTTP %d: %s", domain.ErrGrantFailed, status, routerMessage(raw))
	}
	c.log.Info().Str("mac", mac).Str("limit_uptime", user.LimitUptime).Msg("acceso renovado")
	return nil
}

func (c *Client) findUserID(ctx context.Context, mac string) (string, error) {
	status, raw, err := c.send(ctx, http.MethodGet, hotspotUserPath+"?name="+url.QueryEscape(mac), nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: buscar usuario HTTP %d: %s", domain.ErrGrantFailed, status, routerMessage(raw))
	}
	var users []hotspotUser
	if err := json.Unmarshal(raw, &users); err != nil || len(users) == 0 || users[0].ID == "" {
		return "", fmt.Errorf("%w: usuario %s no encontrado", domain.ErrGrantFailed, mac)
	}
	return users[0].ID, nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("mikrotik: serializar request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("mikrotik: crear request: %w", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("%w: timeout o cancelación: %v", domain.ErrGrantFailed, ctx.Err())
		}
		return 0, nil, fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrGrantFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrGrantFailed, err)
	}
	return resp.StatusCode, raw, nil
}

func routerMessage(raw []byte) string {
	var e routerError
	if json.Unmarshal(raw, &e) == nil && (e.Message != "" || e.Detail != "") {
		return strings.TrimSpace(e.Message + " " + e.Detail)
	}
	return strings.TrimSpace(string(raw))
}

// FormatDuration duración en formato RouterOS (1d4h30m). Redondea a segundos; mínimo 1s.
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	var b strings.Builder
	for _, unit := range []struct {
		suffix string
		size   int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}} {
		if n := secs / unit.size; n > 0 {
			b.WriteString(strconv.FormatInt(n, 10))
			b.WriteString(unit.suffix)
			secs -= n * unit.size
		}
	}
	return b.String()
}
