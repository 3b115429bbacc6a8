package broker

// client.go — HTTP client del broker con rate limiting y retries.
//
// Todas las respuestas JSON vienen en el sobre {status, data}; los errores
// traen {status: "error", message, error_type}. Los retries con backoff se
// aplican SOLO a lecturas idempotentes: las escrituras al OMS van por
// postFormOnce, que nunca reenvía.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.kite.trade"

	// Límites documentados de la API: 3 req/s para datos de mercado. Las
	// órdenes van a 1/s; una secuencia solo tiene dos legs y el OMS penaliza
	// ráfagas de órdenes.
	dataRatePerSec  = 3
	orderRatePerSec = 1

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	kiteVersion = "3"
)

// Client es el cliente HTTP del broker. Implementa los ports QuoteProvider,
// InstrumentProvider, BrokerGateway y AccountProvider.
type Client struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	accessToken  string
	dataLimiter  *rate.Limiter
	orderLimiter *rate.Limiter

	// dump de instrumentos cacheado; ver instruments.go
	mu     sync.Mutex
	dump   []instrumentRow
	dumpAt time.Time
}

// NewClient crea un Client autenticado contra baseURL. Si baseURL está
// vacío usa el URL de producción.
func NewClient(baseURL, apiKey, accessToken string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		accessToken:  accessToken,
		dataLimiter:  rate.NewLimiter(dataRatePerSec, 2),
		orderLimiter: rate.NewLimiter(orderRatePerSec, 1),
	}
}

// apiError es una respuesta de error del broker con el sobre ya parseado.
// El código y el error_type permiten distinguir un rechazo del OMS de un
// problema de transporte o de cuota.
type apiError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *apiError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("kite %d %s: %s", e.StatusCode, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("kite %d: %s", e.StatusCode, e.Message)
}

// Rejection dice si el error es una denegación del OMS (el broker entendió
// la petición y dijo que no) y no throttling ni un fallo del lado servidor.
func (e *apiError) Rejection() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// authorize añade las cabeceras de autenticación de la API.
func (c *Client) authorize(req *http.Request) {
	req.Header.Set("X-Kite-Version", kiteVersion)
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)
}

// get hace un GET con rate limiting y retries, decodificando el sobre JSON.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, query url.Values, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, func(resp *http.Response) error {
		return decodeEnvelope(resp, out)
	})
}

// postFormOnce hace un POST form-encoded SIN retries: una escritura que el
// OMS pudo llegar a registrar no se reenvía nunca desde esta capa.
func (c *Client) postFormOnce(ctx context.Context, limiter *rate.Limiter, path string, form url.Values, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, body)
	}
	return decodeEnvelope(resp, out)
}

// doWithRetry ejecuta la petición con backoff exponencial. Un 4xx distinto
// de 429 no se reintenta: el broker ya dio una respuesta definitiva.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), decode func(*http.Response) error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return newAPIError(resp.StatusCode, body)
		}

		err = decode(resp)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// decodeEnvelope decodifica el sobre {status, data} y extrae data en out.
// Un status distinto de "success" se devuelve como apiError aunque el HTTP
// status fuese 2xx.
func decodeEnvelope(resp *http.Response, out any) error {
	var env kiteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Status != "success" {
		return &apiError{StatusCode: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// newAPIError parsea el cuerpo de un 4xx como sobre de error; si no es el
// sobre esperado conserva el cuerpo crudo como mensaje.
func newAPIError(status int, body []byte) *apiError {
	var env kiteEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		return &apiError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &apiError{StatusCode: status, ErrorType: env.ErrorType, Message: env.Message}
}
