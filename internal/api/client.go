package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 4 << 20

// Client encapsula chamadas à API REST da fábrica.
type Client struct {
	httpClient *http.Client
	baseURL    string
	filesURL   string
}

// Config descreve o backend consumido pelo painel.
type Config struct {
	BaseURL    string
	FilesURL   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New cria o cliente; BaseURL é obrigatório.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url obrigatória")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("api: base url inválida: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		filesURL:   strings.TrimRight(strings.TrimSpace(cfg.FilesURL), "/"),
	}, nil
}

// BaseURL devolve o endereço do backend.
func (c *Client) BaseURL() string { return c.baseURL }

// SignIn autentica no backend. Recusas viram *AuthError com a mensagem recebida.
func (c *Client) SignIn(ctx context.Context, username, password string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, &ValidationError{Kind: "credenciais", Fields: missingCredentials(username, password)}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth", "", Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "auth", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Op: "auth", Err: err}
	}
	if resp.StatusCode >= 500 {
		return nil, &NetworkError{Op: "auth", Status: resp.StatusCode}
	}
	if err := ValidateAuthResponse(body); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &AuthError{Message: http.StatusText(resp.StatusCode)}
		}
		return nil, err
	}

	var out AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.Status != StatusSuccess || strings.TrimSpace(out.Token) == "" {
		return nil, &AuthError{Status: out.Status, Message: out.Message}
	}
	return &out, nil
}

func missingCredentials(username, password string) []FieldError {
	var fields []FieldError
	if username == "" {
		fields = append(fields, FieldError{Field: "username", Message: "obrigatório"})
	}
	if password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "obrigatório"})
	}
	return fields
}

// Get faz GET autenticado pelo header token e devolve o corpo cru.
func (c *Client) Get(ctx context.Context, token, path string) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &NetworkError{Op: path, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Op: path, Err: err}
	}
	return json.RawMessage(body), nil
}

// Fetch busca um recurso nomeado no escopo da fábrica. Inventário passa pelo schema.
func (c *Client) Fetch(ctx context.Context, token, name, factory string) (json.RawMessage, error) {
	r, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	path, err := r.PathFor(factory)
	if err != nil {
		return nil, err
	}
	raw, err := c.Get(ctx, token, path)
	if err != nil {
		return nil, err
	}
	if r.Record {
		return ValidateRecords(r.Name, raw)
	}
	return raw, nil
}

// Highlights devolve o resumo de destaques da fábrica.
func (c *Client) Highlights(ctx context.Context, token, factory string) (json.RawMessage, error) {
	return c.Fetch(ctx, token, ResourceHighlights, factory)
}

// InventoryHighlights devolve o resumo do inventário.
func (c *Client) InventoryHighlights(ctx context.Context, token, factory string) (json.RawMessage, error) {
	return c.Fetch(ctx, token, ResourceInventoryHighlights, factory)
}

// Reports devolve os relatórios do dashboard.
func (c *Client) Reports(ctx context.Context, token, factory string) (json.RawMessage, error) {
	return c.Fetch(ctx, token, ResourceReports, factory)
}

func (c *Client) Components(ctx context.Context, token, factory string) ([]Component, error) {
	return fetchRecords[Component](ctx, c, token, KindComponents, factory)
}

func (c *Client) Moulds(ctx context.Context, token, factory string) ([]Mould, error) {
	return fetchRecords[Mould](ctx, c, token, KindMoulds, factory)
}

func (c *Client) Machines(ctx context.Context, token, factory string) ([]Machine, error) {
	return fetchRecords[Machine](ctx, c, token, KindMachines, factory)
}

func (c *Client) Users(ctx context.Context, token, factory string) ([]StaffUser, error) {
	return fetchRecords[StaffUser](ctx, c, token, KindUsers, factory)
}

// Factories não depende de fábrica selecionada: alimenta o próprio seletor.
func (c *Client) Factories(ctx context.Context, token string) ([]Factory, error) {
	return fetchRecords[Factory](ctx, c, token, KindFactories, "")
}

func fetchRecords[T any](ctx context.Context, c *Client, token, kind, factory string) ([]T, error) {
	raw, err := c.Fetch(ctx, token, kind, factory)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("api: decodificar %s: %w", kind, err)
	}
	return out, nil
}

// Ping verifica se o backend responde; qualquer status abaixo de 500 conta como vivo.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "ping", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 500 {
		return &NetworkError{Op: "ping", Status: resp.StatusCode}
	}
	return nil
}

// FileURL resolve o nome de um arquivo no servidor de arquivos.
func (c *Client) FileURL(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") || c.filesURL == "" {
		return name
	}
	return c.filesURL + "/" + strings.TrimLeft(name, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}
	return req, nil
}
