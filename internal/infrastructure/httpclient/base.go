package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// ServiceError любой сбой обращения к внешнему сервису.
type ServiceError struct {
	Service string
	Op      string
	Status  int // 0, если ответа не было
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Service, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// maxErrorBody сколько байт тела ошибки попадает в сообщение.
const maxErrorBody = 512

// filePart файл в multipart запросе
type filePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

type baseClient struct {
	service string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func newBaseClient(service, baseURL string, timeout time.Duration, logger *slog.Logger) baseClient {
	if logger == nil {
		logger = slog.Default()
	}
	return baseClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("service", service),
	}
}

func (c *baseClient) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *baseClient) fail(op string, status int, err error) error {
	return &ServiceError{Service: c.service, Op: op, Status: status, Err: err}
}

// do выполняет запрос и возвращает ответ только при статусе 2xx.
func (c *baseClient) do(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(op, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.fail(op, resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))))
	}
	return resp, nil
}

func (c *baseClient) decode(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(op, resp.StatusCode, fmt.Errorf("invalid response: %w", err))
	}
	return nil
}

func (c *baseClient) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return c.fail(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	return c.decode(op, resp, out)
}

// postJSONRaw отправляет JSON и возвращает ответ как есть (статус уже проверен).
func (c *baseClient) postJSONRaw(ctx context.Context, op, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(op, 0, fmt.Errorf("encode payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("POST", "url", req.URL.String())
	return c.do(op, req)
}

func (c *baseClient) postJSON(ctx context.Context, op, path string, payload, out any) error {
	resp, err := c.postJSONRaw(ctx, op, path, payload)
	if err != nil {
		return err
	}
	return c.decode(op, resp, out)
}

func (c *baseClient) postMultipart(ctx context.Context, op, path string, file filePart, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return c.fail(op, 0, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
	header.Set("Content-Type", file.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return c.fail(op, 0, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return c.fail(op, 0, err)
	}
	if err := w.Close(); err != nil {
		return c.fail(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), &buf)
	if err != nil {
		return c.fail(op, 0, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Debug("POST multipart", "url", req.URL.String(), "part", file.Field, "size", len(file.Data))
	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	return c.decode(op, resp, out)
}

func (c *baseClient) getBinary(ctx context.Context, op, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, "", c.fail(op, 0, err)
	}

	resp, err := c.do(op, req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", c.fail(op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	return data, resp.Header.Get("Content-Type"), nil
}
