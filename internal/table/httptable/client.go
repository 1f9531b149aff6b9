// Package httptable implements table.Workbook against a cowork-tables server
package httptable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/cowork/internal/table"
)

// Error codes the server puts in its JSON error body
const (
	CodeSheetNotFound = "sheet_not_found"
	CodeRowOutOfRange = "row_out_of_range"
	CodeSheetExists   = "sheet_exists"
)

// Credentials is the JSON file `cowork-tables token` prints
type Credentials struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
}

// LoadCredentials reads a credentials file
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if c.ServerURL == "" || c.Token == "" {
		return nil, fmt.Errorf("credentials need server_url and token")
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return &c, nil
}

// SheetData is the server's view of one sheet
type SheetData struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Client is a workbook on the server
type Client struct {
	creds      *Credentials
	workbook   string
	httpClient *http.Client
}

// Open loads the credentials file and returns a client for the named workbook
func Open(credentialsFile, workbook string, timeout time.Duration) (*Client, error) {
	creds, err := LoadCredentials(credentialsFile)
	if err != nil {
		return nil, err
	}
	return New(creds, workbook, &http.Client{Timeout: timeout}), nil
}

// New creates a client; httpClient may be nil
func New(creds *Credentials, workbook string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{creds: creds, workbook: workbook, httpClient: httpClient}
}

// Sheet implements table.Workbook
func (c *Client) Sheet(ctx context.Context, title string) (table.Sheet, error) {
	if _, err := c.get(ctx, title); err != nil {
		return nil, err
	}
	return &Sheet{c: c, title: title}, nil
}

// AddSheet implements table.Workbook
func (c *Client) AddSheet(ctx context.Context, title string, header []string) (table.Sheet, error) {
	body := map[string]interface{}{"title": title, "header": header}
	if err := c.do(ctx, http.MethodPost, c.path("sheets"), body, nil); err != nil {
		return nil, err
	}
	return &Sheet{c: c, title: title}, nil
}

// Close implements table.Workbook
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) get(ctx context.Context, title string) (*SheetData, error) {
	var data SheetData
	if err := c.do(ctx, http.MethodGet, c.path("sheets", title), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) path(parts ...string) string {
	segs := []string{"api", "v1", "workbooks", url.PathEscape(c.workbook)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return "/" + strings.Join(segs, "/")
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.creds.ServerURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(status int, body []byte) error {
	var e ErrorResponse
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}
	switch e.Code {
	case CodeSheetNotFound:
		return fmt.Errorf("%w: %s", table.ErrSheetNotFound, e.Error)
	case CodeRowOutOfRange:
		return fmt.Errorf("%w: %s", table.ErrRowOutOfRange, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", status, e.Error)
}

// Sheet is one sheet on the server
type Sheet struct {
	c     *Client
	title string
}

// Title implements table.Sheet
func (s *Sheet) Title() string { return s.title }

// Header implements table.Sheet
func (s *Sheet) Header(ctx context.Context) ([]string, error) {
	data, err := s.c.get(ctx, s.title)
	if err != nil {
		return nil, err
	}
	if data.Header == nil {
		return []string{}, nil
	}
	return data.Header, nil
}

// Rows implements table.Sheet
func (s *Sheet) Rows(ctx context.Context) ([][]string, error) {
	data, err := s.c.get(ctx, s.title)
	if err != nil {
		return nil, err
	}
	if data.Rows == nil {
		return [][]string{}, nil
	}
	return data.Rows, nil
}

// AppendRow implements table.Sheet
func (s *Sheet) AppendRow(ctx context.Context, values []string) error {
	return s.c.do(ctx, http.MethodPost, s.c.path("sheets", s.title, "rows"), valuesBody(values), nil)
}

// UpdateRow implements table.Sheet
func (s *Sheet) UpdateRow(ctx context.Context, index int, values []string) error {
	return s.c.do(ctx, http.MethodPut, s.c.path("sheets", s.title, "rows", strconv.Itoa(index)), valuesBody(values), nil)
}

// DeleteRow implements table.Sheet
func (s *Sheet) DeleteRow(ctx context.Context, index int) error {
	return s.c.do(ctx, http.MethodDelete, s.c.path("sheets", s.title, "rows", strconv.Itoa(index)), nil, nil)
}

// Reset implements table.Sheet
func (s *Sheet) Reset(ctx context.Context, header []string) error {
	return s.c.do(ctx, http.MethodPut, s.c.path("sheets", s.title, "header"), map[string][]string{"header": nonNil(header)}, nil)
}

func valuesBody(values []string) map[string][]string {
	return map[string][]string{"values": nonNil(values)}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
