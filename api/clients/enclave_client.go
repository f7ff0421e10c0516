package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ruteri/secret-contract-enclave/api"
)

// EnclaveClient calls the ecall endpoints. Enclave failures come back as a
// CallResponse with Result set to api.ResultFailure, not as an error; the
// error return is reserved for transport and request problems.
type EnclaveClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewEnclaveClient(baseURL string, timeout ...time.Duration) *EnclaveClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &EnclaveClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

func (c *EnclaveClient) Init(ctx context.Context, req api.CallRequest) (api.CallResponse, error) {
	var resp api.CallResponse
	err := c.post(ctx, "/api/ecall/init", "application/json", req, &resp)
	return resp, err
}

func (c *EnclaveClient) Handle(ctx context.Context, req api.CallRequest) (api.CallResponse, error) {
	var resp api.CallResponse
	err := c.post(ctx, "/api/ecall/handle", "application/json", req, &resp)
	return resp, err
}

func (c *EnclaveClient) Query(ctx context.Context, req api.CallRequest) (api.CallResponse, error) {
	var resp api.CallResponse
	err := c.post(ctx, "/api/ecall/query", "application/json", req, &resp)
	return resp, err
}

func (c *EnclaveClient) GenerateKey(ctx context.Context) (api.KeyGenResponse, error) {
	var resp api.KeyGenResponse
	err := c.post(ctx, "/api/ecall/keygen", "application/json", nil, &resp)
	return resp, err
}

// UploadCode stores contract code and returns its hex code hash.
func (c *EnclaveClient) UploadCode(ctx context.Context, code []byte) (string, error) {
	var resp api.CodeUploadResponse
	if err := c.post(ctx, "/api/code", "application/octet-stream", code, &resp); err != nil {
		return "", err
	}
	return resp.CodeHash, nil
}

// post sends body as JSON, or raw when it is a byte slice.
func (c *EnclaveClient) post(ctx context.Context, path, contentType string, body any, out any) error {
	var reqBody []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		reqBody = b
	default:
		var err error
		reqBody, err = json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request to %s failed with code %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}
