package clients

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ruteri/secret-contract-enclave/api"
	"github.com/ruteri/secret-contract-enclave/api/adminhandler"
	"github.com/ruteri/secret-contract-enclave/keymanager"
)

// AdminClient submits Shamir shares to a locked enclave key manager.
type AdminClient struct {
	baseURL    string
	adminID    string
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewAdminClient creates a new admin client.
//
// Parameters:
//   - baseURL: The base URL of the enclave API (e.g., "http://localhost:8080")
//   - adminID: The administrator's ID as registered in the admin keys file
//   - privateKey: The administrator's P-256 private key, may be nil for GetStatus
//   - timeout: Request timeout duration (optional, default 30 seconds)
func NewAdminClient(baseURL, adminID string, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *AdminClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &AdminClient{
		baseURL:    baseURL,
		adminID:    adminID,
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// GetStatus queries the key manager state.
func (c *AdminClient) GetStatus() (api.AdminStatusResponse, error) {
	var status api.AdminStatusResponse

	resp, err := c.httpClient.Get(c.baseURL + "/admin/status")
	if err != nil {
		return status, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return status, fmt.Errorf("status request failed with code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to parse status response: %w", err)
	}
	return status, nil
}

// SubmitShare signs the share with the admin key and submits it. The returned
// status reflects the key manager after the share was accepted.
func (c *AdminClient) SubmitShare(share []byte) (api.AdminStatusResponse, error) {
	var status api.AdminStatusResponse

	signature, err := keymanager.SignShare(share, c.privateKey)
	if err != nil {
		return status, fmt.Errorf("failed to sign share: %w", err)
	}

	reqJSON, err := json.Marshal(api.ShareSubmission{Share: share, Signature: signature})
	if err != nil {
		return status, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := CreateSignedAdminRequest(http.MethodPost, c.baseURL+"/admin/share", reqJSON, c.adminID, c.privateKey)
	if err != nil {
		return status, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return status, fmt.Errorf("submit share request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return status, fmt.Errorf("submit share failed with code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to parse submit share response: %w", err)
	}
	return status, nil
}

// WaitUnlocked polls the status endpoint until the key manager is unlocked.
func (c *AdminClient) WaitUnlocked(timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		status, err := c.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get key manager status: %w", err)
		}

		if status.Unlocked {
			return nil
		}

		time.Sleep(interval)
	}

	return fmt.Errorf("timeout waiting for key manager unlock")
}

// CreateSignedAdminRequest creates a new HTTP request with admin authentication
// headers. The signature covers the URL path followed by the body.
func CreateSignedAdminRequest(method, reqUrl string, body []byte, adminID string, privateKey *ecdsa.PrivateKey) (*http.Request, error) {
	req, err := http.NewRequest(method, reqUrl, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	parsedURL, err := url.Parse(reqUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	signature, err := ecdsa.SignASN1(rand.Reader, privateKey, adminhandler.RequestDigest(parsedURL.Path, body))
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set(adminhandler.AdminIDHeader, adminID)
	req.Header.Set(adminhandler.AdminSignatureHeader, base64.StdEncoding.EncodeToString(signature))
	return req, nil
}
