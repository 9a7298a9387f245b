package thermo

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	accountBaseURL = "https://account.xiaomi.com"
	serviceID      = "xiaomiio"

	// Account endpoints prefix JSON bodies with this guard against
	// JSON hijacking. Strip it before decoding.
	jsonGuardPrefix = "&&&START&&&"
)

// ErrMissingCredentials is returned before any network activity when
// the cloud account is not configured.
var ErrMissingCredentials = errors.New("cloud username and password are required")

// ErrLoginFailed wraps authentication failures against the account
// service. Callers use NeedsLogin to map it to a re-login prompt.
var ErrLoginFailed = errors.New("cloud login failed")

// NeedsLogin reports whether an error suggests stale or rejected
// credentials rather than a transient upstream fault.
func NeedsLogin(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrLoginFailed) {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "login failed") || strings.Contains(text, "token")
}

// Device is one entry from the cloud device list. Raw carries the
// untyped record verbatim; the reconciler digs optional fields
// (room hints, embedded sensor values, online flags) out of it.
type Device struct {
	DID         string
	Name        string
	Model       string
	Description string
	Raw         map[string]any
}

// CloudClient is the transport the reconciler runs against.
type CloudClient interface {
	// Devices fetches the account's device list.
	Devices(ctx context.Context) ([]Device, error)

	// Call posts a signed request to an API endpoint (e.g.
	// "/home/rpc/<did>") and returns the decoded JSON object, or nil
	// when the response was unusable. Transport errors surface as nil
	// responses: a failed property probe must not abort reconciliation.
	Call(ctx context.Context, endpoint string, payload map[string]any) map[string]any
}

// MiCloudClient talks to the Xiaomi account and regional API services.
// Login happens lazily on first use and the session is reused across
// calls. Safe for concurrent use.
type MiCloudClient struct {
	account *resty.Client
	api     *resty.Client

	username string
	password string
	country  string

	mu      sync.Mutex
	session *cloudSession
}

// cloudSession holds the credentials minted by a successful login.
type cloudSession struct {
	userID       string
	ssecurity    []byte
	serviceToken string
}

// NewMiCloudClient creates a client for the given account. The country
// code selects the regional API host (de, cn, us, ...). Timeout bounds
// each HTTP round trip.
func NewMiCloudClient(username, password, country string, timeout time.Duration) *MiCloudClient {
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = "de"
	}
	account := resty.New().
		SetBaseURL(accountBaseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Android-7.1.1-1.0.0-ONEPLUS A3010-136-APP/xiaomi.smarthome.APP")
	api := resty.New().
		SetBaseURL(fmt.Sprintf("https://%s.api.io.mi.com/app", country)).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Android-7.1.1-1.0.0-ONEPLUS A3010-136-APP/xiaomi.smarthome.APP").
		SetHeader("x-xiaomi-protocal-flag-cli", "PROTOCAL-HTTP2")
	return &MiCloudClient{
		account:  account,
		api:      api,
		username: strings.TrimSpace(username),
		password: strings.TrimSpace(password),
		country:  country,
	}
}

// Devices implements CloudClient.
func (c *MiCloudClient) Devices(ctx context.Context) ([]Device, error) {
	response, err := c.call(ctx, "/home/device_list", map[string]any{
		"getVirtualModel": false,
		"getHuamiDevices": 0,
	})
	if err != nil {
		return nil, err
	}

	result, ok := response["result"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("device list: unexpected response shape")
	}
	entries, ok := result["list"].([]any)
	if !ok {
		return nil, fmt.Errorf("device list: missing list field")
	}

	devices := make([]Device, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		devices = append(devices, Device{
			DID:         firstNonEmpty(raw["did"]),
			Name:        firstNonEmpty(raw["name"]),
			Model:       firstNonEmpty(raw["model"]),
			Description: firstNonEmpty(raw["desc"]),
			Raw:         raw,
		})
	}
	return devices, nil
}

// Call implements CloudClient. Errors are swallowed: the reconciler
// treats any failure as "this source had nothing".
func (c *MiCloudClient) Call(ctx context.Context, endpoint string, payload map[string]any) map[string]any {
	response, err := c.call(ctx, endpoint, payload)
	if err != nil {
		return nil
	}
	return response
}

func (c *MiCloudClient) call(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	session, err := c.ensureLogin(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	signedNonce := signNonce(session.ssecurity, nonce)
	signature := signRequest(endpoint, signedNonce, nonce, string(data))

	resp, err := c.api.R().
		SetContext(ctx).
		SetCookies(sessionCookies(session, c.country)).
		SetFormData(map[string]string{
			"signature": signature,
			"_nonce":    nonce,
			"data":      string(data),
		}).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("cloud request %s: %w", endpoint, err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		c.dropSession()
		return nil, fmt.Errorf("%w: service token rejected (status %d)", ErrLoginFailed, resp.StatusCode())
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cloud request %s: status %d", endpoint, resp.StatusCode())
	}

	var decoded map[string]any
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("cloud request %s: decode response: %w", endpoint, err)
	}
	return decoded, nil
}

func (c *MiCloudClient) ensureLogin(ctx context.Context) (*cloudSession, error) {
	if c.username == "" || c.password == "" {
		return nil, ErrMissingCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	session, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	c.session = session
	return session, nil
}

func (c *MiCloudClient) dropSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// login runs the three-step account flow: fetch the login sign, post
// the hashed credentials, then follow the issued location to mint a
// service token.
func (c *MiCloudClient) login(ctx context.Context) (*cloudSession, error) {
	resp, err := c.account.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"sid": serviceID, "_json": "true"}).
		Get("/pass/serviceLogin")
	if err != nil {
		return nil, fmt.Errorf("%w: fetch sign: %v", ErrLoginFailed, err)
	}
	var signBody struct {
		Sign string `json:"_sign"`
	}
	if err := decodeGuardedJSON(resp.Body(), &signBody); err != nil {
		return nil, fmt.Errorf("%w: decode sign response: %v", ErrLoginFailed, err)
	}

	passwordHash := fmt.Sprintf("%X", md5.Sum([]byte(c.password)))
	resp, err = c.account.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sid":      serviceID,
			"hash":     passwordHash,
			"callback": "https://sts.api.io.mi.com/sts",
			"qs":       "%3Fsid%3Dxiaomiio%26_json%3Dtrue",
			"user":     c.username,
			"_sign":    signBody.Sign,
			"_json":    "true",
		}).
		Post("/pass/serviceLoginAuth2")
	if err != nil {
		return nil, fmt.Errorf("%w: auth request: %v", ErrLoginFailed, err)
	}
	var authBody struct {
		Code        int             `json:"code"`
		Description string          `json:"description"`
		SSecurity   string          `json:"ssecurity"`
		UserID      json.Number     `json:"userId"`
		Location    string          `json:"location"`
		NotifyURL   string          `json:"notificationUrl"`
		CaptchaURL  json.RawMessage `json:"captchaUrl"`
	}
	if err := decodeGuardedJSON(resp.Body(), &authBody); err != nil {
		return nil, fmt.Errorf("%w: decode auth response: %v", ErrLoginFailed, err)
	}
	if authBody.Code != 0 || authBody.SSecurity == "" || authBody.Location == "" {
		reason := authBody.Description
		if reason == "" {
			reason = "credentials rejected"
		}
		if authBody.NotifyURL != "" {
			reason += " (two-factor verification required)"
		}
		return nil, fmt.Errorf("%w: %s", ErrLoginFailed, reason)
	}
	ssecurity, err := base64.StdEncoding.DecodeString(authBody.SSecurity)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ssecurity", ErrLoginFailed)
	}

	resp, err = c.account.R().
		SetContext(ctx).
		Get(authBody.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch service token: %v", ErrLoginFailed, err)
	}
	serviceToken := ""
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "serviceToken" {
			serviceToken = cookie.Value
			break
		}
	}
	if serviceToken == "" {
		return nil, fmt.Errorf("%w: no service token issued", ErrLoginFailed)
	}

	return &cloudSession{
		userID:       authBody.UserID.String(),
		ssecurity:    ssecurity,
		serviceToken: serviceToken,
	}, nil
}

// decodeGuardedJSON strips the account service's JSON-hijacking guard
// prefix and decodes the remainder.
func decodeGuardedJSON(body []byte, target any) error {
	text := strings.TrimSpace(string(body))
	text = strings.TrimPrefix(text, jsonGuardPrefix)
	return json.Unmarshal([]byte(text), target)
}

// newNonce builds the request nonce: 8 random bytes plus the current
// minute, base64 encoded.
func newNonce() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf[:8]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	binary.BigEndian.PutUint32(buf[8:], uint32(time.Now().Unix()/60))
	return base64.StdEncoding.EncodeToString(buf), nil
}

// signNonce derives the per-request key from the session secret and
// the nonce.
func signNonce(ssecurity []byte, nonce string) string {
	nonceBytes, _ := base64.StdEncoding.DecodeString(nonce)
	sum := sha256.Sum256(append(append([]byte{}, ssecurity...), nonceBytes...))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// signRequest produces the HMAC signature the API service verifies.
func signRequest(path, signedNonce, nonce, data string) string {
	key, _ := base64.StdEncoding.DecodeString(signedNonce)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.Join([]string{path, signedNonce, nonce, "data=" + data}, "&")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func sessionCookies(session *cloudSession, country string) []*http.Cookie {
	return []*http.Cookie{
		{Name: "userId", Value: session.userID},
		{Name: "serviceToken", Value: session.serviceToken},
		{Name: "yetAnotherServiceToken", Value: session.serviceToken},
		{Name: "locale", Value: country},
		{Name: "sdkVersion", Value: "accountsdk-18.8.15"},
	}
}
