package tool

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

var (
	// DefaultTimeout bounds a whole batch transfer. Large batches are sent in one request.
	DefaultTimeout   = 5 * time.Minute
	UploadHttpClient *http.Client
	httpClientMu     sync.RWMutex
)

func init() {
	UploadHttpClient = NewHTTPClient(DefaultTimeout)
}

// NewHTTPClient creates an HTTP client with a cookie jar so session cookies set by the
// ingestion endpoint are sent back on later requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	jar, _ := cookiejar.New(nil) // only fails with non-nil options
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}
}

// InitHTTPClients (re)initializes the upload client with the configured timeout.
func InitHTTPClients(timeout time.Duration) {
	httpClientMu.Lock()
	defer httpClientMu.Unlock()
	UploadHttpClient = NewHTTPClient(timeout)
}

func GetHttpClient() *http.Client {
	httpClientMu.RLock()
	defer httpClientMu.RUnlock()
	return UploadHttpClient
}
