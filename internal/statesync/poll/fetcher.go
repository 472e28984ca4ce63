package poll

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/slurmdash/slurmdash/internal/statesync/metrics"
	"github.com/slurmdash/slurmdash/pkg/api"
)

// Fetcher performs the pull-based full-host status query.
type Fetcher interface {
	FetchHostStatus(ctx context.Context, host string) (*api.StatusResponse, error)
}

// HTTPFetcher queries GET <baseUrl>/status?host=<host> on the gateway.
type HTTPFetcher struct {
	baseUrl string
	client  *http.Client
}

func NewHTTPFetcher(baseUrl string, requestTimeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseUrl: baseUrl,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (f *HTTPFetcher) FetchHostStatus(ctx context.Context, host string) (*api.StatusResponse, error) {
	endpoint, err := url.Parse(f.baseUrl + "/status")
	if err != nil {
		return nil, errors.Wrapf(err, "invalid status endpoint for %s", f.baseUrl)
	}
	query := endpoint.Query()
	query.Set("host", host)
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Request-Id", uuid.NewString())

	metrics.PollsTotal.WithLabelValues(host).Inc()
	response, err := f.client.Do(request)
	if err != nil {
		metrics.PollFailuresTotal.WithLabelValues(host).Inc()
		return nil, errors.Wrapf(err, "status query for host %s failed", host)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		metrics.PollFailuresTotal.WithLabelValues(host).Inc()
		return nil, errors.Errorf("status query for host %s returned %s", host, response.Status)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		metrics.PollFailuresTotal.WithLabelValues(host).Inc()
		return nil, errors.Wrapf(err, "failed to read status response for host %s", host)
	}

	decoded, err := api.DecodeStatusResponse(body)
	if err != nil {
		metrics.DecodeFailuresTotal.Inc()
		metrics.PollFailuresTotal.WithLabelValues(host).Inc()
		return nil, err
	}
	return decoded, nil
}
