package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/metrics/counter"
)

// Dispatcher delivers events to subscribed webhook endpoints. Every delivery
// re-validates the destination, signs the payload and persists the outcome;
// failures schedule retries on a fixed backoff ladder.
type Dispatcher struct {
	cfg        Config
	endpoints  repository.WebhookEndpointRepository
	deliveries repository.WebhookDeliveryRepository

	http     *http.Client
	validate func(string) GuardResult
	now      func() time.Time
}

// NewDispatcher creates a dispatcher from injected repositories.
func NewDispatcher(cfg Config, endpoints repository.WebhookEndpointRepository, deliveries repository.WebhookDeliveryRepository) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		endpoints:  endpoints,
		deliveries: deliveries,
		http:       newHTTPClient(cfg.Timeout),
		validate:   ValidateDestination,
		now:        time.Now,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}

// Trigger builds one event and delivers it to every active endpoint
// subscribed to the event type. Deliveries run concurrently and settle
// independently; one slow or failing endpoint never affects the others.
// Errors are recorded on the delivery rows, not raised to the caller.
func (d *Dispatcher) Trigger(ctx context.Context, eventType string, object interface{}, previousAttributes interface{}) {
	endpoints, err := d.endpoints.ListActiveByEvent(eventType)
	if err != nil {
		log.Errorf("[Webhook] Failed to list endpoints for %s: %v", eventType, err)
		return
	}
	if len(endpoints) == 0 {
		return
	}

	event := Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		CreatedAt: d.now().UTC(),
		Data: EventData{
			Object:             object,
			PreviousAttributes: previousAttributes,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Webhook] Failed to marshal event %s: %v", event.ID, err)
		return
	}

	var wg sync.WaitGroup
	for i := range endpoints {
		endpoint := endpoints[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Deliver(ctx, &endpoint, event, payload); err != nil {
				log.Errorf("[Webhook] Delivery of %s to endpoint %d failed: %v", event.ID, endpoint.ID, err)
			}
		}()
	}
	wg.Wait()
}

// Deliver creates a delivery row for one endpoint and performs the first
// attempt. The returned error covers infrastructure failures only; blocked
// destinations and HTTP failures are recorded on the row.
func (d *Dispatcher) Deliver(ctx context.Context, endpoint *models.WebhookEndpoint, event Event, payload []byte) error {
	delivery := &models.WebhookDelivery{
		EndpointID: endpoint.ID,
		EventID:    event.ID,
		EventType:  event.Type,
		Payload:    string(payload),
		Status:     models.DeliveryStatusPending,
	}
	if err := d.deliveries.Create(delivery); err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return d.attempt(ctx, endpoint, delivery)
}

// attempt performs one delivery attempt against an existing delivery row.
// Also used by the retry processor after claiming a due delivery.
func (d *Dispatcher) attempt(ctx context.Context, endpoint *models.WebhookEndpoint, delivery *models.WebhookDelivery) error {
	if guard := d.validate(endpoint.URL); !guard.Allowed {
		// Policy-blocked destinations are terminal: no retry is ever scheduled.
		reason := "destination blocked: " + guard.Reason
		if _, err := d.deliveries.MarkFailed(delivery.ID, d.cfg.MaxAttempts, nil, reason); err != nil {
			return fmt.Errorf("mark blocked delivery failed: %w", err)
		}
		d.recordOutcome(endpoint.ID, models.LastDeliveryStatusBlocked, false)
		log.Warnf("[Webhook] Blocked delivery %d to endpoint %d: %s", delivery.ID, endpoint.ID, guard.Reason)
		return nil
	}

	status, body, err := d.post(ctx, endpoint, delivery.EventID, delivery.EventType, []byte(delivery.Payload))
	if err == nil && status >= 200 && status < 300 {
		if _, derr := d.deliveries.MarkSuccess(delivery.ID, status, body, d.now()); derr != nil {
			return fmt.Errorf("mark delivery success: %w", derr)
		}
		d.recordOutcome(endpoint.ID, models.LastDeliveryStatusSuccess, true)
		return nil
	}

	var statusPtr *int
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	} else {
		statusPtr = &status
		errMsg = fmt.Sprintf("endpoint returned status %d", status)
	}
	return d.handleFailure(endpoint, delivery, statusPtr, errMsg)
}

// handleFailure increments the attempt counter and either schedules the next
// retry or marks the delivery terminally failed.
func (d *Dispatcher) handleFailure(endpoint *models.WebhookEndpoint, delivery *models.WebhookDelivery, responseStatus *int, errMsg string) error {
	attempts := delivery.Attempts + 1
	delivery.Attempts = attempts

	if attempts >= d.cfg.MaxAttempts {
		if _, err := d.deliveries.MarkFailed(delivery.ID, attempts, responseStatus, errMsg); err != nil {
			return fmt.Errorf("mark delivery failed: %w", err)
		}
		d.recordOutcome(endpoint.ID, models.LastDeliveryStatusFailed, false)
		log.Warnf("[Webhook] Delivery %d to endpoint %d failed permanently after %d attempts: %s", delivery.ID, endpoint.ID, attempts, errMsg)
		return nil
	}

	nextRetryAt := d.now().Add(RetryDelay(attempts))
	if _, err := d.deliveries.MarkRetrying(delivery.ID, attempts, nextRetryAt, responseStatus, errMsg); err != nil {
		return fmt.Errorf("mark delivery retrying: %w", err)
	}
	d.recordOutcome(endpoint.ID, models.LastDeliveryStatusFailed, false)
	return nil
}

// post sends the signed payload to the endpoint with a bounded timeout.
func (d *Dispatcher) post(ctx context.Context, endpoint *models.WebhookEndpoint, eventID, eventType string, payload []byte) (int, string, error) {
	cctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set(HeaderSignature, Sign(payload, endpoint.Secret, d.now()))
	req.Header.Set(HeaderID, eventID)
	req.Header.Set(HeaderEvent, eventType)

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.cfg.ResponseBodyLimit)))
	return resp.StatusCode, string(body), nil
}

// recordOutcome updates the endpoint's last-delivery info and the Redis
// delivery counters. Both are best-effort: bookkeeping failures never affect
// the delivery path.
func (d *Dispatcher) recordOutcome(endpointID uint, status string, success bool) {
	if err := d.endpoints.UpdateLastDelivery(endpointID, d.now(), status); err != nil {
		log.Errorf("[Webhook] Failed to update last delivery for endpoint %d: %v", endpointID, err)
	}
	if !d.cfg.CountersEnabled {
		return
	}
	var err error
	if success {
		err = counter.AddDeliverySuccess(endpointID)
	} else {
		err = counter.AddDeliveryFailure(endpointID)
	}
	if err != nil {
		log.Errorf("[Webhook] Failed to bump delivery counter for endpoint %d: %v", endpointID, err)
	}
}

// SendTest performs one synchronous delivery of a fixed sample payload.
// Nothing is persisted and no retry is scheduled; the result goes straight
// back to the caller.
func (d *Dispatcher) SendTest(ctx context.Context, endpoint *models.WebhookEndpoint) TestResult {
	if guard := d.validate(endpoint.URL); !guard.Allowed {
		return TestResult{Error: "destination blocked: " + guard.Reason}
	}

	event := Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      "webhook.test",
		CreatedAt: d.now().UTC(),
		Data: EventData{
			Object: map[string]interface{}{
				"message": "This is a test webhook from CauseKit.",
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return TestResult{Error: err.Error()}
	}

	start := time.Now()
	status, _, err := d.post(ctx, endpoint, event.ID, event.Type, payload)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return TestResult{DurationMs: elapsed, Error: err.Error()}
	}
	return TestResult{
		Success:    status >= 200 && status < 300,
		Status:     status,
		DurationMs: elapsed,
	}
}
