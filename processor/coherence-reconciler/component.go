// Package coherencereconciler provides a JetStream processor that runs the
// Tier-3 coherence pass as a pipeline step. It consumes ReconcileRequest
// messages carrying a deal's full agent-result snapshot, reconciles the
// scenario projection against the skepticism and contradiction signals, and
// publishes a ReconcileResult with the audit trail.
package coherencereconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/meridianvc/diligence/coherence"
	"github.com/meridianvc/diligence/pipeline"
)

// Component implements the coherence-reconciler processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	// engine holds the current reconciliation engine. Swapped atomically by
	// the policy watcher so in-flight requests keep a consistent policy.
	engine atomic.Pointer[coherence.Engine]

	// JetStream consumer state.
	consumer jetstream.Consumer

	// Policy hot-reload.
	watcher *PolicyWatcher

	// Lifecycle.
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics.
	requestsProcessed atomic.Int64
	dealsAdjusted     atomic.Int64
	errorsCount       atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent constructs a coherence-reconciler Component from raw JSON
// config and semstreams dependencies.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults for any unset fields.
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.ReloadDebounce == "" {
		config.ReloadDebounce = defaults.ReloadDebounce
	}
	if config.AckWait == "" {
		config.AckWait = defaults.AckWait
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := deps.GetLogger()

	policy, err := loadPolicy(resolvePolicyPath(config.PolicyPath))
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	c := &Component{
		name:       "coherence-reconciler",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
	}
	c.engine.Store(coherence.NewEngine(policy, logger))

	return c, nil
}

// resolvePolicyPath determines the effective policy file path.
// Priority: explicit config → DILIGENCE_POLICY_PATH env var → none.
func resolvePolicyPath(configured string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv("DILIGENCE_POLICY_PATH")
}

// loadPolicy loads the policy file, or the calibrated defaults when no path
// is configured.
func loadPolicy(path string) (*coherence.Policy, error) {
	if path == "" {
		return coherence.DefaultPolicy(), nil
	}
	return coherence.LoadPolicy(path)
}

// Initialize prepares the component for startup.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized coherence-reconciler",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"policy_path", c.config.PolicyPath)
	return nil
}

// Start begins consuming ReconcileRequest messages from JetStream.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}

	triggerSubject := "pipeline.trigger.coherence-reconciler"
	if c.config.Ports != nil && len(c.config.Ports.Inputs) > 0 {
		triggerSubject = c.config.Ports.Inputs[0].Subject
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: triggerSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.GetAckWait(),
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, consumerConfig)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	if c.config.PolicyReload {
		if err := c.startPolicyWatcher(subCtx); err != nil {
			c.rollbackStart(cancel)
			return fmt.Errorf("start policy watcher: %w", err)
		}
	}

	go c.consumeLoop(subCtx)

	c.logger.Info("coherence-reconciler started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", triggerSubject,
		"policy_reload", c.config.PolicyReload)

	return nil
}

func (c *Component) startPolicyWatcher(ctx context.Context) error {
	path := resolvePolicyPath(c.config.PolicyPath)
	watcher, err := NewPolicyWatcher(path, c.config.GetReloadDebounce(), c.logger, func(policy *coherence.Policy) {
		c.engine.Store(coherence.NewEngine(policy, c.logger))
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	c.watcher = watcher
	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop fetches messages from the JetStream consumer in a tight loop
// until the context is cancelled.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// handleMessage processes a single ReconcileRequest message. The engine pass
// itself cannot fail, so NAKs are reserved for publish failures; malformed
// or invalid requests are ACKed because they will not succeed on retry.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	c.requestsProcessed.Add(1)
	c.updateLastActivity()

	request, err := pipeline.ParsePayload[ReconcileRequest](msg.Data())
	if err != nil {
		c.errorsCount.Add(1)
		metricRequestsTotal.WithLabelValues(outcomeInvalid).Inc()
		c.logger.Error("Failed to parse request", "error", err)
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("Failed to ACK malformed message", "error", ackErr)
		}
		return
	}

	if err := request.Validate(); err != nil {
		metricRequestsTotal.WithLabelValues(outcomeInvalid).Inc()
		c.logger.Error("Invalid request", "error", err)
		if request.HasCallback() {
			if cbErr := request.PublishCallbackFailure(ctx, c.natsClient, err.Error()); cbErr != nil {
				c.logger.Warn("Failed to publish failure callback", "error", cbErr)
			}
		}
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("Failed to ACK invalid message", "error", ackErr)
		}
		return
	}

	if request.RequestID == "" {
		request.RequestID = uuid.New().String()
	}

	c.logger.Info("Processing coherence reconciliation request",
		"deal_id", request.DealID,
		"request_id", request.RequestID,
		"agents", len(request.Results),
		"execution_id", request.ExecutionID)

	start := time.Now()
	engine := c.engine.Load()
	outcome := engine.Reconcile(request.Results)
	metricReconcileDuration.Observe(time.Since(start).Seconds())
	metricCoherenceScore.Observe(outcome.CoherenceScore)

	if outcome.Adjusted {
		c.dealsAdjusted.Add(1)
		metricRequestsTotal.WithLabelValues(outcomeAdjusted).Inc()
		metricAdjustmentsTotal.Add(float64(len(outcome.Adjustments)))

		// Inject the reconciled figures into the snapshot so the callback
		// hands the synthesis step a patched projector record.
		if err := coherence.Apply(request.Results, outcome); err != nil {
			c.logger.Warn("Failed to inject adjustments into snapshot",
				"deal_id", request.DealID,
				"error", err)
		}
	} else {
		metricRequestsTotal.WithLabelValues(outcomeClean).Inc()
	}

	result := &ReconcileResult{
		DealID:    request.DealID,
		RequestID: request.RequestID,
		Outcome:   outcome,
	}

	if err := c.publishResult(ctx, result); err != nil {
		c.errorsCount.Add(1)
		metricRequestsTotal.WithLabelValues(outcomeError).Inc()
		c.logger.Error("Failed to publish reconciliation result",
			"deal_id", request.DealID,
			"error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Warn("Failed to NAK message", "error", nakErr)
		}
		return
	}

	if request.HasCallback() {
		callbackOutput := &ReconcileCallback{
			DealID:    request.DealID,
			RequestID: request.RequestID,
			Outcome:   outcome,
			Results:   request.Results,
		}
		if err := request.PublishCallbackSuccess(ctx, c.natsClient, callbackOutput); err != nil {
			c.logger.Warn("Failed to publish success callback",
				"deal_id", request.DealID,
				"error", err)
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		c.logger.Warn("Failed to ACK message", "error", ackErr)
	}

	c.logger.Info("Coherence reconciliation completed",
		"deal_id", request.DealID,
		"adjusted", outcome.Adjusted,
		"adjustments", len(outcome.Adjustments),
		"coherence_score", outcome.CoherenceScore)
}

// publishResult publishes a ReconcileResult to JetStream.
// Subject: pipeline.result.coherence-reconciler.<deal_id>
func (c *Component) publishResult(ctx context.Context, result *ReconcileResult) error {
	baseMsg := message.NewBaseMessage(result.Schema(), result, "coherence-reconciler")

	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	subject := fmt.Sprintf("pipeline.result.coherence-reconciler.%s", result.DealID)
	if _, err := js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	cancel := c.cancel
	watcher := c.watcher
	c.running = false
	c.cancel = nil
	c.watcher = nil
	c.mu.Unlock()

	// Cancel context after releasing lock to avoid potential deadlock.
	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			c.logger.Warn("Failed to stop policy watcher", "error", err)
		}
	}

	c.logger.Info("coherence-reconciler stopped",
		"requests_processed", c.requestsProcessed.Load(),
		"deals_adjusted", c.dealsAdjusted.Load(),
		"errors", c.errorsCount.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "coherence-reconciler",
		Type:        "processor",
		Description: "Reconciles scenario projections against skepticism and contradiction signals",
		Version:     "0.1.0",
	}
}

// InputPorts returns the configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, def := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        def.Name,
			Direction:   component.DirectionInput,
			Required:    def.Required,
			Description: def.Description,
			Config:      component.NATSPort{Subject: def.Subject},
		}
	}
	return ports
}

// OutputPorts returns the configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, def := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        def.Name,
			Direction:   component.DirectionOutput,
			Required:    def.Required,
			Description: def.Description,
			Config:      component.NATSPort{Subject: def.Subject},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return coherenceReconcilerSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorsCount.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
