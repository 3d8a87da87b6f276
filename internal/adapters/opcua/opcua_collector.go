package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"

	"github.com/ghalamif/EdgeTap/internal/domain"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

const closeTimeout = 5 * time.Second

// Config selects an OPC UA server whose monitored nodes are published as
// records instead of serial lines.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig maps one node onto record fields. ValueKey names the field the
// node value lands in, e.g. "temp" or "pressure".
type NodeConfig struct {
	NodeID   string `yaml:"node_id"`
	SensorID string `yaml:"sensor_id"`
	ValueKey string `yaml:"value_key"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "EdgeTap"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	for i := range c.Nodes {
		if c.Nodes[i].SensorID == "" {
			c.Nodes[i].SensorID = c.Nodes[i].NodeID
		}
		if c.Nodes[i].ValueKey == "" {
			c.Nodes[i].ValueKey = "value"
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	for _, n := range c.Nodes {
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("node %q: %w", n.NodeID, err)
		}
	}
	return nil
}

// session is one connected subscription. It is replaced wholesale on each
// Start so Stop never sees a half-built one.
type session struct {
	client  *opcua.Client
	sub     *opcua.Subscription
	cancel  context.CancelFunc
	handles map[uint32]NodeConfig
	done    chan struct{}
}

// Collector subscribes to the configured nodes and emits one record per
// data change.
type Collector struct {
	cfg    Config
	logger zerolog.Logger

	mu   sync.Mutex
	sess *session
	seq  map[string]uint64
}

func NewCollector(cfg Config, logger zerolog.Logger) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		cfg:    cfg,
		logger: logger.With().Str("component", "opcua").Logger(),
		seq:    make(map[string]uint64),
	}, nil
}

// Start connects, subscribes and streams records into out until Stop.
func (c *Collector) Start(out chan<- domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return fmt.Errorf("opcua collector already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{cancel: cancel, done: make(chan struct{})}

	notify := make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4)
	if err := c.open(ctx, s, notify); err != nil {
		s.close(c.logger)
		return err
	}

	c.sess = s
	go c.consume(ctx, s, notify, out)

	c.logger.Info().
		Str("endpoint", c.cfg.Endpoint).
		Int("nodes", len(s.handles)).
		Msg("opcua subscription active")
	return nil
}

func (c *Collector) open(ctx context.Context, s *session, notify chan *opcua.PublishNotificationData) error {
	client, err := opcua.NewClient(c.cfg.Endpoint, c.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect %s: %w", c.cfg.Endpoint, err)
	}
	s.client = client

	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{Interval: c.cfg.PublishInterval}, notify)
	if err != nil {
		return fmt.Errorf("opcua subscribe: %w", err)
	}
	s.sub = sub

	reqs := make([]*ua.MonitoredItemCreateRequest, len(c.cfg.Nodes))
	s.handles = make(map[uint32]NodeConfig, len(c.cfg.Nodes))
	for i, node := range c.cfg.Nodes {
		handle := uint32(i + 1)
		reqs[i] = opcua.NewMonitoredItemCreateRequestWithDefaults(ua.MustParseNodeID(node.NodeID), ua.AttributeIDValue, handle)
		if c.cfg.SamplingInterval > 0 {
			reqs[i].RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		s.handles[handle] = node
	}

	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, reqs...)
	if err != nil {
		return fmt.Errorf("opcua monitor: %w", err)
	}
	if len(res.Results) != len(reqs) {
		return fmt.Errorf("opcua monitor: %d results for %d nodes", len(res.Results), len(reqs))
	}
	for i, r := range res.Results {
		if r.StatusCode != ua.StatusOK {
			return fmt.Errorf("monitor node %q: %s", c.cfg.Nodes[i].NodeID, r.StatusCode)
		}
	}
	return nil
}

// Stop cancels the subscription, closes the session and waits for the
// consumer goroutine.
func (c *Collector) Stop() error {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	err := s.close(c.logger)
	<-s.done
	return err
}

func (s *session) close(logger zerolog.Logger) error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if s.sub != nil {
		if err := s.sub.Cancel(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if s.client != nil {
		if err := s.client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn().Err(err).Msg("opcua session close")
		return err
	}
	return nil
}

func (c *Collector) consume(ctx context.Context, s *session, ch <-chan *opcua.PublishNotificationData, out chan<- domain.Record) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.logger.Warn().Err(notif.Error).Msg("notification error")
				continue
			}
			for _, rec := range c.records(s.handles, notif.Value) {
				select {
				case <-ctx.Done():
					return
				case out <- rec:
				}
			}
		}
	}
}

// records turns a data change notification into records, one per item of a
// configured node. Other notification kinds yield nothing.
func (c *Collector) records(handles map[uint32]NodeConfig, val any) []domain.Record {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return nil
	}

	recs := make([]domain.Record, 0, len(data.MonitoredItems))
	for _, item := range data.MonitoredItems {
		node, ok := handles[item.ClientHandle]
		if !ok || item.Value == nil {
			continue
		}
		v, ok := recordValue(item.Value.Value)
		if !ok {
			c.logger.Warn().Str("node_id", node.NodeID).Msg("skipping unsupported value type")
			continue
		}

		rec := domain.Record{
			node.ValueKey: v,
			"sensor_id":   node.SensorID,
			"node_id":     node.NodeID,
			"seq":         float64(c.nextSeq(node.SensorID)),
			"timestamp":   unixSeconds(sampleTime(item.Value)),
		}
		if item.Value.Status != ua.StatusOK {
			rec["quality"] = item.Value.Status.Error()
		}
		recs = append(recs, rec)
	}
	return recs
}

func (c *Collector) nextSeq(sensor string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[sensor]++
	return c.seq[sensor]
}

func (c *Collector) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(securityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(c.cfg.SecurityPolicy),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if c.cfg.Username != "" {
		return append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	}
	return append(opts, opcua.AuthAnonymous())
}

// sampleTime prefers the device's own timestamp, the one a serial record
// would have carried.
func sampleTime(dv *ua.DataValue) time.Time {
	switch {
	case !dv.SourceTimestamp.IsZero():
		return dv.SourceTimestamp
	case !dv.ServerTimestamp.IsZero():
		return dv.ServerTimestamp
	default:
		return time.Now()
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// recordValue converts a variant to the JSON-compatible types a record holds:
// numbers become float64, booleans and strings pass through.
func recordValue(v *ua.Variant) (any, bool) {
	if v == nil {
		return nil, false
	}

	switch val := v.Value().(type) {
	case bool, string:
		return val, true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), true
	default:
		return nil, false
	}
}

func securityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

var _ ports.Collector = (*Collector)(nil)
