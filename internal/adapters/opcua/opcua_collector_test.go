package opcua

import (
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}

	cfg = Config{
		Endpoint: "opc.tcp://plc:4840",
		Nodes:    []NodeConfig{{NodeID: "ns=2;s=Boiler.Temp"}},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Nodes[0].SensorID != "ns=2;s=Boiler.Temp" || cfg.Nodes[0].ValueKey != "value" {
		t.Fatalf("unexpected node defaults: %+v", cfg.Nodes[0])
	}
	if cfg.PublishInterval != 250*time.Millisecond || cfg.SecurityMode != "None" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	cfg.Nodes = append(cfg.Nodes, NodeConfig{NodeID: "not a node"})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid node id to be rejected")
	}
}

func TestRecordsFromDataChange(t *testing.T) {
	c, err := NewCollector(Config{
		Endpoint: "opc.tcp://plc:4840",
		Nodes: []NodeConfig{
			{NodeID: "ns=2;s=Boiler.Temp", SensorID: "boiler", ValueKey: "temp"},
			{NodeID: "ns=2;s=Boiler.Running", SensorID: "boiler-run", ValueKey: "running"},
		},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	handles := map[uint32]NodeConfig{1: c.cfg.Nodes[0], 2: c.cfg.Nodes[1]}

	src := time.Unix(1700000000, 0)
	notif := &ua.DataChangeNotification{
		MonitoredItems: []*ua.MonitoredItemNotification{
			{ClientHandle: 1, Value: &ua.DataValue{Value: ua.MustVariant(float32(21.5)), SourceTimestamp: src, ServerTimestamp: src.Add(time.Second)}},
			{ClientHandle: 2, Value: &ua.DataValue{Value: ua.MustVariant(true), Status: ua.StatusBadNodeIDUnknown, SourceTimestamp: src}},
			{ClientHandle: 1, Value: &ua.DataValue{Value: ua.MustVariant([]byte{1})}},
			{ClientHandle: 7, Value: &ua.DataValue{Value: ua.MustVariant(1.0)}},
		},
	}

	recs := c.records(handles, notif)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(recs), recs)
	}
	r := recs[0]
	if r["temp"] != 21.5 || r["sensor_id"] != "boiler" || r["seq"] != 1.0 || r["timestamp"] != 1700000000.0 {
		t.Fatalf("unexpected record: %v", r)
	}
	if _, ok := r["quality"]; ok {
		t.Fatalf("good values must not carry a quality field: %v", r)
	}
	if recs[1]["running"] != true || recs[1]["quality"] == nil {
		t.Fatalf("expected bad-quality boolean record, got %v", recs[1])
	}

	if got := c.records(handles, &ua.EventNotificationList{}); len(got) != 0 {
		t.Fatalf("non data-change notifications must be ignored")
	}
	if again := c.records(handles, notif); again[0]["seq"] != 2.0 {
		t.Fatalf("expected per-sensor sequence to advance, got %v", again[0]["seq"])
	}
}

func TestRecordValue(t *testing.T) {
	cases := []struct {
		in   any
		want any
		ok   bool
	}{
		{int16(-3), -3.0, true},
		{uint32(7), 7.0, true},
		{float64(1.25), 1.25, true},
		{"open", "open", true},
		{false, false, true},
		{[]byte{1}, nil, false},
	}
	for _, tc := range cases {
		got, ok := recordValue(ua.MustVariant(tc.in))
		if ok != tc.ok || got != tc.want {
			t.Fatalf("recordValue(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if _, ok := recordValue(nil); ok {
		t.Fatalf("nil variant must not convert")
	}
}

func TestSecurityMode(t *testing.T) {
	for in, want := range map[string]string{"": "None", "sign": "Sign", "Sign+Encrypt": "SignAndEncrypt"} {
		if got := securityMode(in); got != want {
			t.Fatalf("securityMode(%q) = %q want %q", in, got, want)
		}
	}
}
