package config_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mmtconf/internal/config"
)

func TestParseDeviceSpec(t *testing.T) {
	tests := []struct {
		raw     string
		want    config.DeviceSpec
		wantErr bool
	}{
		{raw: "auto_1", want: config.DeviceSpec{Auto: 1}},
		{raw: "AUTO_4", want: config.DeviceSpec{Auto: 4}},
		{raw: "0", want: config.DeviceSpec{IDs: []int{0}}},
		{raw: "0, 1,3", want: config.DeviceSpec{IDs: []int{0, 1, 3}}},
		{raw: "", wantErr: true},
		{raw: "auto_0", wantErr: true},
		{raw: "auto_x", wantErr: true},
		{raw: "gpu0", wantErr: true},
		{raw: "1,-2", wantErr: true},
		{raw: "1,1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := config.ParseDeviceSpec(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDeviceSpec(%q) = %+v, expected error", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDeviceSpec(%q) returned error: %v", tt.raw, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseDeviceSpec(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}

	if got := (config.DeviceSpec{IDs: []int{2, 0}}).String(); got != "2,0" {
		t.Fatalf("String() = %q", got)
	}
	if err := (config.DeviceSpec{Auto: 2, IDs: []int{1}}).Validate(); err == nil {
		t.Fatal("expected auto plus explicit devices to be rejected")
	}
}

func TestParseTopology(t *testing.T) {
	topo, err := config.ParseTopology("en, image:numpy -> de:Text")
	if err != nil {
		t.Fatalf("ParseTopology returned error: %v", err)
	}
	want := config.Topology{
		Sources: []config.Stream{{ID: "en", Type: "Text"}, {ID: "image", Type: "Numpy"}},
		Targets: []config.Stream{{ID: "de", Type: "Text"}},
	}
	if diff := cmp.Diff(want, topo); diff != "" {
		t.Fatalf("topology mismatch (-want +got):\n%s", diff)
	}
	if got := topo.String(); got != "en:Text, image:Numpy -> de:Text" {
		t.Fatalf("String() = %q", got)
	}
	if first, _ := topo.FirstTarget(); first.ID != "de" {
		t.Fatalf("first target = %v", first)
	}

	for _, raw := range []string{"en:Text", "en -> de -> fr", "-> de", "en, en -> de", "en:Txt -> de", "e n -> de"} {
		if _, err := config.ParseTopology(raw); err == nil {
			t.Errorf("ParseTopology(%q) expected error", raw)
		}
	}
}

func TestParseMetricsKeepsOrder(t *testing.T) {
	got, err := config.ParseMetrics("METEOR, bleu,loss")
	if err != nil {
		t.Fatalf("ParseMetrics returned error: %v", err)
	}
	want := []config.Metric{config.MetricMETEOR, config.MetricBLEU, config.MetricLoss}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}

	got, err = config.ParseMetrics("['wer', 'cer']")
	if err != nil {
		t.Fatalf("ParseMetrics returned error: %v", err)
	}
	if diff := cmp.Diff([]config.Metric{config.MetricWER, config.MetricCER}, got); diff != "" {
		t.Fatalf("list literal mismatch (-want +got):\n%s", diff)
	}
	if !config.MetricWER.LowerIsBetter() || config.MetricBLEU.LowerIsBetter() {
		t.Fatal("unexpected metric direction")
	}
}

func TestLookupSetting(t *testing.T) {
	s, ok := config.Lookup(config.SectionTrain, "lr_decay_factor")
	if !ok {
		t.Fatal("expected lr_decay_factor in schema")
	}
	if s.Kind != config.KindFloat || s.Default != "0.1" || s.Required {
		t.Fatalf("unexpected setting: %+v", s)
	}
	opt, _ := config.Lookup(config.SectionTrain, "optimizer")
	if diff := cmp.Diff(config.Optimizers(), opt.Choices()); diff != "" {
		t.Fatalf("optimizer choices mismatch (-want +got):\n%s", diff)
	}
	if _, ok := config.Lookup(config.SectionModel, "enc_dim"); ok {
		t.Fatal("model knobs are not typed settings")
	}
}

func TestTextUnmarshalers(t *testing.T) {
	var payload struct {
		Devices   config.DeviceSpec `json:"devices"`
		Direction config.Topology   `json:"direction"`
	}
	if err := json.Unmarshal([]byte(`{"devices": "0,2", "direction": "en, image:ImageFolder -> de"}`), &payload); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if diff := cmp.Diff(config.DeviceSpec{IDs: []int{0, 2}}, payload.Devices); diff != "" {
		t.Fatalf("devices mismatch (-want +got):\n%s", diff)
	}
	if got := payload.Direction.String(); got != "en:Text, image:ImageFolder -> de:Text" {
		t.Fatalf("direction = %q", got)
	}

	var d config.DeviceSpec
	if err := d.UnmarshalText([]byte("auto_0")); err == nil {
		t.Fatal("expected auto_0 to be rejected")
	}
	var topo config.Topology
	if err := topo.UnmarshalText([]byte("en")); err == nil {
		t.Fatal("expected a direction without targets to be rejected")
	}
}

func TestMetricsAreKnown(t *testing.T) {
	metrics := config.Metrics()
	if len(metrics) == 0 || metrics[0] != config.MetricLoss {
		t.Fatalf("unexpected metric list %v", metrics)
	}
	for _, m := range metrics {
		if !m.Known() {
			t.Errorf("%s listed but not known", m)
		}
	}
	metrics[0] = "mutated"
	if config.Metrics()[0] != config.MetricLoss {
		t.Fatal("Metrics returned shared storage")
	}

	cfg, err := config.Parse(strings.NewReader("[train]\nmodel_type: NMT\nsave_path: /r\neval_metrics: bleu,wre\n[model]\ndirection: en -> de\n[data]\ntrain_set: {'en': 'a', 'de': 'b'}\nval_set: {'en': 'a', 'de': 'b'}\n[vocabulary]\nen: v\nde: v\n"), config.LoadOptions{})
	if err == nil || !strings.Contains(err.Error(), "wer") {
		t.Fatalf("expected unknown metric error suggesting wer, got %v (%+v)", err, cfg)
	}
}
