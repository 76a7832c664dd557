package flow

import "testing"

func TestDecodeEndpointsRequiresResultObject(t *testing.T) {
	if _, err := DecodeEndpoints([]byte(`{"endpoints": {}}`)); err == nil {
		t.Fatal("DecodeEndpoints() accepted a catalog without result")
	}

	cat, err := DecodeEndpoints([]byte(`{
		"result": {
			"crm_lookup": {"url": "https://crm.local/api", "method": "POST",
			               "timeout": 2000, "auth_required": true,
			               "headers": {"X-Tenant": "qa"}}
		}
	}`))
	if err != nil {
		t.Fatalf("DecodeEndpoints() error: %v", err)
	}

	ep, ok := cat.Lookup("crm_lookup")
	if !ok {
		t.Fatal("Lookup(crm_lookup) missing")
	}
	if ep.URL != "https://crm.local/api" || ep.Method != "POST" {
		t.Errorf("endpoint = %+v", ep)
	}
	if !ep.AuthRequired || ep.TimeoutMs != 2000 {
		t.Errorf("endpoint tuning = %+v", ep)
	}
	if _, ok := cat.Lookup("missing"); ok {
		t.Error("Lookup(missing) found an entry")
	}
}

func TestExtensionMapDialShapes(t *testing.T) {
	m, err := DecodeExtensions([]byte(`{
		"sales":   "1001",
		"support": {"Extension": "1002"},
		"night":   {"extension": "user/1003@pbx"},
		"broken":  42
	}`))
	if err != nil {
		t.Fatalf("DecodeExtensions() error: %v", err)
	}

	cases := []struct {
		id   string
		want string
		ok   bool
	}{
		{"sales", "1001", true},
		{"support", "1002", true},
		{"night", "user/1003@pbx", true},
		{"broken", "", false},
		{"absent", "", false},
	}
	for _, tc := range cases {
		got, ok := m.Dial(tc.id)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Dial(%q) = %q, %v; want %q, %v", tc.id, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRecordingTypeOptions(t *testing.T) {
	m, err := DecodeRecordingTypes([]byte(`{
		"voicemail": {"beep": true, "max_seconds": 90, "silence_threshold": 300, "silence_seconds": 4},
		"garbage":   "not an object"
	}`))
	if err != nil {
		t.Fatalf("DecodeRecordingTypes() error: %v", err)
	}

	opts, ok := m.Options("voicemail")
	if !ok {
		t.Fatal("Options(voicemail) missing")
	}
	if !opts.Beep || opts.MaxSeconds != 90 || opts.SilenceThreshold != 300 || opts.SilenceSeconds != 4 {
		t.Errorf("options = %+v", opts)
	}

	if _, ok := m.Options("garbage"); ok {
		t.Error("Options(garbage) decoded a string entry")
	}
	if _, ok := m.Options("absent"); ok {
		t.Error("Options(absent) found an entry")
	}
}
