package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestService_JSONRoundTrip(t *testing.T) {
	want := Service{
		ID:                   ServiceID("S1"),
		StatusPageID:         "P1",
		Name:                 "api",
		Endpoint:             "https://example.com/health",
		Protocol:             ProtocolHTTPS,
		CheckIntervalSeconds: 60,
		TimeoutMS:            5000,
		ExpectedStatusCode:   200,
		Status:               StatusOperational,
		CreatedAt:            time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Service
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != want.ID || got.Endpoint != want.Endpoint || got.Protocol != want.Protocol ||
		got.TimeoutMS != want.TimeoutMS || got.Status != want.Status ||
		!got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
	}
}

func TestCheckResult_JSONRoundTrip(t *testing.T) {
	code := 503
	want := CheckResult{
		ID:         "R1",
		ServiceID:  ServiceID("S1"),
		Up:         false,
		LatencyMS:  123,
		StatusCode: &code,
		Error:      "unexpected status code: 503 (want 200)",
		CheckedAt:  time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got CheckResult
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ServiceID != want.ServiceID || got.Up != want.Up ||
		got.LatencyMS != want.LatencyMS || got.Error != want.Error ||
		!got.CheckedAt.Equal(want.CheckedAt) {
		t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
	}
	if got.StatusCode == nil || *got.StatusCode != code {
		t.Fatalf("status code mismatch: %v", got.StatusCode)
	}
}

func TestValidProtocol(t *testing.T) {
	cases := []struct {
		in   Protocol
		want bool
	}{
		{ProtocolHTTP, true},
		{ProtocolHTTPS, true},
		{ProtocolTCP, true},
		{ProtocolGRPC, true},
		{Protocol("UDP"), false},
		{Protocol(""), false},
	}
	for _, c := range cases {
		if got := ValidProtocol(c.in); got != c.want {
			t.Fatalf("ValidProtocol(%q)=%v want %v", c.in, got, c.want)
		}
	}
}
