package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rental-chat/models"
)

const detectIntentBody = `{
  "responseId": "r1",
  "queryResult": {
    "queryText": "Reserve an SUV",
    "fulfillmentMessages": [
      {"text": {"text": ["Your vehicle will be ready in London on 2025-06-03 at 2025-06-03T15:30:00Z."]}}
    ],
    "intent": {"name": "projects/p/agent/intents/1", "displayName": "Vehicle.add"},
    "parameters": {
      "geo-city-gb": "London",
      "date": "2025-06-03",
      "time": "2025-06-03T15:30:00Z",
      "place-types": "airport",
      "vehicle-types": "SUV",
      "date-time": {"date_time": "2025-06-03T15:30:00Z"},
      "number": 4,
      "color": ""
    }
  }
}`

func TestDetectIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/projects/proj/agent/sessions/s1:detectIntent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req detectIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.QueryInput.Text.Text != "Reserve an SUV" || req.QueryInput.Text.LanguageCode != "en-US" {
			t.Errorf("unexpected query input: %+v", req.QueryInput)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(detectIntentBody))
	}))
	defer srv.Close()

	svc := NewDialogflowServiceForTest(srv.URL, "proj", "en-US")
	res, err := svc.Session("s1").Detect(context.Background(), "Reserve an SUV")
	if err != nil {
		t.Fatal(err)
	}
	if res.IntentName != "Vehicle.add" {
		t.Fatalf("intent name = %q", res.IntentName)
	}
	if !strings.Contains(res.FulfillmentText, "vehicle will be ready") {
		t.Fatalf("fulfillment text = %q", res.FulfillmentText)
	}
	if res.Location != "London" || res.Date != "2025-06-03" || res.Time != "2025-06-03T15:30:00Z" {
		t.Fatalf("well-known slots not extracted: %+v", res)
	}
	if res.Parameters[models.ParamDateTime] != "2025-06-03T15:30:00Z" {
		t.Fatalf("nested date-time not flattened: %q", res.Parameters[models.ParamDateTime])
	}
	if res.Parameters[models.ParamNumber] != "4" {
		t.Fatalf("numeric parameter not flattened: %q", res.Parameters[models.ParamNumber])
	}
	if _, ok := res.Parameters["color"]; ok {
		t.Fatal("empty parameter should be dropped")
	}
}

func TestDetectIntentMissingFulfillment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responseId": "r2", "queryResult": {"intent": {"displayName": "Vehicle.add"}}}`))
	}))
	defer srv.Close()

	svc := NewDialogflowServiceForTest(srv.URL, "proj", "en-US")
	res, err := svc.DetectIntent(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("missing fulfillment should not be an error: %v", err)
	}
	if res.FulfillmentText != "" {
		t.Fatalf("expected empty fulfillment text, got %q", res.FulfillmentText)
	}
}

func TestDetectIntentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "status": "PERMISSION_DENIED", "message": "caller lacks permission"}}`))
	}))
	defer srv.Close()

	svc := NewDialogflowServiceForTest(srv.URL, "proj", "en-US")
	_, err := svc.DetectIntent(context.Background(), "s1", "hello")
	if err == nil || !strings.Contains(err.Error(), "caller lacks permission") {
		t.Fatalf("expected API error with message, got %v", err)
	}
}

func TestFlattenValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{float64(4), "4"},
		{float64(2.5), "2.5"},
		{true, "true"},
		{map[string]any{"date_time": "2025-06-03T15:30:00Z"}, "2025-06-03T15:30:00Z"},
		// No date_time field: first non-empty value in key order, stably.
		{map[string]any{"zone": "GMT", "city": "London"}, "London"},
		{map[string]any{"a": "", "b": "bee", "c": "sea"}, "bee"},
		{[]any{"first", "second"}, "first"},
		{[]any{}, ""},
		{nil, ""},
	}
	for _, c := range cases {
		if got := flattenValue(c.in); got != c.want {
			t.Fatalf("flattenValue(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
