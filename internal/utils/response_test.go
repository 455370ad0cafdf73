package utils

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSuccessResponse(t *testing.T) {
	body, err := json.Marshal(SuccessResponse("order created", map[string]string{"id": "order-1"}))
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}
	got := string(body)
	if !strings.Contains(got, `"status":"ok"`) {
		t.Errorf("Expected ok status, got %s", got)
	}
	if strings.Contains(got, `"error"`) {
		t.Errorf("Success envelope must omit the error field, got %s", got)
	}
}

func TestErrorResponse(t *testing.T) {
	body, err := json.Marshal(ErrorResponse("request failed", "event is full"))
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}
	got := string(body)
	if !strings.Contains(got, `"status":"error"`) {
		t.Errorf("Expected error status, got %s", got)
	}
	if !strings.Contains(got, `"error":"event is full"`) {
		t.Errorf("Expected error detail, got %s", got)
	}
	if strings.Contains(got, `"data"`) {
		t.Errorf("Error envelope must omit the data field, got %s", got)
	}
}
