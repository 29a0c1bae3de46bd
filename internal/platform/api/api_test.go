package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteData_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteData(rr, http.StatusOK, map[string]int{"progress": 40})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data["progress"] != 40 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestNotFound_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFound(rr, CodeNotFound, "enrollment not found", "rid-1")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
	if body.Error.Code != CodeNotFound || body.Error.RequestID != "rid-1" {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
}

func TestInternal_UsesServerCode(t *testing.T) {
	rr := httptest.NewRecorder()
	Internal(rr, "")
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusInternalServerError || body.Error.Code != CodeInternal {
		t.Fatalf("unexpected response %d %+v", rr.Code, body.Error)
	}
}
