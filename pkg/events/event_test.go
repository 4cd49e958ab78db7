package events

import (
	"testing"
)

func TestMarshalWire_FoldsTypeIntoPayload(t *testing.T) {
	evt := New("mensaje_nuevo", map[string]any{"pedido_id": "42", "cuerpo": "hola"})

	frame, err := evt.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire: %v", err)
	}

	parsed, err := ParseWire(frame)
	if err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if parsed.Type != "mensaje_nuevo" {
		t.Errorf("expected type mensaje_nuevo, got %q", parsed.Type)
	}
	if parsed.String("pedido_id") != "42" {
		t.Errorf("expected pedido_id 42, got %q", parsed.String("pedido_id"))
	}
	if _, ok := parsed.Data["type"]; ok {
		t.Error("type field should not leak into payload data")
	}
}

func TestMarshalWire_RejectsMissingType(t *testing.T) {
	evt := Event{Data: map[string]any{"x": 1}}
	if _, err := evt.MarshalWire(); err != ErrMissingType {
		t.Errorf("expected ErrMissingType, got %v", err)
	}
}

func TestParseWire_RejectsMissingOrNonStringType(t *testing.T) {
	cases := []string{
		`{}`,
		`{"type":""}`,
		`{"type":7}`,
		`{"payload":"only"}`,
	}
	for _, frame := range cases {
		if _, err := ParseWire([]byte(frame)); err == nil {
			t.Errorf("expected error for frame %s", frame)
		}
	}
}

func TestParseWire_ToleratesUnknownFields(t *testing.T) {
	frame := []byte(`{"type":"gps","lat":1.5,"lng":-2.5,"future_field":{"nested":true}}`)
	evt, err := ParseWire(frame)
	if err != nil {
		t.Fatalf("ParseWire: %v", err)
	}
	if evt.Type != "gps" {
		t.Errorf("expected type gps, got %q", evt.Type)
	}
	if _, ok := evt.Data["future_field"]; !ok {
		t.Error("unknown fields must be preserved as payload data")
	}
}

func TestParseWire_MalformedJSON(t *testing.T) {
	if _, err := ParseWire([]byte(`{"type":`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestNumericAccessors(t *testing.T) {
	evt := New("gps", map[string]any{
		"lat":       -12.04,
		"pedido_id": "42",
		"cuerpo":    "hola",
	})

	lat, err := evt.Float64("lat")
	if err != nil || lat != -12.04 {
		t.Errorf("Float64(lat) = %v, %v", lat, err)
	}
	id, err := evt.Int64("pedido_id")
	if err != nil || id != 42 {
		t.Errorf("Int64(pedido_id) = %v, %v", id, err)
	}
	if _, err := evt.Float64("cuerpo"); err == nil {
		t.Error("expected error for non-numeric field")
	}
	if _, err := evt.Float64("missing"); err == nil {
		t.Error("expected error for absent field")
	}
}
