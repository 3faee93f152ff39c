package metricpath

import (
	"encoding/json"
	"testing"
)

var doc = map[string]any{
	"cpu": map[string]any{"total": 42.5},
	"fs": []any{
		map[string]any{"mnt_point": "/", "percent": 80.0},
		map[string]any{"mnt_point": "/home", "percent": 55.0},
	},
	"hostname": "web-01",
	"count":    int64(8),
}

func TestLookup(t *testing.T) {
	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"cpu.total", 42.5, true},
		{"fs.1.percent", 55.0, true},
		{"fs.0.mnt_point", "/", true},
		{"hostname", "web-01", true},
		{"cpu.missing", nil, false},
		{"fs.2.percent", nil, false},
		{"fs.-1.percent", nil, false},
		{"fs.x.percent", nil, false},
		{"hostname.deeper", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		got, ok := Lookup(doc, tt.path)
		if ok != tt.wantOK {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFloat(t *testing.T) {
	if v, ok := Float(doc, "cpu.total"); !ok || v != 42.5 {
		t.Errorf("Float(cpu.total) = %v, %v", v, ok)
	}
	if v, ok := Float(doc, "count"); !ok || v != 8 {
		t.Errorf("Float(count) = %v, %v, want int64 coercion", v, ok)
	}
	if _, ok := Float(doc, "hostname"); ok {
		t.Error("Float(hostname) ok = true, want false for string value")
	}
}

func TestString(t *testing.T) {
	if s, ok := String(doc, "hostname"); !ok || s != "web-01" {
		t.Errorf("String(hostname) = %q, %v", s, ok)
	}
	if _, ok := String(doc, "cpu.total"); ok {
		t.Error("String(cpu.total) ok = true, want false for number")
	}
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{3.5, 3.5, true},
		{float32(2), 2, true},
		{7, 7, true},
		{int32(7), 7, true},
		{int64(7), 7, true},
		{uint64(7), 7, true},
		{json.Number("1.25"), 1.25, true},
		{json.Number("nope"), 0, false},
		{"7", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsFloat(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("AsFloat(%v) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
