package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.March || d.Day() != 15 {
		t.Errorf("date = %v, want 2024-03-15", d)
	}
	if d.MonthKey() != "2024-03" {
		t.Errorf("MonthKey = %q, want %q", d.MonthKey(), "2024-03")
	}

	for _, bad := range []string{"", "15/03/2024", "2024-13-01", "2024-03"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) expected error", bad)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, time.March, 5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-03-05"` {
		t.Errorf("json = %s, want %q", b, "2024-03-05")
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2023-12-31"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2023-12-31" {
		t.Errorf("date = %s, want 2023-12-31", d)
	}
	if err := json.Unmarshal([]byte(`20231231`), &d); err == nil {
		t.Error("expected error for unquoted date")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-01-02"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if d.String() != "2024-01-02" {
		t.Errorf("date = %s, want 2024-01-02", d)
	}
	if err := d.Scan(time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time: %v", err)
	}
	if d.String() != "2024-05-06" {
		t.Errorf("date = %s, want 2024-05-06", d)
	}
	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
