package rows

import (
	"testing"
	"time"
)

func TestInteraction_Aliases(t *testing.T) {
	ts := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		rec       Record
		wantPhone any
		wantName  any
		wantTime  any
	}{
		{
			name:      "canonical headers",
			rec:       Record{"User ID": 1.0, "Username": "Ana", "Phone Number": "3001234567", "Time": ts},
			wantPhone: "3001234567",
			wantName:  "Ana",
			wantTime:  ts,
		},
		{
			name:      "spanish headers",
			rec:       Record{"nombre": "Luis", "celular": 3001234567.0, "fecha": 45306.0},
			wantPhone: 3001234567.0,
			wantName:  "Luis",
			wantTime:  45306.0,
		},
		{
			name:      "case and whitespace",
			rec:       Record{" PHONE NUMBER ": "300", "USERNAME": "x", "time": "2024-01-15"},
			wantPhone: "300",
			wantName:  "x",
			wantTime:  "2024-01-15",
		},
		{
			name:      "blank preferred alias falls through",
			rec:       Record{"Phone Number": "  ", "Celular": "3109998888"},
			wantPhone: "3109998888",
		},
		{
			name: "nothing recognizable",
			rec:  Record{"foo": "bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Interaction(tt.rec)
			if row.Phone != tt.wantPhone {
				t.Errorf("Phone = %v, want %v", row.Phone, tt.wantPhone)
			}
			if row.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %v, want %v", row.DisplayName, tt.wantName)
			}
			if row.Timestamp != tt.wantTime {
				t.Errorf("Timestamp = %v, want %v", row.Timestamp, tt.wantTime)
			}
		})
	}
}

func TestRegistration_Aliases(t *testing.T) {
	row := Registration(Record{
		"Nombre":         "Ana",
		"Celular":        "573001234567",
		"Estado":         "Admitido",
		"Fecha registro": "2024-02-01",
	})
	if row.Name != "Ana" || row.Phone != "573001234567" || row.Status != "Admitido" || row.RegisteredAt != "2024-02-01" {
		t.Fatalf("unexpected row: %+v", row)
	}

	row = Registration(Record{"Phone": "3001234567", "status": "Agendado", "Registration Date": 45306.0})
	if row.Phone != "3001234567" || row.Status != "Agendado" || row.RegisteredAt != 45306.0 {
		t.Fatalf("unexpected row from english headers: %+v", row)
	}
}

func TestBatches(t *testing.T) {
	recs := []Record{{"Phone": "1"}, {"Phone": "2"}}
	if got := Interactions(recs); len(got) != 2 || got[1].Phone != "2" {
		t.Fatalf("Interactions = %+v", got)
	}
	if got := Registrations(recs); len(got) != 2 || got[0].Phone != "1" {
		t.Fatalf("Registrations = %+v", got)
	}
}

func TestInteraction_CollidingHeaders(t *testing.T) {
	rec := Record{
		" FECHA ": "",
		"Fecha":   "2024-01-15",
		"fecha":   "2024-02-01",
		"User ID": 1.0,
	}
	for i := 0; i < 50; i++ {
		if got := Interaction(rec).Timestamp; got != "2024-01-15" {
			t.Fatalf("iteration %d: Timestamp = %v, want the first non-blank in header order", i, got)
		}
	}
}
