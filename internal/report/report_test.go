package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/chatconv/internal/models"
	"gopkg.in/yaml.v3"
)

func sampleResult() models.AnalysisResult {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	age := 20
	ana := models.UserRecord{UserID: 1, Name: "Ana", Age: &age, Phone: "3001112222", Timestamp: ts, City: models.CityBucaramanga}
	ana = ana.WithRegistration("Admitido", ts)

	day := models.TimeBucketStats{TotalInteractions: 1, UniqueUsers: 1, Conversions: 1, ConversionRate: 100}
	return models.AnalysisResult{
		Bucaramanga: models.CityAnalysis{
			ChatUsers:      1,
			ValidPhones:    1,
			Registrations:  1234,
			Conversions:    1,
			ConversionRate: 100,
			Statuses:       map[string]int{"Admitido": 1000, "Agendado": 200, "Sin Estado": 34},
			DailyStats:     []models.DailyStats{{Date: "2024-01-15", TimeBucketStats: day}},
			MonthlyStats:   []models.MonthlyStats{{Month: "2024-01", TimeBucketStats: day}},
			Users:          []models.UserRecord{ana},
		},
		Bogota: models.CityAnalysis{Statuses: map[string]int{}},
		Global: models.GlobalAnalysis{
			TotalChatUsers:       1,
			TotalValidPhones:     1,
			TotalConversions:     1,
			TotalRegistrations:   1234,
			GlobalConversionRate: 100,
			DailyStats:           []models.DailyStats{{Date: "2024-01-15", TimeBucketStats: day}},
		},
	}
}

func TestEncode_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleResult(), FormatJSON); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	buca := decoded["bucaramanga"]
	if buca["conversiones"] != 1.0 || buca["tasaConversion"] != 100.0 || buca["registros"] != 1234.0 {
		t.Errorf("unexpected city keys: %v", buca)
	}
	if _, ok := decoded["global"]["tasaConversionGlobal"]; !ok {
		t.Error("missing tasaConversionGlobal")
	}

	users := buca["usuarios"].([]any)
	user := users[0].(map[string]any)
	for _, key := range []string{"userId", "nombre", "edad", "celular", "fecha", "ciudad", "registrado", "estado", "fechaRegistro"} {
		if _, ok := user[key]; !ok {
			t.Errorf("user record missing key %q", key)
		}
	}
	if user["ciudad"] != "Bucaramanga" || user["estado"] != "Admitido" {
		t.Errorf("unexpected user: %v", user)
	}
}

func TestEncode_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleResult(), "YAML"); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded map[string]map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	daily := decoded["bucaramanga"]["dailyStats"].([]any)
	bucket := daily[0].(map[string]any)
	if bucket["fecha"] != "2024-01-15" || bucket["totalInteracciones"] != 1 {
		t.Errorf("bucket fields should be inlined: %v", bucket)
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, sampleResult(), "xml")
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Bogotá",
		"1,234",
		"100.00%",
		"Period: 2024-01-15 to 2024-01-15 (1 active days)",
		"Bucaramanga statuses: Admitido 1,000, Agendado 200, Sin Estado 34",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Bogotá statuses") {
		t.Errorf("empty status tally should be omitted:\n%s", out)
	}
}

func TestTopStatuses(t *testing.T) {
	got := TopStatuses(map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	want := []StatusCount{{"c", 5}, {"a", 2}, {"b", 2}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00%"},
		{50, "50.00%"},
		{33.3333, "33.33%"},
	}
	for _, tt := range tests {
		if got := Rate(tt.in); got != tt.want {
			t.Errorf("Rate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
