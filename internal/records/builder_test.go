package records

import (
	"testing"
	"time"

	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/normalize"
)

var fixedNow = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func newBuilder(keep bool) *Builder {
	return &Builder{
		Dates:             &normalize.Dates{Location: time.UTC, Now: func() time.Time { return fixedNow }},
		KeepInvalidPhones: keep,
	}
}

func TestBuild_DropsInvalidPhones(t *testing.T) {
	rows := []models.RawInteractionRow{
		{Identifier: 1.0, DisplayName: "  Ana  ", Phone: "3001112222", Age: 21.0, Timestamp: "2024-01-15"},
		{Identifier: "2", DisplayName: "Luis", Phone: "57 300 333 4444", Age: "N/A", Timestamp: 45306.5},
		{Identifier: 3.0, DisplayName: "Bad", Phone: "abc", Timestamp: "2024-01-15"},
	}

	users, report := newBuilder(false).Build(models.CityBucaramanga, rows)

	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if report.Read != 3 || report.Kept != 2 || report.InvalidPhone != 1 || report.Skipped != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	ana := users[0]
	if ana.UserID != 1 || ana.Name != "Ana" || ana.Phone != "3001112222" || ana.City != models.CityBucaramanga {
		t.Errorf("unexpected first user: %+v", ana)
	}
	if ana.Age == nil || *ana.Age != 21 {
		t.Errorf("expected age 21, got %v", ana.Age)
	}
	if ana.Registered || ana.Status != nil {
		t.Errorf("new users must start unregistered: %+v", ana)
	}
	if !ana.Timestamp.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", ana.Timestamp)
	}

	luis := users[1]
	if luis.UserID != 2 || luis.Phone != "3003334444" || luis.Age != nil {
		t.Errorf("unexpected second user: %+v", luis)
	}
	if !luis.Timestamp.Equal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("serial timestamp decoded to %v", luis.Timestamp)
	}

	for i := range users {
		if err := users[i].Validate(); err != nil {
			t.Errorf("user %d invalid: %v", i, err)
		}
	}
}

func TestBuild_KeepInvalidPhones(t *testing.T) {
	rows := []models.RawInteractionRow{
		{Identifier: 1.0, Phone: "3001112222", Timestamp: "2024-01-15"},
		{Identifier: 2.0, Phone: "abc", Timestamp: "2024-01-15"},
	}

	users, report := newBuilder(true).Build(models.CityBogota, rows)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if report.InvalidPhone != 1 || report.Kept != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if users[1].HasPhone() {
		t.Errorf("retained row should have an empty phone, got %q", users[1].Phone)
	}
}

func TestBuild_SoftFailTimestampAndIdentifier(t *testing.T) {
	rows := []models.RawInteractionRow{
		{Identifier: "abc", Phone: "3001112222", Timestamp: "not a date"},
	}
	users, _ := newBuilder(false).Build(models.CityBogota, rows)
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].UserID != 0 {
		t.Errorf("non-numeric identifier should become 0, got %d", users[0].UserID)
	}
	if !users[0].Timestamp.Equal(fixedNow) {
		t.Errorf("bad timestamp should be replaced by processing time, got %v", users[0].Timestamp)
	}
}

func TestBuild_Empty(t *testing.T) {
	users, report := newBuilder(false).Build(models.CityBogota, nil)
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}
	if report.Read != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

type explodingName struct{}

func (explodingName) String() string { panic("corrupt cell") }

func TestBuild_SkipsRowsThatFailCoercion(t *testing.T) {
	rows := []models.RawInteractionRow{
		{Identifier: 1.0, DisplayName: "Ana", Phone: "3001112222", Timestamp: "2024-01-15"},
		{Identifier: 2.0, DisplayName: explodingName{}, Phone: "3003334444", Timestamp: "2024-01-15"},
		{Identifier: 3.0, DisplayName: "Pedro", Phone: "3107778888", Timestamp: "2024-01-16"},
	}

	users, report := newBuilder(false).Build(models.CityBogota, rows)

	if report.Skipped != 1 || report.Kept != 2 || report.Read != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Row != 1 {
		t.Fatalf("expected one error for row 1, got %v", report.Errors)
	}
	if len(users) != 2 || users[0].UserID != 1 || users[1].UserID != 3 {
		t.Errorf("remaining rows should be kept in order, got %+v", users)
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{"08", 8},
		{"09", 9},
		{"010", 10},
		{" 42 ", 42},
		{"8", 8},
		{"12.9", 12},
		{"0x10", 0},
		{"abc", 0},
		{"", 0},
		{nil, 0},
		{7.0, 7},
		{int64(11), 11},
	}
	for _, tt := range tests {
		if got := identifier(tt.in); got != tt.want {
			t.Errorf("identifier(%#v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		in   any
		want *int
	}{
		{20.0, intPtr(20)},
		{20.7, intPtr(20)},
		{int64(31), intPtr(31)},
		{"20", nil},
		{nil, nil},
		{-1.0, nil},
	}
	for _, tt := range tests {
		got := age(tt.in)
		switch {
		case got == nil && tt.want == nil:
		case got == nil || tt.want == nil || *got != *tt.want:
			t.Errorf("age(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func intPtr(n int) *int { return &n }
