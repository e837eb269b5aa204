package models

import (
	"errors"
	"fmt"
	"math"
)

// TimeBucketStats holds the counters of one daily or monthly bucket.
type TimeBucketStats struct {
	TotalInteractions int     `json:"totalInteracciones" yaml:"totalInteracciones"`
	UniqueUsers       int     `json:"usuariosUnicos" yaml:"usuariosUnicos"`
	Conversions       int     `json:"conversiones" yaml:"conversiones"`     // distinct registered users
	ConversionRate    float64 `json:"tasaConversion" yaml:"tasaConversion"` // conversions / unique users × 100
}

// Validate checks the bucket counters are consistent
func (b *TimeBucketStats) Validate() error {
	if b.TotalInteractions < 0 || b.UniqueUsers < 0 || b.Conversions < 0 {
		return errors.New("bucket counters must not be negative")
	}
	if b.UniqueUsers > b.TotalInteractions {
		return errors.New("unique users must be <= total interactions")
	}
	if b.Conversions > b.UniqueUsers {
		return errors.New("conversions must be <= unique users")
	}
	if b.UniqueUsers == 0 && b.ConversionRate != 0 {
		return errors.New("conversion rate must be 0 when there are no users")
	}
	if math.IsNaN(b.ConversionRate) || b.ConversionRate < 0 || b.ConversionRate > 100 {
		return errors.New("conversion rate must be between 0 and 100")
	}
	return nil
}

// DailyStats is a bucket keyed by calendar date (YYYY-MM-DD).
type DailyStats struct {
	Date            string `json:"fecha" yaml:"fecha"`
	TimeBucketStats `yaml:",inline"`
}

// MonthlyStats is a bucket keyed by year and month (YYYY-MM).
type MonthlyStats struct {
	Month           string `json:"mes" yaml:"mes"`
	TimeBucketStats `yaml:",inline"`
}

// CityAnalysis aggregates one city's reconciled users and roster.
type CityAnalysis struct {
	ChatUsers      int            `json:"chatUsers" yaml:"chatUsers"`
	ValidPhones    int            `json:"validPhones" yaml:"validPhones"`
	Registrations  int            `json:"registros" yaml:"registros"` // roster size, independent of matching
	Conversions    int            `json:"conversiones" yaml:"conversiones"`
	ConversionRate float64        `json:"tasaConversion" yaml:"tasaConversion"`
	Statuses       map[string]int `json:"estados" yaml:"estados"` // tally over the roster
	DailyStats     []DailyStats   `json:"dailyStats" yaml:"dailyStats"`
	MonthlyStats   []MonthlyStats `json:"monthlyStats" yaml:"monthlyStats"`
	Users          []UserRecord   `json:"usuarios" yaml:"usuarios"`
}

// Validate checks city totals and bucket ordering
func (c *CityAnalysis) Validate() error {
	if c.ValidPhones > c.ChatUsers {
		return errors.New("valid phones must be <= chat users")
	}
	if c.Conversions > c.ValidPhones {
		return errors.New("conversions must be <= valid phones")
	}
	if c.ConversionRate < 0 || c.ConversionRate > 100 {
		return errors.New("conversion rate must be between 0 and 100")
	}
	if len(c.Users) != c.ChatUsers {
		return fmt.Errorf("users slice has %d entries, chat users is %d", len(c.Users), c.ChatUsers)
	}
	for i := 1; i < len(c.DailyStats); i++ {
		if c.DailyStats[i-1].Date >= c.DailyStats[i].Date {
			return errors.New("daily stats must be strictly ascending")
		}
	}
	for i := 1; i < len(c.MonthlyStats); i++ {
		if c.MonthlyStats[i-1].Month >= c.MonthlyStats[i].Month {
			return errors.New("monthly stats must be strictly ascending")
		}
	}
	return nil
}

// GlobalAnalysis sums both cities and recomputes rates and buckets over their union.
type GlobalAnalysis struct {
	TotalChatUsers       int            `json:"totalChatUsers" yaml:"totalChatUsers"`
	TotalValidPhones     int            `json:"totalValidPhones" yaml:"totalValidPhones"`
	TotalConversions     int            `json:"totalConversiones" yaml:"totalConversiones"`
	TotalRegistrations   int            `json:"totalRegistros" yaml:"totalRegistros"`
	GlobalConversionRate float64        `json:"tasaConversionGlobal" yaml:"tasaConversionGlobal"`
	DailyStats           []DailyStats   `json:"dailyStats" yaml:"dailyStats"`
	MonthlyStats         []MonthlyStats `json:"monthlyStats" yaml:"monthlyStats"`
}

// AnalysisResult is the only artifact exposed to presentation collaborators.
type AnalysisResult struct {
	Bucaramanga CityAnalysis   `json:"bucaramanga" yaml:"bucaramanga"`
	Bogota      CityAnalysis   `json:"bogota" yaml:"bogota"`
	Global      GlobalAnalysis `json:"global" yaml:"global"`
}

// Validate checks both cities and that the global totals are their sums
func (r *AnalysisResult) Validate() error {
	if err := r.Bucaramanga.Validate(); err != nil {
		return fmt.Errorf("bucaramanga: %w", err)
	}
	if err := r.Bogota.Validate(); err != nil {
		return fmt.Errorf("bogota: %w", err)
	}
	g := r.Global
	if g.TotalChatUsers != r.Bucaramanga.ChatUsers+r.Bogota.ChatUsers {
		return errors.New("global chat users must equal the sum of both cities")
	}
	if g.TotalConversions != r.Bucaramanga.Conversions+r.Bogota.Conversions {
		return errors.New("global conversions must equal the sum of both cities")
	}
	if g.TotalRegistrations != r.Bucaramanga.Registrations+r.Bogota.Registrations {
		return errors.New("global registrations must equal the sum of both cities")
	}
	if g.GlobalConversionRate < 0 || g.GlobalConversionRate > 100 {
		return errors.New("global conversion rate must be between 0 and 100")
	}
	return nil
}

// Percent returns part/whole × 100, or 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
