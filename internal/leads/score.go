package leads

import (
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// Point values.
const (
	pointsEmail           = 20
	pointsPhone           = 20
	pointsName            = 10
	pointsServiceLong     = 15 // > 20 runes
	pointsServiceMedium   = 10 // > 10 runes
	pointsServiceShort    = 5
	pointsPerVehicleKey   = 3
	maxVehiclePoints      = 15
	pointsUrgencyWord     = 5
	pointsPriceWord       = 8
	pointsAppointmentWord = 15
)

var (
	urgencySweep     = []string{"sofort", "dringend", "heute", "morgen", "schnell", "asap", "notfall", "kaputt", "defekt"}
	priceWords       = []string{"preis", "kosten", "kostenvoranschlag", "angebot", "budget"}
	appointmentWords = []string{"termin", "buchen", "reservieren"}
)

var urgencyPoints = map[domain.Urgency]int{
	domain.UrgencyUrgent: 25,
	domain.UrgencyHigh:   20,
	domain.UrgencyMedium: 10,
	domain.UrgencyLow:    0,
}

// Score adds up the signals in info and keyword hits in raw, clamped to
// [0,100]. Each keyword counts once no matter how often it occurs.
func Score(info Info, raw string) int {
	s := 0
	if info.Email != "" {
		s += pointsEmail
	}
	if info.Phone != "" {
		s += pointsPhone
	}
	if info.Name != "" {
		s += pointsName
	}
	if info.ServiceNeeded != "" {
		switch n := utf8.RuneCountInString(info.ServiceNeeded); {
		case n > 20:
			s += pointsServiceLong
		case n > 10:
			s += pointsServiceMedium
		default:
			s += pointsServiceShort
		}
	}
	s += urgencyPoints[info.Urgency]
	s += min(len(info.Vehicle)*pointsPerVehicleKey, maxVehiclePoints)

	lower := strings.ToLower(raw)
	s += countContained(lower, urgencySweep) * pointsUrgencyWord
	s += countContained(lower, priceWords) * pointsPriceWord
	s += countContained(lower, appointmentWords) * pointsAppointmentWord

	return clamp(s, 0, 100)
}

func countContained(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
