package prescription

import (
	"fmt"
	"time"
)

const (
	aggDateFactor    = 1_000_000_000_000 // 10^12
	aggSegmentFactor = 10_000_000_000    // 10^10
)

// AggregateID builds the synthetic id of an aggregate prescription:
// yymmdd * 10^12 + segment * 10^10 + admission.
func AggregateID(day time.Time, segment int, admission int64) (int64, error) {
	if segment < 0 || segment >= aggDateFactor/aggSegmentFactor {
		return 0, fmt.Errorf("segment %d out of range for aggregate id", segment)
	}
	if admission <= 0 || admission >= aggSegmentFactor {
		return 0, fmt.Errorf("admission %d out of range for aggregate id", admission)
	}
	yymmdd := int64(day.Year()%100)*10000 + int64(day.Month())*100 + int64(day.Day())
	return yymmdd*aggDateFactor + int64(segment)*aggSegmentFactor + admission, nil
}

// DecodeAggregateID reverses AggregateID. Years are read in the 2000s.
func DecodeAggregateID(id int64) (day time.Time, segment int, admission int64, err error) {
	yymmdd := id / aggDateFactor
	rest := id % aggDateFactor
	segment = int(rest / aggSegmentFactor)
	admission = rest % aggSegmentFactor

	yy, mm, dd := int(yymmdd/10000), int(yymmdd/100%100), int(yymmdd%100)
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 || admission <= 0 {
		return time.Time{}, 0, 0, fmt.Errorf("%d is not an aggregate id", id)
	}
	day = time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if day.Day() != dd {
		return time.Time{}, 0, 0, fmt.Errorf("%d is not an aggregate id", id)
	}
	return day, segment, admission, nil
}

// IsAggregateID reports whether id decodes as an aggregate id.
func IsAggregateID(id int64) bool {
	_, _, _, err := DecodeAggregateID(id)
	return err == nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
