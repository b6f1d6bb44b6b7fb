package util

import (
	"fmt"
	"strconv"
	"time"
)

func AddTimeToDate(date time.Time, sourceTime time.Time) time.Time {
	newDateTime := time.Date(date.Year(), date.Month(), date.Day(), sourceTime.Hour(), sourceTime.Minute(), sourceTime.Second(), sourceTime.Nanosecond(), date.Location())

	return newDateTime
}

// ParseDDMMYY reads the compact date used in upstream URLs. Years are
// always taken as 20YY.
func ParseDDMMYY(value string, location *time.Location) (time.Time, error) {
	if len(value) != 6 {
		return time.Time{}, fmt.Errorf("date %q is not DDMMYY", value)
	}

	day, dayErr := strconv.Atoi(value[0:2])
	month, monthErr := strconv.Atoi(value[2:4])
	year, yearErr := strconv.Atoi(value[4:6])
	if dayErr != nil || monthErr != nil || yearErr != nil {
		return time.Time{}, fmt.Errorf("date %q is not DDMMYY", value)
	}

	date := time.Date(2000+year, time.Month(month), day, 0, 0, 0, 0, location)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, fmt.Errorf("date %q is out of range", value)
	}

	return date, nil
}

// StartOfDay truncates to local midnight in the location of t
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WallClock returns the UK local clock reading of t as a zone-less value held
// in UTC, comparable with journey times
func WallClock(t time.Time) time.Time {
	local := t.In(time.Local)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
}
