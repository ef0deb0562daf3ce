package model

import (
	"fmt"
	"strings"
)

// Weather is the coarse weather state of a world.
type Weather uint8

const (
	WeatherClear Weather = iota
	WeatherRain
	WeatherStorm
)

func (w Weather) String() string {
	switch w {
	case WeatherClear:
		return "clear"
	case WeatherRain:
		return "rain"
	case WeatherStorm:
		return "storm"
	default:
		return fmt.Sprintf("weather(%d)", uint8(w))
	}
}

// ParseWeather parses a weather name, case-insensitively. The empty string
// is not a weather; restrictions use TimeAny-style "no restriction"
// separately.
func ParseWeather(s string) (Weather, error) {
	switch strings.ToLower(s) {
	case "clear":
		return WeatherClear, nil
	case "rain":
		return WeatherRain, nil
	case "storm":
		return WeatherStorm, nil
	default:
		return WeatherClear, fmt.Errorf("unknown weather %q", s)
	}
}

// TimeWindow restricts spawning to a part of the day.
type TimeWindow uint8

const (
	TimeAny TimeWindow = iota
	TimeDay
	TimeNight
)

// Day runs [DayStartHour, NightStartHour); night is the complement.
const (
	DayStartHour   = 6
	NightStartHour = 19
)

func (t TimeWindow) String() string {
	switch t {
	case TimeAny:
		return "any"
	case TimeDay:
		return "day"
	case TimeNight:
		return "night"
	default:
		return fmt.Sprintf("time(%d)", uint8(t))
	}
}

// ParseTimeWindow parses a time window name, case-insensitively. Both "any"
// and the empty string mean no restriction (the empty string is what an
// unset snapshot property deserializes to).
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return TimeAny, nil
	case "day":
		return TimeDay, nil
	case "night":
		return TimeNight, nil
	default:
		return TimeAny, fmt.Errorf("unknown time window %q", s)
	}
}

// Contains reports whether the given hour of day [0,24) satisfies the
// window.
func (t TimeWindow) Contains(hour int) bool {
	switch t {
	case TimeDay:
		return hour >= DayStartHour && hour < NightStartHour
	case TimeNight:
		return hour < DayStartHour || hour >= NightStartHour
	default:
		return true
	}
}

// DisplayMode selects how much a spawner's floating label shows.
type DisplayMode uint8

const (
	DisplayName   DisplayMode = iota // display name only
	DisplayCounts                    // name + live/desired counts
	DisplayFull                      // name + counts + per-entry breakdown
)

// ParseDisplayMode validates the 0-2 range used by the snapshot format.
func ParseDisplayMode(v int) (DisplayMode, error) {
	if v < 0 || v > 2 {
		return DisplayName, fmt.Errorf("display mode %d out of range [0,2]", v)
	}
	return DisplayMode(v), nil
}
