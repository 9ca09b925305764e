package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
	got, ok = ParseTime(strconv.FormatInt(ts*1000, 10))
	if !ok || got.Unix() != ts {
		t.Fatalf("millisecond input not detected: %v", got.Unix())
	}
}

func TestEpochSecondsDetectsMilliseconds(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
		ok   bool
	}{
		{1710262800, 1710262800, true},
		{1710262800000, 1710262800, true},
		{1710262800123, 1710262800, true},
		{0, 0, false},
		{-5, 0, false},
	}
	for _, tc := range cases {
		got, ok := EpochSeconds(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("EpochSeconds(%v) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMinuteFloor(t *testing.T) {
	if got := MinuteFloor(1710262859); got != 1710262800 {
		t.Fatalf("unexpected floor %d", got)
	}
}

func TestSplitUpper(t *testing.T) {
	got := SplitUpper([]string{" spy,qqq ", "SPY", ""})
	if len(got) != 2 || got[0] != "SPY" || got[1] != "QQQ" {
		t.Fatalf("unexpected %v", got)
	}
}

func TestParseFinite(t *testing.T) {
	if _, ok := ParseFinite("NaN"); ok {
		t.Fatalf("NaN must be rejected")
	}
	if v, ok := ParseFinite(" 470.25 "); !ok || v != 470.25 {
		t.Fatalf("unexpected %v %v", v, ok)
	}
}
