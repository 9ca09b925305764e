package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"ZoneDesk/internal/domain/models"
	"ZoneDesk/pkg/util"
)

var (
	timeKeys   = []string{"time", "t", "ts", "timestamp"}
	openKeys   = []string{"open", "o"}
	highKeys   = []string{"high", "h"}
	lowKeys    = []string{"low", "l"}
	closeKeys  = []string{"close", "c"}
	volumeKeys = []string{"volume", "v"}
)

// Normalize decodes a history response into ascending, minute-aligned,
// de-duplicated 1-minute bars. Accepted shapes: a bare array, {bars:[...]}
// and {results:[...]}. Rows with missing or non-finite fields are dropped.
func Normalize(body []byte) ([]models.Bar, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]models.Bar, len(rows))
	for _, row := range rows {
		b, ok := rowToBar(row)
		if !ok {
			continue
		}
		// later rows win for a repeated minute
		byTime[b.Time] = b
	}

	out := make([]models.Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func decodeRows(body []byte) ([]map[string]json.RawMessage, error) {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}
	var wrapped struct {
		Bars    []map[string]json.RawMessage `json:"bars"`
		Results []map[string]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode history body: %w", err)
	}
	if wrapped.Bars != nil {
		return wrapped.Bars, nil
	}
	return wrapped.Results, nil
}

func rowToBar(row map[string]json.RawMessage) (models.Bar, bool) {
	ts, ok := pickTime(row)
	if !ok {
		return models.Bar{}, false
	}
	var b models.Bar
	b.Time = util.MinuteFloor(ts)
	for _, f := range []struct {
		keys []string
		dst  *float64
	}{
		{openKeys, &b.Open},
		{highKeys, &b.High},
		{lowKeys, &b.Low},
		{closeKeys, &b.Close},
		{volumeKeys, &b.Volume},
	} {
		v, ok := pickNumber(row, f.keys)
		if !ok {
			return models.Bar{}, false
		}
		*f.dst = v
	}
	if !b.Valid() {
		return models.Bar{}, false
	}
	return b, true
}

func pickTime(row map[string]json.RawMessage) (int64, bool) {
	for _, k := range timeKeys {
		raw, ok := row[k]
		if !ok {
			continue
		}
		if v, ok := number(raw); ok {
			return util.EpochSeconds(v)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if t, ok := util.ParseTime(s); ok {
				return t.Unix(), true
			}
		}
		return 0, false
	}
	return 0, false
}

func pickNumber(row map[string]json.RawMessage, keys []string) (float64, bool) {
	for _, k := range keys {
		if raw, ok := row[k]; ok {
			return number(raw)
		}
	}
	return 0, false
}

// number accepts JSON numbers and numeric strings.
func number(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return util.ParseFinite(strconv.FormatFloat(f, 'g', -1, 64))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return util.ParseFinite(s)
	}
	return 0, false
}
