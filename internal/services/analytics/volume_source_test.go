package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domsvc "ZoneDesk/internal/domain/service"
	xhttp "ZoneDesk/pkg/http"
)

func TestHTTPVolumeSourceQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/volume-behavior" {
			t.Errorf("path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"flags":{"liquidityTrap":true},"volumeScore":9.5,"volumeConfirmed":false,"touchIndex":3,"diagnostics":{"atr":1.25,"avgVolume":1000,"bars":40}}`))
	}))
	defer srv.Close()

	src := NewHTTPVolumeSource(NewHTTPServiceBase(srv.URL+"/", time.Second))
	vb, err := src.VolumeBehavior(context.Background(), domsvc.VolumeQuery{Symbol: "SPY", TF: "1h", Mode: "rth", ZoneLo: 470, ZoneHi: 472.5, Side: "long"})
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if gotQuery != "mode=rth&side=long&symbol=SPY&tf=1h&zoneHi=472.5&zoneLo=470" {
		t.Fatalf("query %q", gotQuery)
	}
	if !vb.Flags.LiquidityTrap || vb.VolumeScore != 9.5 || vb.Diagnostics == nil || vb.Diagnostics.ATR != 1.25 {
		t.Fatalf("decoded: %+v", vb)
	}
	if vb.ReasonCodes == nil {
		t.Fatalf("reason codes must be non-nil")
	}
}

func TestHTTPVolumeSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"volumeScore":4}`))
	}))
	defer srv.Close()

	src := NewHTTPVolumeSource(NewHTTPServiceBase(srv.URL, time.Second))
	vb, err := src.VolumeBehavior(context.Background(), domsvc.VolumeQuery{Symbol: "SPY", ZoneLo: 1, ZoneHi: 2})
	if err != nil || vb.VolumeScore != 4 || calls.Load() != 2 {
		t.Fatalf("retry: vb=%+v err=%v calls=%d", vb, err, calls.Load())
	}
}

func TestHTTPVolumeSourceClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"ok":false,"error":"MISSING_ZONE_RANGE"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	src := NewHTTPVolumeSource(NewHTTPServiceBase(srv.URL, time.Second))
	_, err := src.VolumeBehavior(context.Background(), domsvc.VolumeQuery{Symbol: "SPY"})
	var se *xhttp.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest || calls.Load() != 1 {
		t.Fatalf("want one 400 attempt, err=%v calls=%d", err, calls.Load())
	}
}

func TestHTTPServiceBaseRequiresURL(t *testing.T) {
	if err := NewHTTPServiceBase("", time.Second).GetJSON(context.Background(), "/x", nil, nil); err == nil {
		t.Fatalf("expected error without base url")
	}
}

func TestHTTPVolumeSourceMalformedBaseFailsFast(t *testing.T) {
	src := NewHTTPVolumeSource(NewHTTPServiceBase("not a url", time.Second))
	start := time.Now()
	_, err := src.VolumeBehavior(context.Background(), domsvc.VolumeQuery{Symbol: "SPY", ZoneLo: 1, ZoneHi: 2})
	if !errors.Is(err, xhttp.ErrInvalidURL) {
		t.Fatalf("want ErrInvalidURL, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("malformed url must not be retried")
	}
}
