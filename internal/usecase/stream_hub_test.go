package usecase

import (
	"testing"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	applogger "ZoneDesk/pkg/logger"
	"ZoneDesk/pkg/metrics"
)

func TestHubBroadcastOnlyToKey(t *testing.T) {
	h := NewStreamHub(metrics.Nop{}, applogger.Nop())
	rth := drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m)
	eth := drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m)
	_, a := h.Register(rth)
	_, b := h.Register(eth)

	h.Broadcast(rth, models.Bar{Time: 1, Open: 1, High: 1, Low: 1, Close: 1})
	select {
	case got := <-a:
		if got.Time != 1 {
			t.Fatalf("unexpected bar %+v", got)
		}
	default:
		t.Fatalf("rth subscriber got nothing")
	}
	select {
	case got := <-b:
		t.Fatalf("eth subscriber received %+v", got)
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewStreamHub(metrics.Nop{}, applogger.Nop(), WithSubscriberBuffer(1))
	key := drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m)
	_, ch := h.Register(key)
	h.Broadcast(key, models.Bar{Time: 1})
	h.Broadcast(key, models.Bar{Time: 2})
	if h.Count(key) != 0 {
		t.Fatalf("slow subscriber should be removed")
	}
	<-ch
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after drop")
	}
}

func TestHubUnregisterAndClose(t *testing.T) {
	h := NewStreamHub(metrics.Nop{}, applogger.Nop())
	key := drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF1h)
	id, ch := h.Register(key)
	_, other := h.Register(key)
	h.Unregister(key, id)
	h.Unregister(key, id)
	if _, ok := <-ch; ok {
		t.Fatalf("unregistered channel must be closed")
	}
	h.Close()
	if _, ok := <-other; ok {
		t.Fatalf("close must release every subscriber")
	}
	if h.Total() != 0 {
		t.Fatalf("hub not empty after close")
	}
	if _, late := h.Register(key); late == nil {
		t.Fatalf("register after close returns a closed channel")
	}
}
