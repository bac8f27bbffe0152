package modality

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sentineleng/sentinel/pkg/natsutil"
)

// PageEvent reports one page (one repo's pull-request/commit/issue batch,
// one video's transcript fetch) completing during ingest, so an external
// paging coordinator can throttle further fetches against the shared rate
// limiter without the handler needing to know about other handlers'
// in-flight work.
type PageEvent struct {
	Modality  ID        `json:"modality"`
	Key       string    `json:"key"` // repo name or video ID
	ItemsSeen int       `json:"items_seen"`
	At        time.Time `json:"at"`
}

// pagingSubject is the NATS subject a PageEvent is published on, one
// subject per modality so a subscriber can watch a single source without
// filtering.
func pagingSubject(id ID) string { return "sentinel.ingest.page." + string(id) }

// PagingNotifier publishes PageEvent records as a handler works through
// its paginated external source. A nil *nats.Conn makes every publish a
// no-op, so wiring a notifier is optional.
type PagingNotifier struct {
	nc *nats.Conn
}

// NewPagingNotifier wraps nc; nc may be nil.
func NewPagingNotifier(nc *nats.Conn) *PagingNotifier {
	return &PagingNotifier{nc: nc}
}

func (p *PagingNotifier) notify(id ID, key string, itemsSeen int) {
	if p == nil || p.nc == nil {
		return
	}
	_ = natsutil.Publish(context.Background(), p.nc, pagingSubject(id), PageEvent{
		Modality: id, Key: key, ItemsSeen: itemsSeen, At: time.Now(),
	})
}
