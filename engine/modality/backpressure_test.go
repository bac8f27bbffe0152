package modality

import (
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestPagingNotifierNilConnIsNoop(t *testing.T) {
	n := NewPagingNotifier(nil)
	n.notify(SCM, "sentineleng/sentinel", 3) // must not panic
}

func TestNilPagingNotifierIsNoop(t *testing.T) {
	var n *PagingNotifier
	n.notify(Video, "abc123", 1) // must not panic on a nil receiver
}

func TestPagingNotifierPublishesPageEvent(t *testing.T) {
	nc := startTestNATS(t)
	sub, err := nc.SubscribeSync(pagingSubject(SCM))
	if err != nil {
		t.Fatal(err)
	}

	n := NewPagingNotifier(nc)
	n.notify(SCM, "sentineleng/sentinel", 4)

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected a published page event, got error: %v", err)
	}
	var evt PageEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		t.Fatalf("unmarshal page event: %v", err)
	}
	if evt.Modality != SCM || evt.Key != "sentineleng/sentinel" || evt.ItemsSeen != 4 {
		t.Fatalf("unexpected page event: %+v", evt)
	}
}

func TestPagingSubjectIsPerModality(t *testing.T) {
	if pagingSubject(SCM) == pagingSubject(Video) {
		t.Fatal("expected distinct subjects per modality")
	}
}
