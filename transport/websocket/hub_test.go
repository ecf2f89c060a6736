package websocket

import (
	"testing"
)

func TestHub_RemoveClientIdempotent(t *testing.T) {
	h, sess := newTestHub(t)
	c := newTestClient(h, "conn-1")
	join(t, h, c, sess.ID, "")

	h.removeClient(c)
	if h.clients[c] {
		t.Error("Expected client removed from hub")
	}
	if _, ok := h.sessions[sess.ID]; ok {
		t.Error("Expected empty session bucket to be dropped")
	}

	// A second removal must not close the send channel again.
	h.removeClient(c)
}

func TestHub_SlowClientDropped(t *testing.T) {
	h, sess := newTestHub(t)
	fast := newTestClient(h, "conn-fast")
	join(t, h, fast, sess.ID, "")

	slow := &Client{id: "conn-slow", hub: h, send: make(chan []byte, 1)}
	h.clients[slow] = true
	h.attach(slow, sess.ID)

	// Fill the slow client's buffer, then broadcast past it.
	h.sendTo(slow, EventPlayersUpdate, sess.Roster())
	h.broadcastToSession(sess.ID, EventPlayersUpdate, sess.Roster())

	if h.clients[slow] {
		t.Error("Expected slow client to be dropped")
	}
	if !h.clients[fast] {
		t.Error("Expected fast client to survive the broadcast")
	}
	if len(drain(t, fast)) == 0 {
		t.Error("Expected fast client to receive the broadcast")
	}
}

func TestHub_SampleSnapshot(t *testing.T) {
	h, _ := newTestHub(t)

	h.snapshotRate = 0
	if h.sampleSnapshot() {
		t.Error("Expected rate 0 to never sample")
	}

	// Float64 is always below 1, so rate 1 samples every release.
	h.snapshotRate = 1
	for i := 0; i < 10; i++ {
		if !h.sampleSnapshot() {
			t.Fatal("Expected rate 1 to always sample")
		}
	}
}

func TestHub_BroadcastScopedToSession(t *testing.T) {
	h, sess := newTestHub(t)
	in := newTestClient(h, "conn-in")
	join(t, h, in, sess.ID, "")
	out := newTestClient(h, "conn-out")

	h.broadcastToSession(sess.ID, EventGameReset, ResetPayload{ImageURL: "/uploads/new.jpg"})

	if len(drain(t, in)) != 1 {
		t.Error("Expected session member to receive the event")
	}
	if len(drain(t, out)) != 0 {
		t.Error("Expected unjoined client to receive nothing")
	}
}
