package chat

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"devconnect/models"
	"devconnect/protocol"
)

func TestOpenRegistersAndRequestsHistory(t *testing.T) {
	dialer := newFakeDialer()
	s := New(Options{Dialer: dialer, Identity: &staticIdentity{user: alice, ok: true}})
	if s.Connected() {
		t.Fatal("new session should not be connected")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	tr := dialer.next(t)
	expected := []protocol.Outbound{
		protocol.RegisterUser{Username: "alice"},
		protocol.RequestMessageHistory{},
	}
	if got := tr.Sent(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if s.State() != Connected {
		t.Errorf("expected connected, got %v", s.State())
	}
}

func TestNothingSentBeforeRegistration(t *testing.T) {
	dialer := newFakeDialer()
	s := New(Options{
		Dialer:   dialer,
		Identity: &staticIdentity{user: alice, ok: true},
		Now:      func() time.Time { return fixedNow },
	})

	var fired atomic.Bool
	var early atomic.Bool
	s.OnChange(func() {
		if s.Connected() && fired.CompareAndSwap(false, true) {
			early.Store(s.Send("early"))
		}
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	tr := dialer.next(t)
	if !fired.Load() {
		t.Fatal("listener never saw the session connected")
	}
	if !early.Load() {
		t.Error("Send right after connecting should succeed")
	}
	expected := []protocol.Outbound{
		protocol.RegisterUser{Username: "alice"},
		protocol.RequestMessageHistory{},
		protocol.SendMessage{Message: msg(0, "early", "alice")},
	}
	if got := tr.Sent(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestConnectingUntilHandshake(t *testing.T) {
	dialer := newFakeDialer()
	s := New(Options{Dialer: dialer, Identity: &staticIdentity{user: alice, ok: true}})

	var states []ConnState
	var mu sync.Mutex
	s.OnChange(func() {
		mu.Lock()
		states = append(states, s.State())
		mu.Unlock()
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()
	dialer.next(t)

	mu.Lock()
	defer mu.Unlock()
	expected := []ConnState{Connecting, Connected}
	if !reflect.DeepEqual(states, expected) {
		t.Errorf("expected states %v, got %v", expected, states)
	}
}

func TestStartTwiceOpensOneTransport(t *testing.T) {
	s, _, dialer := startSession(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := dialer.count(); n != 1 {
		t.Errorf("expected 1 dial, got %d", n)
	}
}

func TestPublicSendWaitsForEcho(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{})

	if !s.Send("hi") {
		t.Fatal("Send returned false")
	}
	expected := []protocol.Outbound{protocol.SendMessage{Message: msg(0, "hi", "alice")}}
	if got := tr.Sent(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if n := len(s.Messages()); n != 0 {
		t.Fatalf("public send must not append locally, log has %d", n)
	}

	echo := models.Message{Text: "hi", Username: "alice", Timestamp: fixedStamp}
	tr.deliver(t, protocol.ReceiveMessage{Message: echo})

	got := s.Messages()
	if !reflect.DeepEqual(got, []models.Message{echo}) {
		t.Fatalf("expected echo in log, got %v", got)
	}
	if !IsMine(got[0], alice) {
		t.Error("echoed message should be classified as mine")
	}
	if s.NextID() != 1 {
		t.Errorf("expected next id 1, got %d", s.NextID())
	}
}

func TestPrivateSendAppendsImmediately(t *testing.T) {
	s, tr, _ := startSession(t)

	s.SelectTarget(Private(bob.ID))
	expected := []protocol.Outbound{protocol.RequestPrivateHistory{ToUserID: "b1"}}
	if got := tr.Sent(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if n := len(s.Messages()); n != 0 {
		t.Fatalf("log should be cleared, has %d", n)
	}
	tr.reset()

	if !s.Send("yo") {
		t.Fatal("Send returned false")
	}
	sent := msg(0, "yo", "alice")
	expected = []protocol.Outbound{protocol.SendPrivateMessage{ToUserID: "b1", Message: sent}}
	if got := tr.Sent(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if got := s.Messages(); !reflect.DeepEqual(got, []models.Message{sent}) {
		t.Fatalf("expected optimistic append, got %v", got)
	}
}

func TestSelectTargetIdempotent(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(0, "old", "bob")}})

	s.SelectTarget(Public())
	if n := len(tr.Sent()); n != 0 {
		t.Fatalf("selecting the active target sent %d events", n)
	}
	if n := len(s.Messages()); n != 1 {
		t.Fatalf("selecting the active target cleared the log")
	}

	s.SelectTarget(Private(bob.ID))
	s.SelectTarget(Private(bob.ID))
	if n := len(tr.Sent()); n != 1 {
		t.Errorf("expected one history request, got %d", n)
	}
}

func TestSelectTargetClearsBeforeHistory(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(0, "a", "bob"), msg(1, "b", "alice")}})
	if n := len(s.Messages()); n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}

	var sawEmpty atomic.Bool
	s.OnChange(func() {
		if len(s.Messages()) == 0 {
			sawEmpty.Store(true)
		}
	})
	s.SelectTarget(Private(bob.ID))

	if n := len(s.Messages()); n != 0 {
		t.Fatalf("log should be empty right after switching, has %d", n)
	}
	if !sawEmpty.Load() {
		t.Error("listener should observe the cleared log")
	}
	if got := s.Target(); got != Private("b1") {
		t.Errorf("expected private target, got %v", got)
	}
}

func TestHistoryReplaceSetsNextID(t *testing.T) {
	s, tr, _ := startSession(t)

	history := []models.Message{msg(0, "a", "bob"), msg(1, "b", "alice"), msg(2, "c", "bob")}
	tr.deliver(t, protocol.MessageHistory{Messages: history})
	if got := s.Messages(); !reflect.DeepEqual(got, history) {
		t.Fatalf("expected %v, got %v", history, got)
	}
	if s.NextID() != 3 {
		t.Errorf("expected next id 3, got %d", s.NextID())
	}

	tr.deliver(t, protocol.MessageHistory{})
	if n := len(s.Messages()); n != 0 {
		t.Errorf("expected empty log, got %d", n)
	}
	if s.NextID() != 0 {
		t.Errorf("expected next id 0, got %d", s.NextID())
	}
}

func TestPresenceSnapshotThenDelta(t *testing.T) {
	s, tr, _ := startSession(t)

	tr.deliver(t, protocol.OnlineUsers{UserIDs: []string{"a", "b"}})
	tr.deliver(t, protocol.UserDisconnected{UserID: "a"})
	if s.IsOnline("a") {
		t.Error("a should be offline")
	}
	if !s.IsOnline("b") {
		t.Error("b should be online")
	}

	tr.deliver(t, protocol.UserConnected{UserID: "c"})
	tr.deliver(t, protocol.OnlineUsers{UserIDs: []string{"d"}})
	if s.IsOnline("b") || s.IsOnline("c") {
		t.Error("snapshot must replace the set")
	}
	tr.deliver(t, protocol.UserConnected{UserID: "b"})
	if got := s.Snapshot().Online; !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Errorf("expected [b d], got %v", got)
	}
}

func TestPublicScenario(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{}})
	if !s.Connected() {
		t.Fatal("expected connected")
	}

	s.Send("hi")
	if n := len(tr.Sent()); n != 1 {
		t.Fatalf("expected one send_message, got %d events", n)
	}
	if n := len(s.Messages()); n != 0 {
		t.Fatalf("log should still be empty, has %d", n)
	}

	echo := models.Message{Text: "hi", Username: "alice", Timestamp: "T"}
	tr.deliver(t, protocol.ReceiveMessage{Message: echo})

	view := s.Snapshot()
	if !reflect.DeepEqual(view.Messages, []models.Message{echo}) {
		t.Fatalf("expected [%v], got %v", echo, view.Messages)
	}
	if !IsMine(view.Messages[0], view.Me) {
		t.Error("expected message rendered as mine")
	}
}

func TestPrivateScenario(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(0, "x", "carol")}})

	s.SelectTarget(Private(bob.ID))
	sent := tr.Sent()
	if len(sent) != 1 || sent[0] != (protocol.RequestPrivateHistory{ToUserID: bob.ID}) {
		t.Fatalf("expected one private history request, got %v", sent)
	}
	if n := len(s.Messages()); n != 0 {
		t.Fatalf("log should be cleared, has %d", n)
	}

	s.Send("yo")
	got := s.Messages()
	if len(got) != 1 || got[0].Text != "yo" || got[0].Username != "alice" || got[0].Timestamp != fixedStamp {
		t.Fatalf("unexpected log %v", got)
	}
	sent = tr.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 events, got %v", sent)
	}
	pm, ok := sent[1].(protocol.SendPrivateMessage)
	if !ok || pm.ToUserID != bob.ID || pm.Message.Text != "yo" {
		t.Errorf("expected private_message to bob, got %v", sent[1])
	}
}

func TestSendRejections(t *testing.T) {
	s, tr, _ := startSession(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		if s.Send(text) {
			t.Errorf("Send(%q) should be rejected", text)
		}
	}
	if n := len(tr.Sent()); n != 0 {
		t.Fatalf("rejected sends dispatched %d events", n)
	}

	tr.failSends(errors.New("broken pipe"))
	s.SelectTarget(Private(bob.ID))
	if s.Send("hello") {
		t.Error("Send should fail when the write fails")
	}
	if n := len(s.Messages()); n != 0 {
		t.Errorf("failed private send must not append, log has %d", n)
	}
}

func TestFailedSendKeepsLocalID(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(4, "a", "bob")}})

	tr.failSends(errors.New("broken pipe"))
	if s.Send("lost") {
		t.Fatal("Send should fail when the write fails")
	}
	if s.NextID() != 5 {
		t.Errorf("failed send used up an id: next is %d", s.NextID())
	}

	tr.failSends(nil)
	if !s.Send("kept") {
		t.Fatal("Send failed")
	}
	got := tr.Sent()[0].(protocol.SendMessage).Message.ID
	if got == nil || *got != 5 {
		t.Errorf("expected id 5, got %v", got)
	}
	if s.NextID() != 6 {
		t.Errorf("expected next id 6, got %d", s.NextID())
	}
}

func TestReadsDoNotWaitOnWrites(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{})

	entered, release := tr.holdSends()
	result := make(chan bool, 1)
	go func() { result <- s.Send("slow") }()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Send never reached the transport")
	}

	done := make(chan struct{})
	go func() {
		s.Snapshot()
		s.Messages()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		release()
		t.Fatal("snapshot blocked behind a pending write")
	}

	tr.deliver(t, protocol.UserConnected{UserID: "b1"})
	if !s.IsOnline("b1") {
		t.Error("inbound events should apply while a write is pending")
	}

	release()
	if !<-result {
		t.Error("held Send should succeed once released")
	}
}

func TestSendTrimsText(t *testing.T) {
	s, tr, _ := startSession(t)
	s.Send("  hi there \n")
	sent := tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sent))
	}
	if got := sent[0].(protocol.SendMessage).Message.Text; got != "hi there" {
		t.Errorf("expected trimmed text, got %q", got)
	}
}

func TestLocalIDsIncrement(t *testing.T) {
	s, tr, _ := startSession(t)
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(4, "a", "bob")}})

	s.Send("one")
	s.Send("two")
	sent := tr.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sent))
	}
	for i, want := range []int64{5, 6} {
		got := sent[i].(protocol.SendMessage).Message.ID
		if got == nil || *got != want {
			t.Errorf("message %d: expected id %d, got %v", i, want, got)
		}
	}
}

func TestNoIdentitySuppressesTraffic(t *testing.T) {
	dialer := newFakeDialer()
	identity := &staticIdentity{}
	s := New(Options{Dialer: dialer, Identity: identity})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	tr := dialer.next(t)
	if !s.Connected() {
		t.Fatal("connection should open without an identity")
	}
	if n := len(tr.Sent()); n != 0 {
		t.Fatalf("expected no registration or history request, got %v", tr.Sent())
	}
	if s.Send("hi") {
		t.Error("Send without identity should be rejected")
	}
	s.SelectTarget(Private(bob.ID))
	if n := len(tr.Sent()); n != 0 {
		t.Errorf("expected no events, got %v", tr.Sent())
	}

	// presence still flows
	tr.deliver(t, protocol.OnlineUsers{UserIDs: []string{"b1"}})
	if !s.IsOnline("b1") {
		t.Error("expected b1 online")
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	s := New(Options{Dialer: newFakeDialer(), Identity: &staticIdentity{user: alice, ok: true}})
	defer s.Close()
	if s.Send("hi") {
		t.Error("Send before Start should be rejected")
	}
}

func TestIncomingPrivateMessages(t *testing.T) {
	s, tr, _ := startSession(t)
	s.SelectTarget(Private(bob.ID))
	tr.deliver(t, protocol.PrivateMessageHistory{})

	fromBob := msg(0, "hey", "bob")
	tr.deliver(t, protocol.PrivateMessage{From: bob.ID, Message: fromBob})
	tr.deliver(t, protocol.PrivateMessage{From: carol.ID, Message: msg(0, "psst", "carol")})
	tr.deliver(t, protocol.PrivateMessage{From: carol.ID, Message: msg(1, "psst", "carol")})

	if got := s.Messages(); !reflect.DeepEqual(got, []models.Message{fromBob}) {
		t.Fatalf("expected only bob's message, got %v", got)
	}
	if n := s.Unread(carol.ID); n != 2 {
		t.Errorf("expected 2 unread from carol, got %d", n)
	}

	s.SelectTarget(Private(carol.ID))
	if n := s.Unread(carol.ID); n != 0 {
		t.Errorf("selecting carol should clear unread, got %d", n)
	}
}

func TestPublicEventsIgnoredInPrivate(t *testing.T) {
	s, tr, _ := startSession(t)
	s.SelectTarget(Private(bob.ID))

	tr.deliver(t, protocol.ReceiveMessage{Message: msg(0, "public", "carol")})
	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(0, "old", "carol")}})
	if n := len(s.Messages()); n != 0 {
		t.Errorf("public traffic leaked into private log: %v", s.Messages())
	}
}

func TestStalePrivateHistoryDropped(t *testing.T) {
	s, tr, _ := startSession(t)

	s.SelectTarget(Private(bob.ID))
	s.SelectTarget(Private(carol.ID))

	tr.deliver(t, protocol.PrivateMessageHistory{Messages: []models.Message{msg(0, "to bob", "alice")}})
	if n := len(s.Messages()); n != 0 {
		t.Fatalf("bob's history applied under carol: %v", s.Messages())
	}

	carolHistory := []models.Message{msg(0, "to carol", "alice")}
	tr.deliver(t, protocol.PrivateMessageHistory{Messages: carolHistory})
	if got := s.Messages(); !reflect.DeepEqual(got, carolHistory) {
		t.Fatalf("expected carol's history, got %v", got)
	}

	// nothing outstanding any more
	tr.deliver(t, protocol.PrivateMessageHistory{Messages: []models.Message{msg(9, "late", "bob")}})
	if got := s.Messages(); !reflect.DeepEqual(got, carolHistory) {
		t.Errorf("unrequested history applied: %v", got)
	}
}

func TestUndecodablePrivateHistoryKeepsQueueInStep(t *testing.T) {
	s, tr, _ := startSession(t)

	s.SelectTarget(Private(bob.ID))
	tr.deliverErr(t, &protocol.DecodeError{Event: protocol.EventPrivateHistory, Err: protocol.ErrInvalidFrame})

	s.SelectTarget(Private(carol.ID))
	carolHistory := []models.Message{msg(0, "to carol", "alice")}
	tr.deliver(t, protocol.PrivateMessageHistory{Messages: carolHistory})
	if got := s.Messages(); !reflect.DeepEqual(got, carolHistory) {
		t.Fatalf("carol's history dropped after a bad frame: got %v", got)
	}

	s.SelectTarget(Private(bob.ID))
	bobHistory := []models.Message{msg(3, "to bob", "alice")}
	tr.deliver(t, protocol.PrivateMessageHistory{Messages: bobHistory})
	if got := s.Messages(); !reflect.DeepEqual(got, bobHistory) {
		t.Errorf("later history still out of step: got %v", got)
	}
}

func TestOtherUndecodableFramesLeaveQueue(t *testing.T) {
	s, tr, _ := startSession(t)

	s.SelectTarget(Private(bob.ID))
	tr.deliverErr(t, &protocol.DecodeError{Event: protocol.EventPrivateMessage, Err: protocol.ErrInvalidFrame})
	tr.deliverErr(t, protocol.ErrInvalidFrame)

	history := []models.Message{msg(0, "hi bob", "alice")}
	tr.deliver(t, protocol.PrivateMessageHistory{Messages: history})
	if got := s.Messages(); !reflect.DeepEqual(got, history) {
		t.Errorf("expected bob's history, got %v", got)
	}
}

func TestFailedHistoryRequestNotQueued(t *testing.T) {
	s, tr, _ := startSession(t)

	tr.failSends(errors.New("broken pipe"))
	s.SelectTarget(Private(bob.ID))
	tr.failSends(nil)
	s.SelectTarget(Private(carol.ID))

	history := []models.Message{msg(0, "to carol", "alice")}
	tr.deliver(t, protocol.PrivateMessageHistory{Messages: history})
	if got := s.Messages(); !reflect.DeepEqual(got, history) {
		t.Errorf("expected carol's history, got %v", got)
	}
}

func TestStalePublicHistoryDropped(t *testing.T) {
	s, tr, _ := startSession(t)
	s.SelectTarget(Private(bob.ID))

	tr.deliver(t, protocol.MessageHistory{Messages: []models.Message{msg(0, "public", "carol")}})
	if n := len(s.Messages()); n != 0 {
		t.Errorf("public history applied under private target")
	}
}

func TestReconnectRefiresHandshake(t *testing.T) {
	dialer := newFakeDialer()
	s := New(Options{
		Dialer:    dialer,
		Identity:  &staticIdentity{user: alice, ok: true},
		Reconnect: ConstantBackoff(time.Millisecond, 3),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	first := dialer.next(t)
	s.SelectTarget(Private(bob.ID))
	first.drop()

	second := dialer.next(t)
	if !s.Connected() {
		t.Fatal("expected reconnected session")
	}
	expected := []protocol.Outbound{
		protocol.RegisterUser{Username: "alice"},
		protocol.RequestPrivateHistory{ToUserID: bob.ID},
	}
	if got := second.Sent(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}

	history := []models.Message{msg(0, "again", "bob")}
	second.deliver(t, protocol.PrivateMessageHistory{Messages: history})
	if got := s.Messages(); !reflect.DeepEqual(got, history) {
		t.Errorf("expected refetched history, got %v", got)
	}
}

func TestDropWithoutReconnect(t *testing.T) {
	s, tr, dialer := startSession(t)

	tr.drop()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection goroutine did not exit")
	}
	if s.Connected() {
		t.Error("expected disconnected after drop")
	}
	if s.Send("hi") {
		t.Error("Send after drop should be rejected")
	}
	if n := dialer.count(); n != 1 {
		t.Errorf("expected no redial, got %d dials", n)
	}
}

func TestCloseDetaches(t *testing.T) {
	s, tr, _ := startSession(t)

	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })
	s.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection goroutine did not exit")
	}
	if !tr.isClosed() {
		t.Error("transport should be closed")
	}
	if s.Connected() {
		t.Error("closed session reports connected")
	}
	s.SelectTarget(Private(bob.ID))
	if s.Send("hi") {
		t.Error("Send after Close should be rejected")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("listener called %d times after Close", n)
	}
	s.Close()
}

func TestUnknownEventKeepsReading(t *testing.T) {
	s, tr, _ := startSession(t)

	tr.deliverErr(t, protocol.ErrUnknownEvent)
	tr.deliver(t, protocol.UserConnected{UserID: "b1"})
	if !s.IsOnline("b1") {
		t.Error("events after an unknown one should still apply")
	}
}

func TestDirectoryLoadedOnce(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context) ([]models.User, error) {
		calls.Add(1)
		return []models.User{alice, bob}, nil
	})

	dialer := newFakeDialer()
	s := New(Options{Dialer: dialer, Identity: &staticIdentity{user: alice, ok: true}, Directory: fetcher})
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Close()
	dialer.next(t)

	waitFor(t, "directory", func() bool { return len(s.Snapshot().Users) == 2 })
	if u, ok := s.User("b1"); !ok || u.Username != "bob" {
		t.Errorf("expected bob by id, got %v %v", u, ok)
	}
	if u, ok := s.UserByName("alice"); !ok || u.ID != "a1" {
		t.Errorf("expected alice by name, got %v %v", u, ok)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one fetch, got %d", n)
	}
}

func TestDirectoryFailureLeavesEmpty(t *testing.T) {
	done := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context) ([]models.User, error) {
		defer close(done)
		return nil, errors.New("503")
	})

	dialer := newFakeDialer()
	s := New(Options{Dialer: dialer, Identity: &staticIdentity{user: alice, ok: true}, Directory: fetcher})
	s.Start(context.Background())
	defer s.Close()
	dialer.next(t)
	<-done

	time.Sleep(10 * time.Millisecond)
	if n := len(s.Snapshot().Users); n != 0 {
		t.Errorf("expected empty directory, got %d users", n)
	}
	if !s.Connected() {
		t.Error("directory failure must not affect the connection")
	}
}

func TestIsMineFollowsIdentity(t *testing.T) {
	m := models.Message{Text: "hi", Username: "alice"}
	if !IsMine(m, alice) {
		t.Error("alice wrote it")
	}
	if IsMine(m, bob) {
		t.Error("bob did not write it")
	}
	if IsMine(models.Message{Text: "x"}, models.User{}) {
		t.Error("no identity owns nothing")
	}
}
