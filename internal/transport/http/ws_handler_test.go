package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"team-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
)

func TestWebSocketReceivesChangeNotifications(t *testing.T) {
	service, _ := newTestService(t)
	srv := httptest.NewServer(newTestServer(service).Routes())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	defer conn.Close()
	waitForClients(t, service.Broadcaster().Len, 1)

	if err := service.SetActiveQuestion(context.Background(), 2); err != nil {
		t.Fatalf("set active: %v", err)
	}

	var ev domain.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Msg != domain.MsgActiveQuestionChanged || ev.QuestionID != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWebSocketDisconnectDoesNotStopBroadcast(t *testing.T) {
	service, _ := newTestService(t)
	srv := httptest.NewServer(newTestServer(service).Routes())
	defer srv.Close()

	gone := dialWS(t, srv.URL)
	stay := dialWS(t, srv.URL)
	defer stay.Close()
	waitForClients(t, service.Broadcaster().Len, 2)

	_ = gone.Close()
	waitForClients(t, service.Broadcaster().Len, 1)

	service.SetSubmissionOpen(context.Background(), false)

	var ev domain.Event
	_ = stay.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := stay.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Msg != domain.MsgSubmissionGateChanged || ev.Open == nil || *ev.Open {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func dialWS(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, count func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d live clients, have %d", want, count())
}
