package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wolfeidau/faceterm/internal/clock"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/terminal"
)

var errBrokerDown = errors.New("broker unavailable")

type published struct {
	topic   string
	payload []byte
}

func (p published) operator() string  { return gjson.GetBytes(p.payload, "operator").String() }
func (p published) messageID() string { return gjson.GetBytes(p.payload, "messageId").String() }

// fakePublisher records publishes. onPublish runs before Publish returns,
// which is where a fast terminal's ack would land. onAttempt runs at the
// start of every attempt, successful or not.
type fakePublisher struct {
	mu        sync.Mutex
	msgs      []published
	err       error
	fails     int
	onPublish func(topic string, payload []byte)
	onAttempt func()
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if f.onAttempt != nil {
		f.onAttempt()
	}

	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errBrokerDown
	}
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	f.msgs = append(f.msgs, published{topic: topic, payload: payload})
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (f *fakePublisher) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

type recordingListener struct {
	mu         sync.Mutex
	recognized []string
	success    []string
	failed     []string
}

func (l *recordingListener) OnFaceRecognized(orgID, userID, imageData string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recognized = append(l.recognized, orgID+"/"+userID+"/"+imageData)
}

func (l *recordingListener) OnFaceRegisterSuccess(orgID, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.success = append(l.success, orgID+"/"+userID)
}

func (l *recordingListener) OnFaceRegisterFailed(orgID, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, orgID+"/"+userID)
}

func newFakeClock() *clock.FakeClock {
	return clock.Fake(time.UnixMilli(1700000000000))
}

func newTestRegistry(t interface{ Fatalf(string, ...any) }, pairs ...string) *terminal.Registry {
	r := terminal.NewRegistry(nil)
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := r.Add(pairs[i], pairs[i+1]); err != nil {
			t.Fatalf("add terminal: %v", err)
		}
	}
	return r
}

func ackPayload(messageID, result string) []byte {
	return []byte(`{"messageId":"` + messageID + `","info":{"result":"` + result + `"}}`)
}

func testPerson(userID string) protocol.Person {
	return protocol.Person{UserID: userID, Name: "Name " + userID, ImageURI: "https://img.example.com/" + userID + ".jpg"}
}
