package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

type recordingNotifier struct {
	got []Notice
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) error {
	r.got = append(r.got, n)
	return r.err
}

func TestRedis_PublishesJSONNotice(t *testing.T) {
	// GIVEN: A redis notifier on the default channel
	pub := &fakePublisher{}
	n := NewRedis(pub, "")

	// WHEN: A decision notice is sent
	notice := Notice{
		Kind:       KindLeaveDecision,
		EmployeeID: "emp-1",
		RequestID:  "req-1",
		Decision:   "approve",
		Status:     "approved",
		At:         time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.Notify(context.Background(), notice))

	// THEN: The payload is the JSON notice on the default channel
	assert.Equal(t, DefaultChannel, pub.channel)
	var decoded Notice
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, notice, decoded)
}

func TestRedis_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	n := NewRedis(pub, "custom")

	err := n.Notify(context.Background(), Notice{Kind: KindLatenessSanction, EmployeeID: "emp-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	// GIVEN: Two notifiers, the first failing
	failing := &recordingNotifier{err: errors.New("down")}
	ok := &recordingNotifier{}
	m := Multi{failing, nil, ok}

	// WHEN: A notice is sent
	err := m.Notify(context.Background(), Notice{EmployeeID: "emp-1"})

	// THEN: Both received it and the failure is reported
	require.Error(t, err)
	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1)
}

func TestLog_NeverFails(t *testing.T) {
	assert.NoError(t, NewLog(nil).Notify(context.Background(), Notice{EmployeeID: "emp-1"}))
}
