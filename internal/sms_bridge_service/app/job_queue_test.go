package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

func TestNewQueueTopology(t *testing.T) {
	topo := NewQueueTopology("Nexmo Integration")
	assert.Equal(t, "NEXMO_INTEGRATION_JOBS", topo.Stream)
	assert.Equal(t, "nexmo_integration.jobs.inbound_sms", topo.InboundSubject)
	assert.Equal(t, "nexmo_integration.jobs.unread_message", topo.UnreadMessageSubject)
	assert.ElementsMatch(t, []string{topo.InboundSubject, topo.UnreadMessageSubject}, topo.Subjects())

	assert.Equal(t, "SMS_BRIDGE_JOBS", NewQueueTopology("  ").Stream)
}

func TestJobQueue_EnqueueInboundSMS(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	topo := NewQueueTopology("Nexmo Integration")
	q := NewJobQueue(pub, topo)

	job := domain.InboundSMSJob{From: "+1", To: "+2", Text: "hi", MessageID: "abc"}
	pub.On("Publish", ctx, topo.InboundSubject, mock.MatchedBy(func(data []byte) bool {
		var decoded domain.InboundSMSJob
		return json.Unmarshal(data, &decoded) == nil && decoded.Text == "hi"
	}), InboundJobID(job)).Return(nil).Once()

	require.NoError(t, q.EnqueueInboundSMS(ctx, job))
	pub.AssertExpectations(t)
}

func TestJobIDs(t *testing.T) {
	a := domain.InboundSMSJob{From: "+1", To: "+2", Text: "hi", MessageID: "abc"}
	assert.Equal(t, InboundJobID(a), InboundJobID(a))
	b := a
	b.MessageID = "abd"
	assert.NotEqual(t, InboundJobID(a), InboundJobID(b))

	noID := domain.InboundSMSJob{From: "+1", To: "+2", Text: "hi"}
	assert.NotEqual(t, InboundJobID(noID), InboundJobID(noID))

	u1 := domain.UnreadMessageJob{Message: domain.Message{ID: "m1"}, Recipients: []string{"b", "a"}}
	u2 := domain.UnreadMessageJob{Message: domain.Message{ID: "m1"}, Recipients: []string{"a", "b"}}
	assert.Equal(t, UnreadMessageJobID(u1), UnreadMessageJobID(u2))
	assert.Equal(t, []string{"b", "a"}, u1.Recipients)
}
