package app

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// Publisher stores a message on a JetStream subject. msgID deduplicates.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
}

// QueueTopology names the stream and subjects relay jobs travel on.
type QueueTopology struct {
	Stream               string
	InboundSubject       string
	UnreadMessageSubject string
}

var nonToken = regexp.MustCompile(`[^a-z0-9]+`)

// NewQueueTopology derives stream and subject names from the integration
// name, so several integrations can share one NATS account.
func NewQueueTopology(integrationName string) QueueTopology {
	slug := strings.Trim(nonToken.ReplaceAllString(strings.ToLower(integrationName), "_"), "_")
	if slug == "" {
		slug = "sms_bridge"
	}
	return QueueTopology{
		Stream:               strings.ToUpper(slug) + "_JOBS",
		InboundSubject:       slug + ".jobs.inbound_sms",
		UnreadMessageSubject: slug + ".jobs.unread_message",
	}
}

// Subjects lists every subject the stream must capture.
func (t QueueTopology) Subjects() []string {
	return []string{t.InboundSubject, t.UnreadMessageSubject}
}

// JobQueue publishes relay jobs. It implements domain.JobEnqueuer.
type JobQueue struct {
	publisher Publisher
	topology  QueueTopology
}

// NewJobQueue creates a JobQueue.
func NewJobQueue(publisher Publisher, topology QueueTopology) *JobQueue {
	return &JobQueue{publisher: publisher, topology: topology}
}

// EnqueueInboundSMS publishes job. Gateway retries of the same callback share a
// message ID and are dropped by the server.
func (q *JobQueue) EnqueueInboundSMS(ctx context.Context, job domain.InboundSMSJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding inbound sms job: %w", err)
	}
	return q.publisher.Publish(ctx, q.topology.InboundSubject, data, InboundJobID(job))
}

// EnqueueUnreadMessage publishes job.
func (q *JobQueue) EnqueueUnreadMessage(ctx context.Context, job domain.UnreadMessageJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding unread message job: %w", err)
	}
	return q.publisher.Publish(ctx, q.topology.UnreadMessageSubject, data, UnreadMessageJobID(job))
}

// InboundJobID identifies an inbound SMS. Without a gateway message ID every
// callback is treated as distinct.
func InboundJobID(job domain.InboundSMSJob) string {
	if job.MessageID == "" {
		return uuid.NewString()
	}
	return digest("inbound", job.MessageID, job.From, job.To)
}

// UnreadMessageJobID identifies a receipt delivery by message and recipient set.
func UnreadMessageJobID(job domain.UnreadMessageJob) string {
	if job.Message.ID == "" {
		return uuid.NewString()
	}
	recipients := append([]string(nil), job.Recipients...)
	sort.Strings(recipients)
	return digest(append([]string{"unread", job.Message.ID}, recipients...)...)
}

func digest(parts ...string) string {
	h := sha3.New256()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
