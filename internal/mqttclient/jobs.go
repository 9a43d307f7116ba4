package mqttclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/jobs"
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// JobPublisher mirrors job records to the item's job topic as retained JSON,
// so late subscribers see the latest state of each item.
type JobPublisher struct {
	pub    Publisher
	topics Topics
	log    zerolog.Logger
}

func NewJobPublisher(pub Publisher, topics Topics, log zerolog.Logger) *JobPublisher {
	return &JobPublisher{
		pub:    pub,
		topics: topics,
		log:    log.With().Str("component", "job-publisher").Logger(),
	}
}

// JobChanged implements jobs.Notifier. Publish failures are logged only.
func (p *JobPublisher) JobChanged(job jobs.Job) {
	payload, err := json.Marshal(job)
	if err != nil {
		p.log.Error().Err(err).Str("item_id", job.ItemID).Msg("marshal job event")
		return
	}
	topic := p.topics.Job(job.ItemID)
	if err := p.pub.Publish(topic, payload, true); err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("job event publish failed")
	}
}

// Submitter accepts transcription requests.
type Submitter interface {
	Submit(ctx context.Context, itemID string, opts jobs.Options) (jobs.Job, error)
}

type transcribeCommand struct {
	ItemID string `json:"itemId"`
	jobs.Options
}

// CommandHandler returns a MessageHandler that submits a job for every
// {"itemId": ..., "language": ..., "model": ..., "force": ...} message.
// Rejections are logged; the job topic carries the outcome of accepted ones.
func CommandHandler(sub Submitter, log zerolog.Logger) MessageHandler {
	log = log.With().Str("component", "mqtt-commands").Logger()
	return func(topic string, payload []byte) {
		var cmd transcribeCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("malformed transcribe command")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := sub.Submit(ctx, cmd.ItemID, cmd.Options); err != nil {
			log.Warn().Err(err).Str("item_id", cmd.ItemID).Msg("transcribe command rejected")
		}
	}
}
