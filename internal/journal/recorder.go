// Package journal turns registry mutations into events on the broker and
// rebuilds a registry from stored events.
package journal

import (
	"fmt"
	"time"

	appkafka "example.com/openchat/internal/broker"
	"example.com/openchat/internal/chat"
	"example.com/openchat/internal/logger"
	"example.com/openchat/internal/metrics"
	"example.com/openchat/internal/models"
)

var logg = logger.New()

// Recorder is a chat.Observer that writes every committed mutation to Kafka.
// A failed write is logged and counted; the mutation itself stays committed.
type Recorder struct {
	writer appkafka.KafkaWriter
	now    func() time.Time
}

func NewRecorder(writer appkafka.KafkaWriter) *Recorder {
	return &Recorder{writer: writer, now: time.Now}
}

func (r *Recorder) Registered(seq uint64, account chat.Account) {
	r.emit(models.Event{
		Seq:        seq,
		Kind:       models.EventAccountRegistered,
		At:         r.now().UTC(),
		AccountID:  account.ID,
		Username:   account.Name,
		SecretHash: account.SecretHash(),
		About:      account.About,
	})
}

func (r *Recorder) Followed(seq uint64, follower, followee chat.Account) {
	r.emit(models.Event{
		Seq:        seq,
		Kind:       models.EventFollowed,
		At:         r.now().UTC(),
		AccountID:  follower.ID,
		FolloweeID: followee.ID,
	})
}

func (r *Recorder) Published(author chat.Account, pub chat.Publication) {
	r.emit(models.Event{
		Seq:       pub.Seq,
		Kind:      models.EventPublished,
		At:        pub.At,
		AccountID: author.ID,
		Message:   pub.Message,
	})
}

func (r *Recorder) emit(evt models.Event) {
	msg, err := appkafka.EncodeEvent(evt)
	if err != nil {
		metrics.JournalEvents.WithLabelValues("encode_failed").Inc()
		logg.Error("journal", "Failed to encode journal event", err)
		return
	}
	if err := r.writer.WriteMessages(msg); err != nil {
		metrics.JournalEvents.WithLabelValues("write_failed").Inc()
		logg.Error("journal", fmt.Sprintf("Failed to write journal event %d", evt.Seq), err)
		return
	}
	metrics.JournalEvents.WithLabelValues("written").Inc()
	logg.Debug("journal", fmt.Sprintf("Journal event %d (%s) written", evt.Seq, evt.Kind))
}
