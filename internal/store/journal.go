package store

import (
	"fmt"
	"time"

	"example.com/openchat/internal/models"
)

// stream is the single journal partition; seq clusters events inside it.
const stream = "openchat"

// AppendEvent writes evt keyed by its sequence. Writing the same event twice
// overwrites it with identical values, so redelivery from Kafka is harmless.
func (s *Store) AppendEvent(evt models.Event) error {
	if err := s.Session.Query(`
		INSERT INTO chat_events (stream, seq, kind, at, account_id, username, secret_hash, about, followee_id, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stream, int64(evt.Seq), string(evt.Kind), evt.At, evt.AccountID,
		evt.Username, evt.SecretHash, evt.About, evt.FolloweeID, evt.Message,
	).Exec(); err != nil {
		logg.Error("store", "Failed to append journal event", err)
		return fmt.Errorf("append event %d: %w", evt.Seq, err)
	}

	logg.Debug("store", fmt.Sprintf("Journal event %d (%s) appended", evt.Seq, evt.Kind))
	return nil
}

// LoadEvents returns the whole journal in sequence order.
func (s *Store) LoadEvents() ([]models.Event, error) {
	iter := s.Session.Query(`
		SELECT seq, kind, at, account_id, username, secret_hash, about, followee_id, message
		FROM chat_events WHERE stream = ?`,
		stream,
	).Iter()

	var (
		res                                   []models.Event
		seq                                   int64
		kind, accountID, username, secretHash string
		about, followeeID, message            string
		at                                    time.Time
	)

	for iter.Scan(&seq, &kind, &at, &accountID, &username, &secretHash, &about, &followeeID, &message) {
		res = append(res, models.Event{
			Seq:        uint64(seq),
			Kind:       models.EventKind(kind),
			At:         at,
			AccountID:  accountID,
			Username:   username,
			SecretHash: secretHash,
			About:      about,
			FolloweeID: followeeID,
			Message:    message,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to load journal", err)
		return nil, fmt.Errorf("load events: %w", err)
	}

	logg.Info("store", fmt.Sprintf("Loaded %d journal events", len(res)))
	return res, nil
}
