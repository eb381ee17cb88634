package journal

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"example.com/openchat/internal/chat"
	"example.com/openchat/internal/models"
	"example.com/openchat/internal/store"
)

var errIncompleteEvent = errors.New("incomplete event")

// Stats summarises a replay.
type Stats struct {
	Applied int
	Skipped int
	LastSeq uint64
}

// Load reads the whole journal from st and replays it into reg.
func Load(st store.StoreInterface, reg *chat.Registry) (Stats, error) {
	events, err := st.LoadEvents()
	if err != nil {
		return Stats{}, fmt.Errorf("load journal: %w", err)
	}
	return Replay(reg, events), nil
}

// Replay applies events to reg in sequence order, then raises the registry
// sequence past the last replayed event so new events never reuse a stored seq.
// Attach observers only after replaying, or every event is written again.
func Replay(reg *chat.Registry, events []models.Event) Stats {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b models.Event) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	var stats Stats
	for _, evt := range ordered {
		if evt.Seq > stats.LastSeq {
			stats.LastSeq = evt.Seq
		}
		// a gap in the journal must not shift later events onto lower seqs
		if evt.Seq > 0 {
			reg.AdvanceSequence(evt.Seq - 1)
		}
		if err := apply(reg, evt); err != nil {
			stats.Skipped++
			logg.Warn("journal", fmt.Sprintf("Skipped journal event %d (%s): %v", evt.Seq, evt.Kind, err))
			continue
		}
		stats.Applied++
	}

	reg.AdvanceSequence(stats.LastSeq)
	logg.Info("journal", fmt.Sprintf("Replayed %d journal events, skipped %d", stats.Applied, stats.Skipped))
	return stats
}

func apply(reg *chat.Registry, evt models.Event) error {
	if !evt.Valid() {
		return errIncompleteEvent
	}

	switch evt.Kind {
	case models.EventAccountRegistered:
		_, err := reg.Restore(evt.AccountID, evt.Username, evt.SecretHash, evt.About)
		return err

	case models.EventFollowed:
		follower, err := reg.PublisherByID(evt.AccountID)
		if err != nil {
			return err
		}
		followee, err := reg.PublisherByID(evt.FolloweeID)
		if err != nil {
			return err
		}
		return follower.Follow(followee)

	case models.EventPublished:
		author, err := reg.PublisherByID(evt.AccountID)
		if err != nil {
			return err
		}
		_, err = author.Publish(evt.Message, evt.At)
		return err

	default:
		return fmt.Errorf("unknown kind %q", evt.Kind)
	}
}
