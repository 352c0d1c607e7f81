// Package scheduler assigns send instants to campaign recipients
// under throttle, jitter, daily-cap and send-window constraints.
//
// One Scheduler instance processes one import batch sequentially;
// that single-threaded pass is what guarantees monotonically
// non-decreasing, evenly spaced assignments without locking. State is
// an explicit value threaded through Next, never hidden mutation, so
// persisting it back to the segment is just Snapshot.
package scheduler

import (
	"math/rand"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
)

// Clock abstracts "now" for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var SystemClock Clock = systemClock{}

// MinInterval is the hard floor on inter-message spacing. Protects
// against a misconfigured throttle collapsing to zero.
const MinInterval = 500 * time.Millisecond

const dayFormat = "2006-01-02"

// Assignment is one recipient's computed send slot. LocalSendAt is
// kept for human-readable event payloads.
type Assignment struct {
	SendAt      time.Time
	LocalSendAt time.Time
}

// State is the scheduler's mutable cursor: the next candidate local
// instant plus the active day's quota.
type State struct {
	cursor time.Time // segment-local
	dayKey string
	used   int
}

// Persisted is the segment-record form of State, written back once
// after a batch completes.
type Persisted struct {
	NextSendAt     time.Time
	DailyQuotaDate time.Time
	DailyQuotaUsed int
}

type Scheduler struct {
	loc         *time.Location
	interval    time.Duration
	jitter      time.Duration
	dailyCap    int
	windowStart *int
	windowEnd   *int
	rng         *rand.Rand
}

// New builds a scheduler from a segment's configuration and restores
// its persisted state. The base instant is the segment's next_send_at,
// else the campaign's scheduled_at, else now.
//
// Local time math goes through the segment's IANA location at every
// alignment step, so schedules stay correct across DST transitions.
func New(seg *model.Segment, campaign *model.Campaign, clock Clock, rng *rand.Rand) (*Scheduler, State, error) {
	loc := time.UTC
	if seg.Timezone != "" {
		l, err := time.LoadLocation(seg.Timezone)
		if err != nil {
			return nil, State{}, err
		}
		loc = l
	}

	throttle := seg.ThrottlePerMinute
	if throttle < 1 {
		throttle = 1
	}
	interval := time.Duration(60_000/throttle) * time.Millisecond
	if interval < MinInterval {
		interval = MinInterval
	}

	s := &Scheduler{
		loc:         loc,
		interval:    interval,
		jitter:      time.Duration(seg.JitterSeconds) * time.Second,
		dailyCap:    seg.DailyCap,
		windowStart: seg.WindowStartHour,
		windowEnd:   seg.WindowEndHour,
		rng:         rng,
	}

	base := clock.Now()
	switch {
	case seg.NextSendAt != nil:
		base = *seg.NextSendAt
	case campaign != nil && campaign.ScheduledAt != nil:
		base = *campaign.ScheduledAt
	}

	st := State{cursor: s.applyWindow(base.In(loc))}
	st.dayKey = st.cursor.Format(dayFormat)

	// Restore quota only if the persisted date still refers to the
	// cursor's local day.
	if seg.DailyQuotaDate != nil && seg.DailyQuotaDate.In(loc).Format(dayFormat) == st.dayKey {
		st.used = seg.DailyQuotaUsed
	}
	if s.dailyCap > 0 && st.used >= s.dailyCap {
		st.cursor = s.nextDay(st.cursor)
		st.dayKey = st.cursor.Format(dayFormat)
		st.used = 0
	}

	return s, st, nil
}

// Next computes the send slot for one recipient and advances the
// state. Jitter is additive noise on the aligned instant; the cursor
// advances from the pre-jitter instant so noise never compounds.
func (s *Scheduler) Next(st State) (State, Assignment) {
	aligned := s.applyWindow(st.cursor)
	st, aligned = s.ensureDailyAllowance(st, aligned)

	sendLocal := aligned
	if s.jitter > 0 {
		sendLocal = aligned.Add(time.Duration(s.rng.Int63n(int64(s.jitter))))
	}

	st.used++
	st.dayKey = aligned.Format(dayFormat)
	st.cursor = aligned.Add(s.interval)

	return st, Assignment{SendAt: sendLocal.UTC(), LocalSendAt: sendLocal}
}

// Snapshot serializes the state for the segment record: the
// window-aligned cursor as next_send_at and the tracked day as a UTC
// instant at local midnight.
func (s *Scheduler) Snapshot(st State) Persisted {
	day, _ := time.ParseInLocation(dayFormat, st.dayKey, s.loc)
	return Persisted{
		NextSendAt:     s.applyWindow(st.cursor).UTC(),
		DailyQuotaDate: day.UTC(),
		DailyQuotaUsed: st.used,
	}
}

// applyWindow snaps a local instant into the half-open send window
// [start, end). Before the window it moves forward to start:00 the
// same day; at or past the end it moves to the next day's start.
func (s *Scheduler) applyWindow(t time.Time) time.Time {
	if s.windowStart == nil && s.windowEnd == nil {
		return t
	}
	if s.windowStart != nil && t.Hour() < *s.windowStart {
		return time.Date(t.Year(), t.Month(), t.Day(), *s.windowStart, 0, 0, 0, s.loc)
	}
	if s.windowEnd != nil && t.Hour() >= *s.windowEnd {
		return time.Date(t.Year(), t.Month(), t.Day()+1, s.startHour(), 0, 0, 0, s.loc)
	}
	return t
}

func (s *Scheduler) startHour() int {
	if s.windowStart != nil {
		return *s.windowStart
	}
	return 9
}

// ensureDailyAllowance resets the quota when the instant crosses into
// a new local day, and pushes the instant a day forward when the cap
// is exhausted.
func (s *Scheduler) ensureDailyAllowance(st State, t time.Time) (State, time.Time) {
	if key := t.Format(dayFormat); key != st.dayKey {
		st.used = 0
		st.dayKey = key
	}
	if s.dailyCap > 0 && st.used >= s.dailyCap {
		t = s.nextDay(t)
		st.used = 0
		st.dayKey = t.Format(dayFormat)
	}
	return st, t
}

// nextDay advances one full day, snapping to the window start when a
// window is configured.
func (s *Scheduler) nextDay(t time.Time) time.Time {
	if s.windowStart != nil || s.windowEnd != nil {
		return time.Date(t.Year(), t.Month(), t.Day()+1, s.startHour(), 0, 0, 0, s.loc)
	}
	return t.AddDate(0, 0, 1)
}

// Interval reports the throttle-derived spacing, floor applied.
func (s *Scheduler) Interval() time.Duration { return s.interval }
