package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/store"
)

var seedDays int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with demo history",
	Long:  "seed writes a deterministic demo room into the database: a room-creation run, membership churn, profile changes and messages spread over several days.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	seedCmd.Flags().IntVar(&seedDays, "days", 3, "number of days of history to generate")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := store.NewTimelineRepository(db)
	roomID := event.RoomID(roomFlag)

	events := demoHistory(seedDays)
	for _, ev := range events {
		if _, err := repo.Append(ctx, roomID, ev); err != nil {
			return fmt.Errorf("failed to seed event %s: %w", ev.EventID, err)
		}
	}
	fmt.Printf("seeded %d events into room %q\n", len(events), roomID)
	return nil
}

type demoUser struct {
	id   event.UserID
	name string
}

// demoHistory builds a fixed script. The opening run exercises the
// room-creation group; the membership churn and profile changes across
// later days exercise grouping, merging and summarization.
func demoHistory(days int) []*event.Event {
	if days < 1 {
		days = 1
	}
	users := []demoUser{
		{"@ada:fjord.local", "Ada"},
		{"@linus:fjord.local", "Linus"},
		{"@grace:fjord.local", "Grace"},
		{"@ken:fjord.local", "Ken"},
		{"@barbara:fjord.local", "Barbara"},
	}
	creator := users[0]

	start := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour).Add(9 * time.Hour)
	clock := start
	seq := 0
	next := func(d time.Duration) time.Time {
		clock = clock.Add(d)
		return clock
	}
	id := func() event.EventID {
		seq++
		return event.EventID(fmt.Sprintf("$seed-%04d", seq))
	}

	var out []*event.Event
	add := func(u demoUser, c event.Content, d time.Duration) {
		out = append(out, &event.Event{
			EventID:    id(),
			Sender:     u.id,
			SenderName: u.name,
			Timestamp:  next(d),
			Content:    c,
		})
	}

	// Room creation run: create followed by contiguous config events.
	add(creator, event.Content{Kind: event.ContentRoomCreate}, 0)
	add(creator, event.Content{Kind: event.ContentRoomName, Value: "fjord dev"}, time.Second)
	add(creator, event.Content{Kind: event.ContentRoomTopic, Value: "timelines and small talk"}, time.Second)
	add(creator, event.Content{Kind: event.ContentRoomHistoryVisibility, Value: "shared"}, time.Second)
	add(creator, event.Content{Kind: event.ContentRoomEncryption}, time.Second)

	for day := 0; day < days; day++ {
		if day > 0 {
			clock = start.AddDate(0, 0, day)
		}
		// Morning churn: a burst of joins, one of them leaving again.
		for i, u := range users[1:] {
			add(u, event.Content{Kind: event.ContentMembership, Membership: event.MembershipJoin, StateKey: string(u.id)}, time.Duration(i+1)*time.Minute)
		}
		add(users[2], event.Content{Kind: event.ContentMembership, Membership: event.MembershipLeave, StateKey: string(users[2].id)}, 2*time.Minute)
		add(users[2], event.Content{Kind: event.ContentMembership, Membership: event.MembershipJoin, StateKey: string(users[2].id)}, 5*time.Minute)
		add(users[3], event.Content{Kind: event.ContentDisplayName, Value: "ken (afk)"}, 3*time.Minute)

		// Conversation.
		lines := []struct {
			u    demoUser
			body string
		}{
			{users[0], "morning all, day " + fmt.Sprint(day+1)},
			{users[1], "anyone looked at the pagination branch?"},
			{users[2], "yes, the anchor math holds up"},
			{users[3], "pushing a fix for the group shifts now"},
			{users[0], "nice, will pull after lunch"},
			{users[4], "logs look clean on my side"},
		}
		for _, l := range lines {
			add(l.u, event.Content{Kind: event.ContentMessage, Body: l.body}, 7*time.Minute)
		}
		add(users[4], event.Content{Kind: event.ContentPoll, Body: "merge today?"}, 10*time.Minute)
	}
	return out
}
