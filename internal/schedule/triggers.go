package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/engine"
)

// Trigger names, also used as persisted marker keys.
const (
	DailySweepTrigger     = "daily-sweep"
	WeeklyCloseoutTrigger = "weekly-closeout"
)

// Commands is the part of the engine the built-in triggers drive.
type Commands interface {
	RunDailySweep(ctx context.Context, date time.Time) (engine.SweepResult, error)
	RunWeeklyRollover(ctx context.Context, week int) (engine.RolloverResult, error)
	Calendar() cycle.Calendar
}

// DailySweep records the day's shortfalls near day close.
func DailySweep(cmds Commands, at TimeOfDay, window time.Duration) Trigger {
	cal := cmds.Calendar()
	return Trigger{
		Name:   DailySweepTrigger,
		At:     at,
		Window: window,
		When:   inCycle(cal),
		Run: func(ctx context.Context, now time.Time) (string, error) {
			res, err := cmds.RunDailySweep(ctx, now)
			if err != nil {
				return "", err
			}
			msg := fmt.Sprintf("week %d day %d: %d shortfalls recorded, %d failed",
				res.Week, res.Day, res.Created, res.Failed)
			if res.LateFolded > 0 {
				msg += fmt.Sprintf(", %d folded into the rolled week", res.LateFolded)
			}
			return msg, nil
		},
	}
}

// WeeklyCloseout rolls the current week over on its closing day.
func WeeklyCloseout(cmds Commands, at TimeOfDay, window time.Duration) Trigger {
	cal := cmds.Calendar()
	return Trigger{
		Name:   WeeklyCloseoutTrigger,
		At:     at,
		Window: window,
		When:   cal.IsClosingDay,
		Run: func(ctx context.Context, now time.Time) (string, error) {
			pos, err := cal.Locate(now)
			if err != nil {
				return "", err
			}
			res, err := cmds.RunWeeklyRollover(ctx, pos.Week)
			if err != nil {
				return "", err
			}
			if res.AlreadyRolled {
				return fmt.Sprintf("week %d already rolled; %d balances refreshed", pos.Week, res.Carried.BalancesCarried), nil
			}
			return fmt.Sprintf("week %d rolled: %d payments applied, %d balances carried",
				pos.Week, res.Applied.Payments, res.Carried.BalancesCarried), nil
		},
	}
}

func inCycle(cal cycle.Calendar) func(time.Time) bool {
	return func(date time.Time) bool {
		_, err := cal.Locate(date)
		return err == nil
	}
}
