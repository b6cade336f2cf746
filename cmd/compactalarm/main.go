package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/chibaminto/compactalarm/internal/alarm"
	"github.com/chibaminto/compactalarm/internal/config"
	"github.com/chibaminto/compactalarm/internal/repository"
	"github.com/chibaminto/compactalarm/internal/service"
	"github.com/chibaminto/compactalarm/internal/store"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Daemon struct {
	} `cmd:"" help:"Run the alarm daemon"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	List struct {
	} `cmd:"" help:"List all alarms"`

	Add struct {
		Time          string `arg:"" help:"Alarm time as HH:MM"`
		Weekdays      string `short:"w" help:"Comma-separated repeat days (mon,tue,...); empty for one-shot"`
		Label         string `short:"l" help:"Alarm label"`
		ChildOf       string `help:"Parent alarm id to attach this time to"`
		VibrationOnly bool   `help:"Silence the alarm sound"`
	} `cmd:"" help:"Add an alarm"`

	Remove struct {
		ID string `arg:"" help:"Alarm id (removes its whole group)"`
	} `cmd:"" help:"Remove an alarm group"`

	Undo struct {
	} `cmd:"" help:"Restore the most recently removed alarm group"`

	Enable struct {
		ID string `arg:"" help:"Alarm id"`
	} `cmd:"" help:"Enable an alarm group"`

	Disable struct {
		ID string `arg:"" help:"Alarm id"`
	} `cmd:"" help:"Disable an alarm group"`

	Set struct {
		ID            string `arg:"" help:"Alarm id"`
		Time          string `help:"New time as HH:MM (this alarm only)"`
		Label         string `help:"New label (this alarm only)"`
		Weekdays      string `help:"New repeat days (cascades to the group)"`
		VibrationOnly *bool  `help:"Silence or unsilence the group"`
	} `cmd:"" help:"Edit an alarm"`

	Next struct {
		ID string `arg:"" help:"Alarm id"`
	} `cmd:"" help:"Show when an alarm fires next"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	switch ctx.Command() {
	case "daemon":
		err = runDaemon(cfg)
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "list":
		err = runList(cfg)
	case "add <time>":
		err = runAdd(cfg)
	case "remove <id>":
		err = runRemove(cfg)
	case "undo":
		err = runUndo(cfg)
	case "enable <id>":
		err = setEnabled(cfg, CLI.Enable.ID, true)
	case "disable <id>":
		err = setEnabled(cfg, CLI.Disable.ID, false)
	case "set <id>":
		err = runSet(cfg)
	case "next <id>":
		err = runNext(cfg)
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if _, statErr := os.Stat(CLI.Config); os.IsNotExist(statErr) {
		return config.Default(), nil
	}
	return config.Load(CLI.Config)
}

func setupLogging(cfg *config.Config) {
	level := parseLevel(cfg.Logging.Level)
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}

	runErr := svc.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		slog.Warn("Shutdown incomplete", "error", err)
	}
	return runErr
}

// storeSession bundles what every store-touching command needs.
type storeSession struct {
	kv       store.KV
	repo     *repository.Repository
	alarms   *store.AlarmStore
	snapshot []alarm.Alarm
}

func withStore(cfg *config.Config, fn func(context.Context, *storeSession) error) error {
	ctx := context.Background()
	kv, err := service.OpenKV(cfg.Store)
	if err != nil {
		return err
	}
	alarms := store.NewAlarmStore(kv)
	defer alarms.Close()

	return fn(ctx, &storeSession{
		kv:       kv,
		repo:     repository.New(alarms, nil),
		alarms:   alarms,
		snapshot: alarms.Load(ctx),
	})
}

// trashKey holds the last removed group so undo works across CLI
// invocations, where the in-process undo buffer cannot.
const trashKey = "last_deleted"

func runRemove(cfg *config.Config) error {
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		removed, _, err := s.repo.RemoveGroup(ctx, s.snapshot, CLI.Remove.ID)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Println("No such alarm.")
			return nil
		}
		payload, err := json.Marshal(removed)
		if err != nil {
			return err
		}
		if err := s.kv.Set(ctx, trashKey, payload); err != nil {
			return err
		}
		fmt.Printf("Removed %d alarm(s). Run `compactalarm undo` to restore.\n", len(removed))
		return nil
	})
}

func runUndo(cfg *config.Config) error {
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		payload, ok, err := s.kv.Get(ctx, trashKey)
		if err != nil {
			return err
		}
		var group []alarm.Alarm
		if ok {
			if err := json.Unmarshal(payload, &group); err != nil {
				return err
			}
		}
		if len(group) == 0 {
			fmt.Println("Nothing to undo.")
			return nil
		}
		if err := s.alarms.Save(ctx, append(s.snapshot, group...)); err != nil {
			return err
		}
		if err := s.kv.Set(ctx, trashKey, []byte("[]")); err != nil {
			return err
		}
		fmt.Printf("Restored %d alarm(s)\n", len(group))
		return nil
	})
}

// refresh reloads the snapshot after a prior mutation in the same command.
func refresh(ctx context.Context, s *storeSession) []alarm.Alarm {
	s.snapshot = s.alarms.Load(ctx)
	return s.snapshot
}

func runList(cfg *config.Config) error {
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		if len(s.snapshot) == 0 {
			fmt.Println("No alarms.")
			return nil
		}
		now := time.Now()
		fmt.Printf("%-36s  %-5s  %-8s  %-15s  %s\n", "ID", "TIME", "ENABLED", "REPEAT", "LABEL")
		for _, a := range s.snapshot {
			repeat := "once"
			if a.IsRepeating() {
				repeat = formatWeekdays(a.Weekdays)
			}
			label := a.Label
			if !a.IsPrimary() {
				label = fmt.Sprintf("(alt of %s)", shortID(a.ParentID))
			}
			fmt.Printf("%-36s  %-5s  %-8t  %-15s  %s\n", a.ID, a.Time, a.Enabled, repeat, label)
			if a.Enabled {
				next := alarm.NextTrigger(now, a.Time, a.Weekdays)
				fmt.Printf("%-36s  next: %s\n", "", next.Format("Mon Jan 2 15:04"))
			}
		}
		return nil
	})
}

// shortID abbreviates a UUID for display. IDs restored from hand-edited
// stores may be shorter than the usual 36 characters.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runAdd(cfg *config.Config) error {
	t, err := alarm.ParseTimeOfDay(CLI.Add.Time)
	if err != nil {
		return err
	}
	weekdays, err := parseWeekdays(CLI.Add.Weekdays)
	if err != nil {
		return err
	}
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		var added alarm.Alarm
		if CLI.Add.ChildOf != "" {
			added, _, err = s.repo.AddChild(ctx, s.snapshot, CLI.Add.ChildOf, t)
		} else {
			added, _, err = s.repo.AddPrimary(ctx, s.snapshot, t, weekdays, CLI.Add.Label)
		}
		if err != nil {
			return err
		}
		if CLI.Add.VibrationOnly {
			if _, err := s.repo.SetVibrationOnly(ctx, refresh(ctx, s), added.ID, true); err != nil {
				return err
			}
		}
		fmt.Printf("Added alarm %s at %s\n", added.ID, added.Time)
		return nil
	})
}

func setEnabled(cfg *config.Config, id string, enabled bool) error {
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		_, err := s.repo.SetEnabled(ctx, s.snapshot, id, enabled)
		return err
	})
}

func runSet(cfg *config.Config) error {
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		id := CLI.Set.ID
		if CLI.Set.Time != "" {
			t, err := alarm.ParseTimeOfDay(CLI.Set.Time)
			if err != nil {
				return err
			}
			if _, err := s.repo.SetTime(ctx, refresh(ctx, s), id, t); err != nil {
				return err
			}
		}
		if CLI.Set.Label != "" {
			if _, err := s.repo.SetLabel(ctx, refresh(ctx, s), id, CLI.Set.Label); err != nil {
				return err
			}
		}
		if CLI.Set.Weekdays != "" {
			weekdays, err := parseWeekdays(CLI.Set.Weekdays)
			if err != nil {
				return err
			}
			if _, err := s.repo.SetWeekdays(ctx, refresh(ctx, s), id, weekdays); err != nil {
				return err
			}
		}
		if CLI.Set.VibrationOnly != nil {
			if _, err := s.repo.SetVibrationOnly(ctx, refresh(ctx, s), id, *CLI.Set.VibrationOnly); err != nil {
				return err
			}
		}
		return nil
	})
}

func runNext(cfg *config.Config) error {
	return withStore(cfg, func(ctx context.Context, s *storeSession) error {
		a, ok := alarm.FindByID(s.snapshot, CLI.Next.ID)
		if !ok {
			return fmt.Errorf("no alarm with id %s", CLI.Next.ID)
		}
		if !a.Enabled {
			fmt.Println("Alarm is disabled.")
			return nil
		}
		next := alarm.NextTrigger(time.Now(), a.Time, a.Weekdays)
		fmt.Println(next.Format("Mon Jan 2 2006 15:04"))
		return nil
	})
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(part))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

func formatWeekdays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToLower(d.String()[:3])
	}
	return strings.Join(names, ",")
}
