package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coilworks/sledctl/sequencer"
)

// HistoryDB stores one row per launch cycle. It is diagnostic: control
// decisions never read it, and the controller runs fine without it.
type HistoryDB struct {
	*sql.DB
}

func openHistory(path string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS launches (
			started_at TIMESTAMP,
			hall1_ms INTEGER,
			hall2_ms INTEGER,
			holdoff_ms INTEGER,
			speed1_mm_s DOUBLE,
			speed2_mm_s DOUBLE,
			outcome TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &HistoryDB{db}, nil
}

// LaunchRecord summarizes one cycle. Millisecond offsets are -1 when the
// corresponding sensor never tripped (fail-safe aborts).
type LaunchRecord struct {
	StartedAt time.Time
	Hall1MS   int64
	Hall2MS   int64
	HoldoffMS int64
	Speed1    float64
	Speed2    float64
	Outcome   string // "complete" or "fail_safe"
}

func (db *HistoryDB) RecordLaunch(rec LaunchRecord) error {
	_, err := db.Exec(
		`INSERT INTO launches (started_at, hall1_ms, hall2_ms, holdoff_ms, speed1_mm_s, speed2_mm_s, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt, rec.Hall1MS, rec.Hall2MS, rec.HoldoffMS, rec.Speed1, rec.Speed2, rec.Outcome,
	)
	return err
}

// RecentLaunches returns the newest launches, most recent first.
func (db *HistoryDB) RecentLaunches(limit int) ([]LaunchRecord, error) {
	rows, err := db.Query(
		`SELECT started_at, hall1_ms, hall2_ms, holdoff_ms, speed1_mm_s, speed2_mm_s, outcome
		 FROM launches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []LaunchRecord
	for rows.Next() {
		var rec LaunchRecord
		if err := rows.Scan(&rec.StartedAt, &rec.Hall1MS, &rec.Hall2MS,
			&rec.HoldoffMS, &rec.Speed1, &rec.Speed2, &rec.Outcome); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// recorderWorker assembles the event stream into per-cycle records. A
// cycle opens on coil-A fire and closes on either a speed reading or a
// fail-safe abort.
func recorderWorker(ctx context.Context, events <-chan sequencer.Event, db *HistoryDB) {
	log.Println("Launch recorder started")

	var (
		open bool
		rec  LaunchRecord
	)
	reset := func() {
		open = false
		rec = LaunchRecord{Hall1MS: -1, Hall2MS: -1}
	}
	reset()

	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case sequencer.EventCoilAFired:
				reset()
				open = true
				rec.StartedAt = time.Now()
			case sequencer.EventHall1Trip:
				rec.Hall1MS = ev.At.Milliseconds()
			case sequencer.EventHall2Trip:
				rec.Hall2MS = ev.At.Milliseconds()
			case sequencer.EventHoldoff:
				rec.HoldoffMS = ev.Holdoff.Milliseconds()
			case sequencer.EventSpeeds:
				if !open {
					continue
				}
				rec.Speed1 = ev.Speed1
				rec.Speed2 = ev.Speed2
				rec.Outcome = "complete"
				if err := db.RecordLaunch(rec); err != nil {
					log.Printf("Failed to record launch: %v\n", err)
				}
				reset()
			case sequencer.EventFailSafe:
				if !open {
					continue
				}
				rec.Outcome = "fail_safe"
				if err := db.RecordLaunch(rec); err != nil {
					log.Printf("Failed to record aborted launch: %v\n", err)
				}
				reset()
			}

		case <-ctx.Done():
			log.Println("Launch recorder stopped")
			return
		}
	}
}
