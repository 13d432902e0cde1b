package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt(n int) *int { return &n }

func TestElapsedSeconds_Running(t *testing.T) {
	assert.Equal(t, int64(0), ElapsedSeconds(at(0), at(0), nil, 0))
	assert.Equal(t, int64(90), ElapsedSeconds(at(90), at(0), nil, 0))
	assert.Equal(t, int64(30), ElapsedSeconds(at(90), at(0), nil, 60))
}

func TestElapsedSeconds_PausedUsesPausedAt(t *testing.T) {
	// nowがどれだけ進んでもpausedAtで止まる
	assert.Equal(t, int64(60), ElapsedSeconds(at(60), at(0), ptrTime(at(60)), 0))
	assert.Equal(t, int64(60), ElapsedSeconds(at(5000), at(0), ptrTime(at(60)), 0))
}

func TestElapsedSeconds_PauseResumeConservation(t *testing.T) {
	// 0秒に開始、60秒で一時停止、120秒で再開
	paused := at(60)
	assert.Equal(t, int64(60), ElapsedSeconds(at(90), at(0), &paused, 0), "paused branch")

	total := FoldPause(at(120), paused, 0)
	assert.Equal(t, int64(60), total)

	// 180秒時点で計測中: (180-0) - 60 = 120
	assert.Equal(t, int64(120), ElapsedSeconds(at(180), at(0), nil, total), "active branch")
}

func TestElapsedSeconds_ClampsNegative(t *testing.T) {
	assert.Equal(t, int64(0), ElapsedSeconds(at(10), at(0), nil, 100))
	assert.Equal(t, int64(0), ElapsedSeconds(at(-30), at(0), nil, 0))
}

func TestElapsedSeconds_MonotonicWhileRunning(t *testing.T) {
	prev := int64(-1)
	for sec := 0; sec <= 600; sec += 7 {
		got := ElapsedSeconds(at(sec), at(0), nil, 45)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestElapsedSeconds_TruncatesSubSecond(t *testing.T) {
	now := t0.Add(59*time.Second + 999*time.Millisecond)
	assert.Equal(t, int64(59), ElapsedSeconds(now, t0, nil, 0))
}

func TestFoldPause_IgnoresNegativeInterval(t *testing.T) {
	assert.Equal(t, int64(10), FoldPause(at(0), at(30), 10))
}

func TestDurationSeconds(t *testing.T) {
	assert.Equal(t, int64(120), DurationSeconds(at(0), at(180), 60))
	assert.Equal(t, int64(0), DurationSeconds(at(0), at(30), 60))
	assert.Equal(t, int64(0), DurationSeconds(at(100), at(0), 0))
}

func TestDurationSeconds_NeverNegativeForAnySequence(t *testing.T) {
	for pause := 0; pause <= 300; pause += 50 {
		for resume := pause; resume <= 400; resume += 50 {
			for end := resume; end <= 500; end += 50 {
				total := FoldPause(at(resume), at(pause), 0)
				assert.GreaterOrEqual(t, DurationSeconds(at(0), at(end), total), int64(0))
			}
		}
	}
}

func TestPagesRead(t *testing.T) {
	got := PagesRead(ptrInt(10), ptrInt(42))
	if assert.NotNil(t, got) {
		assert.Equal(t, 32, *got)
	}
	assert.Nil(t, PagesRead(nil, ptrInt(42)))
	assert.Nil(t, PagesRead(ptrInt(10), nil))
	assert.Nil(t, PagesRead(nil, nil))
}
