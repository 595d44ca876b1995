package handlers

import (
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/photo-match/internal/constants"
	"github.com/kozaktomas/photo-match/internal/ranker"
)

func TestEventBroadcaster_SendEvent(t *testing.T) {
	var b EventBroadcaster
	ch1 := b.AddListener()
	ch2 := b.AddListener()

	b.SendEvent(JobEvent{Type: "progress"})

	for i, ch := range []chan JobEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != "progress" {
				t.Errorf("listener %d: expected progress, got %s", i, ev.Type)
			}
		default:
			t.Errorf("listener %d: expected an event", i)
		}
	}
}

func TestEventBroadcaster_RemoveListenerClosesChannel(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()

	b.RemoveListener(ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	// sending after removal must not panic
	b.SendEvent(JobEvent{Type: "progress"})
}

func TestEventBroadcaster_FullBufferDropsEvents(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()

	for range constants.EventChannelBuffer + 10 {
		b.SendEvent(JobEvent{Type: "progress"})
	}

	if len(ch) != constants.EventChannelBuffer {
		t.Errorf("expected %d buffered events, got %d", constants.EventChannelBuffer, len(ch))
	}
}

func TestScanJob_FinishOnlyOnce(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("job-1", "/ref.png", "/photos", 0)

	if !job.finish(JobStatusFailed, "boom", nil) {
		t.Fatal("expected first finish to succeed")
	}
	if job.finish(JobStatusCompleted, "", &ranker.Result{}) {
		t.Error("expected second finish to be ignored")
	}

	view := job.View()
	if view.Status != JobStatusFailed || view.Error != "boom" {
		t.Errorf("unexpected view after double finish: %+v", view)
	}
	if view.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestScanJob_SetProgressIgnoresStaleReports(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("job-1", "/ref.png", "/photos", 0)

	job.setProgress(ranker.Progress{Current: 3, Total: 4})
	job.setProgress(ranker.Progress{Current: 2, Total: 4})

	view := job.View()
	if view.Processed != 3 || view.Progress != 75 {
		t.Errorf("expected 3 processed at 75%%, got %d at %d%%", view.Processed, view.Progress)
	}
}

func TestScanJob_CancelSendsEvent(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("job-1", "/ref.png", "/photos", 0)
	cancelled := false
	job.setCancel(func() { cancelled = true })
	ch := job.AddListener()

	if !job.Cancel() {
		t.Error("expected Cancel to report true for a pending job")
	}

	if !cancelled {
		t.Error("expected cancel func to be called")
	}
	select {
	case ev := <-ch:
		if ev.Type != "cancelled" {
			t.Errorf("expected cancelled event, got %s", ev.Type)
		}
	default:
		t.Error("expected cancelled event")
	}

	// cancelling a finished job is a no-op
	if job.Cancel() {
		t.Error("expected Cancel to report false for a finished job")
	}
	if len(ch) != 0 {
		t.Error("expected no second cancelled event")
	}
}

func TestJobManager_CreateGetDelete(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("job-1", "/ref.png", "/photos", 5)

	if got := jm.GetJob("job-1"); got != job {
		t.Error("expected GetJob to return the created job")
	}
	if job.GetStatus() != JobStatusPending {
		t.Errorf("expected pending, got %s", job.GetStatus())
	}
	if job.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", job.TopK)
	}

	jm.DeleteJob("job-1")
	if jm.GetJob("job-1") != nil {
		t.Error("expected job to be deleted")
	}
}

func TestJobManager_ListNewestFirst(t *testing.T) {
	jm := NewJobManager()
	older := jm.CreateJob("older", "/ref.png", "/photos", 0)
	older.StartedAt = time.Now().Add(-time.Hour)
	jm.CreateJob("newer", "/ref.png", "/photos", 0)

	jobs := jm.ListJobs()
	if len(jobs) != 2 || jobs[0].ID != "newer" {
		t.Errorf("expected newer job first, got %v", jobs)
	}
}

func TestJobManager_EvictsOldestFinishedJobs(t *testing.T) {
	jm := NewJobManager()
	base := time.Now().Add(-time.Hour)

	running := jm.CreateJob("running", "/ref.png", "/photos", 0)
	running.StartedAt = base.Add(-time.Hour)
	for i := range constants.MaxScanJobs {
		job := jm.CreateJob(fmt.Sprintf("done-%02d", i), "/ref.png", "/photos", 0)
		job.StartedAt = base.Add(time.Duration(i) * time.Second)
		job.finish(JobStatusCompleted, "", nil)
	}

	jm.CreateJob("latest", "/ref.png", "/photos", 0)

	if n := len(jm.ListJobs()); n != constants.MaxScanJobs {
		t.Errorf("expected %d jobs kept, got %d", constants.MaxScanJobs, n)
	}
	if jm.GetJob("running") == nil {
		t.Error("unfinished jobs must never be evicted")
	}
	if jm.GetJob("done-00") != nil {
		t.Error("expected oldest finished job to be evicted")
	}
	if jm.GetJob("latest") == nil {
		t.Error("expected newest job to be kept")
	}
}
