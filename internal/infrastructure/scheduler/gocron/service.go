package gocronscheduler

import (
	"fmt"
	"time"

	gocronlib "github.com/go-co-op/gocron"

	"github.com/vaultd-labs/vaultd/internal/core/ports"
)

type service struct {
	scheduler *gocronlib.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocronlib.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) AddNow(delay int64) int64 {
	return time.Now().Add(time.Duration(delay) * time.Second).Unix()
}

func (s *service) ScheduleTaskOnce(at int64, task func()) error {
	delay := at - time.Now().Unix()
	if delay < 0 {
		return fmt.Errorf("cannot schedule task in the past")
	}

	_, err := s.scheduler.Every(int(delay)).Seconds().WaitForSchedule().LimitRunsTo(1).Do(task)
	return err
}

func (s *service) ScheduleTaskRepeated(interval int64, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	_, err := s.scheduler.Every(int(interval)).Seconds().Do(task)
	return err
}
