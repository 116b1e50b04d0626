package ports

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleTaskOnce runs the task once at the given unix time in seconds.
	ScheduleTaskOnce(at int64, task func()) error
	// ScheduleTaskRepeated runs the task every interval seconds until Stop.
	ScheduleTaskRepeated(interval int64, task func()) error
	// AddNow returns the unix time in seconds after the given delay.
	AddNow(delay int64) int64
}
