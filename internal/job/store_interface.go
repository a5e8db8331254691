package job

// JobStore defines the interface for job storage (both in-memory and persistent)
type JobStore interface {
	Add(j *Job) error
	Get(id string) (Job, bool)
	List(limit, offset int, status string) ([]Job, int)
	SetTitle(id, title string) (Job, error)
	SetProgress(id string, pct float64) (Job, bool, error)
	MarkProcessing(id string) (Job, error)
	Complete(id, filename string, size int64, downloadURL string) (Job, error)
	Fail(id, errMsg string) (Job, error)
	Delete(id string) error
	Stats() (pending, active, completed, failed int)
}
