package bot

import (
	"sync"

	"go.uber.org/zap"
)

// mailboxBuffer bounds how many undispatched updates one user can have
// queued; a full mailbox blocks the polling loop until the user's
// worker catches up.
const mailboxBuffer = 16

// dispatcher serializes update handling per user. Each active user has
// one worker goroutine draining a mailbox in arrival order, so a slow
// photo download cannot let a later fragment overtake it, and users
// never block each other. Workers exit when their mailbox runs dry and
// are recreated on demand.
type dispatcher struct {
	mu     sync.Mutex
	boxes  map[int64]*mailbox
	logger *zap.Logger
}

type mailbox struct {
	jobs    chan func()
	pending int
}

func newDispatcher(logger *zap.Logger) *dispatcher {
	return &dispatcher{
		boxes:  make(map[int64]*mailbox),
		logger: logger,
	}
}

// enqueue queues a job on the user's mailbox, starting a worker when
// the user has none.
func (d *dispatcher) enqueue(userID int64, job func()) {
	d.mu.Lock()
	box, ok := d.boxes[userID]
	if !ok {
		box = &mailbox{jobs: make(chan func(), mailboxBuffer)}
		d.boxes[userID] = box
		go d.drain(userID, box)
	}
	box.pending++
	d.mu.Unlock()

	box.jobs <- job
}

// drain runs the user's jobs one at a time. The worker removes its
// mailbox and exits only when no enqueued job remains, so a job can
// never be stranded on a mailbox without a worker.
func (d *dispatcher) drain(userID int64, box *mailbox) {
	for {
		d.run(userID, <-box.jobs)

		d.mu.Lock()
		box.pending--
		if box.pending == 0 {
			delete(d.boxes, userID)
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

// run confines a panicking handler to the job that raised it.
func (d *dispatcher) run(userID int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("recovered panic in update handler",
				zap.Any("panic", r),
				zap.Int64("user_id", userID))
		}
	}()
	job()
}

// active reports how many users currently have a live mailbox.
func (d *dispatcher) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.boxes)
}
