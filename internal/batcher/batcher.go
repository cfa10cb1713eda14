package batcher

import (
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"calbot/internal/models"
)

// Flush is the unit handed downstream: one user's accumulated
// fragments combined into a single extraction request. The receiver
// owns ImagePath and is responsible for deleting it.
type Flush struct {
	OwnerID   int64
	Text      string
	ImagePath string
	Anchor    models.Inbound
}

// Handler receives flushed batches. A returned error is logged by the
// batcher and never propagates into the timer goroutine.
type Handler interface {
	HandleBatch(f Flush) error
}

type pendingBatch struct {
	ownerID    int64
	textLines  []string
	imagePaths []string
	timer      *time.Timer
	createdAt  time.Time
	anchor     models.Inbound
}

func (b *pendingBatch) size() int {
	return len(b.textLines) + len(b.imagePaths)
}

// Batcher coalesces rapid-fire fragments from one user into a single
// downstream unit, tolerating forwarded multi-party conversations.
// Each user has at most one live batch and one live debounce timer; a
// size ceiling bounds batch cost when a long conversation is
// forwarded in one burst.
type Batcher struct {
	mu       sync.Mutex
	batches  map[int64]*pendingBatch
	debounce time.Duration
	maxItems int
	handler  Handler
	logger   *zap.Logger
}

func New(debounce time.Duration, maxItems int, handler Handler, logger *zap.Logger) *Batcher {
	return &Batcher{
		batches:  make(map[int64]*pendingBatch),
		debounce: debounce,
		maxItems: maxItems,
		handler:  handler,
		logger:   logger,
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// senderName resolves the display name for a fragment: forwarded-from
// identity first, then a bare forwarded display name, then the direct
// sender.
func senderName(in models.Inbound) string {
	if in.ForwardedFrom != nil && in.ForwardedFrom.Name != "" {
		return in.ForwardedFrom.Name
	}
	if in.ForwardedName != "" {
		return in.ForwardedName
	}
	if in.From.Name != "" {
		return in.From.Name
	}
	return "Unknown"
}

// senderIdentity resolves the identity used for owner tagging: the
// forwarded origin when known, the direct sender for an unforwarded
// fragment. A display-name-only forward has no identity at all.
func senderIdentity(in models.Inbound) (int64, bool) {
	if in.ForwardedFrom != nil {
		return in.ForwardedFrom.ID, true
	}
	if in.ForwardedName != "" {
		return 0, false
	}
	return in.From.ID, true
}

// Submit adds one fragment to the submitting user's batch, creating
// the batch on the first fragment. Every fragment re-arms the debounce
// timer; reaching the size ceiling flushes immediately instead. A
// fragment with neither text nor an image is a no-op.
func (b *Batcher) Submit(in models.Inbound) {
	text := strings.TrimSpace(whitespace.ReplaceAllString(in.Text, " "))
	if text == "" && in.ImagePath == "" {
		return
	}

	b.mu.Lock()
	batch, ok := b.batches[in.From.ID]
	if !ok {
		ownerID, known := senderIdentity(in)
		if !known {
			// A batch opened by a hidden forward still belongs to the
			// chat user whose calendar this is.
			ownerID = in.From.ID
		}
		batch = &pendingBatch{
			ownerID:   ownerID,
			createdAt: time.Now(),
			anchor:    in,
		}
		b.batches[in.From.ID] = batch
	}

	if text != "" {
		name := senderName(in)
		if id, known := senderIdentity(in); known && id == batch.ownerID {
			name += " (calendar owner)"
		}
		batch.textLines = append(batch.textLines, name+": "+text)
	}
	if in.ImagePath != "" {
		batch.imagePaths = append(batch.imagePaths, in.ImagePath)
	}

	if batch.timer != nil {
		batch.timer.Stop()
		batch.timer = nil
	}

	if batch.size() >= b.maxItems {
		b.mu.Unlock()
		b.flush(in.From.ID)
		return
	}

	userID := in.From.ID
	batch.timer = time.AfterFunc(b.debounce, func() { b.flush(userID) })
	b.mu.Unlock()
}

// flush finalizes the user's batch. Removing the batch from the live
// map before anything else guarantees at-most-once delivery when a
// timer fire races a size-triggered flush: the loser observes an
// absent batch and no-ops.
func (b *Batcher) flush(userID int64) {
	b.mu.Lock()
	batch, ok := b.batches[userID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.batches, userID)
	if batch.timer != nil {
		batch.timer.Stop()
		batch.timer = nil
	}
	b.mu.Unlock()

	if batch.size() == 0 {
		b.logger.Debug("dropping empty batch", zap.Int64("user_id", userID))
		return
	}

	imagePath := ""
	if len(batch.imagePaths) > 0 {
		// The extraction service accepts at most one image per call;
		// the rest are discarded unused.
		imagePath = batch.imagePaths[0]
		for _, extra := range batch.imagePaths[1:] {
			if err := os.Remove(extra); err != nil {
				b.logger.Warn("failed to remove extra image",
					zap.Error(err),
					zap.String("path", extra))
			}
		}
	}

	b.logger.Info("flushing batch",
		zap.Int64("user_id", userID),
		zap.Int("lines", len(batch.textLines)),
		zap.Int("images", len(batch.imagePaths)),
		zap.Duration("age", time.Since(batch.createdAt)))

	f := Flush{
		OwnerID:   batch.ownerID,
		Text:      strings.Join(batch.textLines, "\n"),
		ImagePath: imagePath,
		Anchor:    batch.anchor,
	}

	if err := b.handler.HandleBatch(f); err != nil {
		b.logger.Error("batch handler failed",
			zap.Error(err),
			zap.Int64("user_id", userID))
		if imagePath != "" {
			os.Remove(imagePath)
		}
	}
}

// Pending reports how many users currently have a live batch.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}
