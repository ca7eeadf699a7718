package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hazuki-games/steelduel/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueDepth = 1024
	batchMax   = 100
	flushEvery = 2 * time.Second
)

// AuditEntry holds one audit event to be logged.
type AuditEntry struct {
	TraceID    string
	AccountID  *int64
	Action     string
	TreeName   string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

func (e AuditEntry) record() *model.AuditLog {
	reqJSON, _ := json.Marshal(e.Request)
	respJSON, _ := json.Marshal(e.Response)
	return &model.AuditLog{
		TraceID:    e.TraceID,
		AccountID:  e.AccountID,
		Action:     e.Action,
		TreeName:   e.TreeName,
		Request:    datatypes.JSON(reqJSON),
		Response:   datatypes.JSON(respJSON),
		Error:      e.Error,
		IP:         e.IP,
		DurationMs: e.DurationMs,
	}
}

// Service writes audit entries to the database off the request path,
// batching them so a burst of tree edits costs one insert.
type Service struct {
	db       *gorm.DB
	queue    chan *model.AuditLog
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
	log      *zap.Logger
}

// New creates an audit Service and starts its background writer.
func New(db *gorm.DB, log *zap.Logger) *Service {
	svc := &Service{
		db:    db,
		queue: make(chan *model.AuditLog, queueDepth),
		done:  make(chan struct{}),
		log:   log,
	}
	svc.wg.Add(1)
	go svc.writer()
	return svc
}

// Log enqueues an entry. When the queue is full the entry is dropped
// rather than stalling the request handler.
func (svc *Service) Log(entry AuditEntry) {
	select {
	case svc.queue <- entry.record():
	default:
		svc.log.Warn("audit queue full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Stop drains the queue and blocks until the writer has flushed it.
func (svc *Service) Stop(_ context.Context) {
	svc.doneOnce.Do(func() { close(svc.done) })
	svc.wg.Wait()
}

func (svc *Service) writer() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchMax)
	for {
		select {
		case rec := <-svc.queue:
			batch = append(batch, rec)
			if len(batch) >= batchMax {
				batch = svc.flush(batch)
			}
		case <-ticker.C:
			batch = svc.flush(batch)
		case <-svc.done:
			svc.flush(svc.drain(batch))
			return
		}
	}
}

// drain empties whatever is still queued into batch without blocking.
func (svc *Service) drain(batch []*model.AuditLog) []*model.AuditLog {
	for {
		select {
		case rec := <-svc.queue:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

// flush writes the batch in one insert and returns the reset slice.
func (svc *Service) flush(batch []*model.AuditLog) []*model.AuditLog {
	if len(batch) == 0 {
		return batch
	}
	if err := svc.db.Create(&batch).Error; err != nil {
		svc.log.Error("audit batch write failed", zap.Error(err))
	}
	return batch[:0]
}
