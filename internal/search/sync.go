package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/store"
)

// Sync applies task events to the index until ctx is done or events closes.
// Indexing failures are logged and skipped.
func (idx *Index) Sync(ctx context.Context, events <-chan store.TaskEvent, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			idx.apply(ev, log)
		}
	}
}

func (idx *Index) apply(ev store.TaskEvent, log *zap.Logger) {
	var err error
	switch ev.Type {
	case store.EventCreated, store.EventUpdated:
		if ev.Task != nil {
			err = idx.IndexTask(ev.Task)
		}
	case store.EventDeleted:
		err = idx.DeleteTask(ev.TaskID)
	}
	if err != nil {
		log.Warn("search index update failed",
			zap.String("event", ev.Type.String()),
			zap.Int64("task_id", ev.TaskID),
			zap.Error(err))
	}
}
