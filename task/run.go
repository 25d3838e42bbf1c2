package task

import (
	"context"
	"time"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/runtime"
	xmtime "github.com/mensylisir/xmadmin/time"
)

// Run initializes, executes and post-processes t with a task-scoped logger.
// Post always runs once Init has succeeded.
func Run(ctx context.Context, rt runtime.Runtime, t Task) error {
	log := rt.Logger().WithField(common.TaskName, t.Name())
	if err := t.Init(rt, log); err != nil {
		log.WithError(err).Error("task initialization failed")
		if postErr := t.Post(rt, log, err); postErr != nil {
			log.WithError(postErr).Warn("task post-processing failed")
		}
		return err
	}

	started := time.Now()
	execErr := t.Execute(ctx, rt, log)
	if postErr := t.Post(rt, log, execErr); postErr != nil {
		log.WithError(postErr).Warn("task post-processing failed")
		if execErr == nil {
			execErr = postErr
		}
	}

	elapsed := xmtime.ShortDur(time.Since(started).Round(time.Millisecond))
	if execErr != nil {
		log.WithField("duration", elapsed).Error("task failed")
		return execErr
	}
	log.WithField("duration", elapsed).Info("task finished")
	return nil
}
