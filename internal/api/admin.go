package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mangamirror/internal/scheduler"
)

// Admin exposes the maintenance trigger endpoints. Each trigger starts
// the requested pass in the background; a 409 means another pass already
// holds the scheduler gate.
type Admin struct {
	Sched *scheduler.Scheduler
}

func NewAdmin(s *scheduler.Scheduler) *Admin {
	return &Admin{Sched: s}
}

func (a *Admin) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", a.trigger(scheduler.PassSync))
	rg.POST("/reconcile", a.trigger(scheduler.PassReconcile))
	rg.POST("/migrate-slugs", a.trigger(scheduler.PassMigrateSlugs))
	rg.POST("/check-domain", a.trigger(scheduler.PassCheckDomain))
	rg.POST("/deep-clean", a.trigger(scheduler.PassDeepClean))
}

func (a *Admin) trigger(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Sched.Trigger(name); err != nil {
			if errors.Is(err, scheduler.ErrBusy) {
				c.JSON(http.StatusConflict, gin.H{"error": "maintenance pass already running"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "started", "pass": name})
	}
}
