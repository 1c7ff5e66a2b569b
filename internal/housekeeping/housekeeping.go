// Package housekeeping runs the two fixed background jobs the core
// needs outside of message dispatch: periodic registry-stats logging
// and a startup/hourly sweep for plugin workspaces a crashed previous
// run left behind.
//
// Grounded on internal/plugins/scheduler.go's single shared cron.Cron
// instance wrapped by a thin per-owner scheduler; simplified here to
// two fixed jobs rather than an open-ended per-plugin API, since
// nothing in this core schedules arbitrary jobs at runtime.
package housekeeping

import (
	"context"
	"os"
	"path/filepath"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/registry"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	statsSchedule = "@every 1m"
	sweepSchedule = "@every 1h"
)

// Housekeeper owns the shared cron instance driving the two jobs.
type Housekeeper struct {
	cron *cron.Cron
	reg  *registry.Registry
	lnch *launcher.Launcher
	log  *zerolog.Logger
}

// New creates a Housekeeper. Call Start to begin scheduling; it does
// not run any job synchronously at construction time.
func New(reg *registry.Registry, lnch *launcher.Launcher) *Housekeeper {
	return &Housekeeper{
		cron: cron.New(),
		reg:  reg,
		lnch: lnch,
		log:  logger.Housekeeping(),
	}
}

// Start runs an immediate orphan sweep (covering workspaces a crashed
// previous process left on disk before this one had a chance to
// schedule anything), then registers both recurring jobs and starts
// the cron scheduler.
func (hk *Housekeeper) Start(ctx context.Context) {
	hk.sweepOrphans()

	if _, err := hk.cron.AddFunc(statsSchedule, hk.logStats); err != nil {
		hk.log.Warn().Err(err).Msg("failed to schedule registry stats job")
	}
	if _, err := hk.cron.AddFunc(sweepSchedule, hk.sweepOrphans); err != nil {
		hk.log.Warn().Err(err).Msg("failed to schedule workspace sweep job")
	}
	hk.cron.Start()
}

// Stop halts the cron scheduler, waiting for any in-flight job to
// finish.
func (hk *Housekeeper) Stop() {
	<-hk.cron.Stop().Done()
}

func (hk *Housekeeper) logStats() {
	defer hk.recoverPanic("registry stats")
	counts := make(map[string]int)
	for _, id := range hk.reg.AIDs() {
		h, ok := hk.reg.Get(id)
		if !ok {
			continue
		}
		counts[h.State().String()]++
	}
	hk.log.Info().
		Int("applications", hk.reg.Len()).
		Interface("states", counts).
		Msg("registry snapshot")
}

// sweepOrphans removes every directory under the launcher's workspace
// root whose AID is not currently registered. It tolerates a missing
// workspace root (nothing launched yet) and logs, rather than fails
// on, any single directory it cannot remove.
func (hk *Housekeeper) sweepOrphans() {
	defer hk.recoverPanic("workspace sweep")

	root := hk.lnch.WorkspaceRoot()
	pluginDirs, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			hk.log.Warn().Err(err).Str("root", root).Msg("failed to read workspace root")
		}
		return
	}

	known := make(map[aid.AID]struct{})
	for _, id := range hk.reg.AIDs() {
		known[id] = struct{}{}
	}

	removed := 0
	for _, pluginDir := range pluginDirs {
		if !pluginDir.IsDir() {
			continue
		}
		pluginPath := filepath.Join(root, pluginDir.Name())
		aidDirs, err := os.ReadDir(pluginPath)
		if err != nil {
			hk.log.Warn().Err(err).Str("path", pluginPath).Msg("failed to read plugin workspace directory")
			continue
		}
		for _, aidDir := range aidDirs {
			if !aidDir.IsDir() {
				continue
			}
			id, err := aid.Parse(aidDir.Name())
			orphan := err != nil
			if err == nil {
				_, ok := known[id]
				orphan = !ok
			}
			if !orphan {
				continue
			}
			path := filepath.Join(pluginPath, aidDir.Name())
			if err := os.RemoveAll(path); err != nil {
				hk.log.Warn().Err(err).Str("path", path).Msg("failed to remove orphaned plugin workspace")
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		hk.log.Info().Int("removed", removed).Msg("swept orphaned plugin workspaces")
	}
}

func (hk *Housekeeper) recoverPanic(job string) {
	if r := recover(); r != nil {
		hk.log.Warn().Interface("panic", r).Str("job", job).Msg("housekeeping job recovered from a panic")
	}
}
