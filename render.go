package worldsync

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RenderSupervisor runs the external map renderer to completion, publishing
// progress as it goes. No renderer process outlives a call to Run.
type RenderSupervisor struct {
	name        string
	args        []string
	progress    *regexp.Regexp
	groups      [3]int
	completion  string
	stopTimeout time.Duration
	log         *zap.Logger
}

type RenderResult struct {
	PID       int
	Completed bool
	Progress  *RenderProgress
	Duration  time.Duration
}

func NewRenderSupervisor(cfg *RendererConfigBlock, log *zap.Logger) (*RenderSupervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("renderer command is empty")
	}

	pattern, err := regexp.Compile(cfg.ProgressPattern)
	if err != nil {
		return nil, fmt.Errorf("compile progress pattern: %w", err)
	}

	groups := [3]int{pattern.SubexpIndex("map"), pattern.SubexpIndex("percent"), pattern.SubexpIndex("eta")}
	if groups[0] < 0 || groups[1] < 0 || groups[2] < 0 {
		if pattern.NumSubexp() < 3 {
			return nil, fmt.Errorf("progress pattern needs map, percent and eta groups: %q", cfg.ProgressPattern)
		}
		groups = [3]int{1, 2, 3}
	}

	args := append([]string{}, cfg.Command[1:]...)
	args = append(args, "-c", cfg.ConfigDir)
	if cfg.Version != "" {
		args = append(args, "-v", cfg.Version)
	}
	args = append(args, "-n", cfg.ModsDir, "-m", strings.Join(cfg.Maps, ","), "-w", "-r")

	return &RenderSupervisor{
		name:        cfg.Command[0],
		args:        args,
		progress:    pattern,
		groups:      groups,
		completion:  cfg.CompletionPhrase,
		stopTimeout: cfg.StopTimeout(),
		log:         log.Named("renderer"),
	}, nil
}

// Args is the argument list passed to the renderer binary.
func (s *RenderSupervisor) Args() []string {
	return append([]string{}, s.args...)
}

// ParseProgress extracts a progress snapshot from one output line.
func (s *RenderSupervisor) ParseProgress(line string) (RenderProgress, bool) {
	m := s.progress.FindStringSubmatch(line)
	if m == nil {
		return RenderProgress{}, false
	}

	percent, err := strconv.ParseFloat(m[s.groups[1]], 64)
	if err != nil || percent < 0 || percent > 100 {
		return RenderProgress{}, false
	}

	return RenderProgress{
		Map:     m[s.groups[0]],
		Percent: percent,
		ETA:     strings.TrimSpace(m[s.groups[2]]),
	}, true
}

// Run starts the renderer and reads its combined output line by line until the
// completion phrase shows up or the output ends. On completion the process is
// asked to stop and killed if it does not exit within the stop timeout.
func (s *RenderSupervisor) Run(onProgress func(RenderProgress)) (*RenderResult, error) {
	start := time.Now()

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("renderer output pipe: %w", err)
	}
	defer r.Close()

	cmd := exec.Command(s.name, s.args...)
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		w.Close()
		return nil, fmt.Errorf("start renderer: %w", err)
	}
	w.Close()

	result := &RenderResult{PID: cmd.Process.Pid}
	s.log.Info("renderer started",
		zap.Int("pid", result.PID),
		zap.String("cmd", s.name),
		zap.String("args", strings.Join(s.args, " ")),
	)

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	reaped := false
	defer func() {
		if !reaped {
			s.log.Warn("killing renderer", zap.Int("pid", result.PID))
			killProcess(cmd)
			<-exited
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.log.Debug("renderer output", zap.String("line", line))

		if progress, ok := s.ParseProgress(line); ok {
			p := progress
			result.Progress = &p
			if onProgress != nil {
				onProgress(progress)
			}
		}

		if s.completion != "" && strings.Contains(line, s.completion) {
			result.Completed = true
			break
		}
	}

	if err := scanner.Err(); err != nil && !result.Completed {
		return result, fmt.Errorf("read renderer output: %w", err)
	}

	if result.Completed {
		if err := terminateProcess(cmd); err != nil {
			s.log.Debug("renderer terminate signal failed", zap.Error(err))
		}
		if ok, _ := s.waitExit(exited); !ok {
			s.log.Warn("renderer ignored stop request, killing", zap.Int("pid", result.PID))
			killProcess(cmd)
			<-exited
		}
		reaped = true
	} else {
		ok, exitErr := s.waitExit(exited)
		if !ok {
			return result, fmt.Errorf("renderer did not exit within %s after closing its output", s.stopTimeout)
		}
		reaped = true

		if exitErr != nil {
			return result, fmt.Errorf("renderer exited before completion: %w", exitErr)
		}
		s.log.Warn("renderer output ended without completion phrase", zap.Int("pid", result.PID))
	}
	result.Duration = time.Since(start)

	s.log.Info("renderer finished",
		zap.Int("pid", result.PID),
		zap.Bool("completed", result.Completed),
		zap.Int64("duration_ms", result.Duration.Milliseconds()),
	)
	return result, nil
}

// waitExit waits for the process to exit for up to the stop timeout. ok is
// false if it did not, leaving the kill to the caller.
func (s *RenderSupervisor) waitExit(exited <-chan error) (bool, error) {
	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case err := <-exited:
		return true, err
	case <-timer.C:
		return false, nil
	}
}
