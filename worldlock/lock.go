// Package worldlock serializes writers of a world directory across processes
// with an advisory lock file.
package worldlock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

type Lock struct {
	path string
	log  *zap.Logger
}

func New(path string, log *zap.Logger) *Lock {
	return &Lock{
		path: path,
		log:  log.Named("worldlock"),
	}
}

func (l *Lock) Path() string {
	return l.path
}

// With blocks until the lock file can be claimed, runs fn and releases the
// lock when fn returns or panics. There is no acquisition timeout.
func (l *Lock) With(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(l.path), os.ModePerm); err != nil {
		return fmt.Errorf("lock dir: %w", err)
	}

	fl := flock.New(l.path)
	start := time.Now()
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire %s: %w", l.path, err)
	}
	l.log.Debug("acquired", zap.String("path", l.path), zap.Duration("waited", time.Since(start)))

	defer func() {
		if err := fl.Unlock(); err != nil {
			l.log.Error("release failed", zap.String("path", l.path), zap.Error(err))
			return
		}
		l.log.Debug("released", zap.String("path", l.path))
	}()

	return fn()
}
