// Package signal blocks the main goroutine until the process is asked to stop.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// WaitForShutdown 监听退出信号（SIGINT/SIGTERM）或 ctx 结束，然后执行 shutdownFunc。
// shutdownFunc is not bounded by a timeout: a push cycle in flight is
// allowed to finish.
func WaitForShutdown(ctx context.Context, logger *zap.Logger, shutdownFunc func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("service running, waiting for SIGINT/SIGTERM...")

	// 阻塞等待信号
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context done, shutting down", zap.Error(ctx.Err()))
	}

	if shutdownFunc == nil {
		return nil
	}
	if err := shutdownFunc(); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("shutdown completed")
	return nil
}
