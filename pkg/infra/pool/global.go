package pool

import (
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// 全局池管理器
var (
	globalManager   *Manager
	globalManagerMu sync.Mutex
)

// InitGlobal 初始化全局池管理器并注册标准池, 重复调用无副作用
func InitGlobal() error {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager != nil {
		return nil
	}

	manager := NewManager()
	pools := []struct {
		typ    Type
		config *Config
	}{
		{DefaultPool, DefaultPoolConfig()},
		{CallbackPool, CallbackPoolConfig()},
		{BackgroundPool, BackgroundPoolConfig()},
	}
	for _, p := range pools {
		if err := manager.Register(string(p.typ), p.typ, p.config); err != nil {
			_ = manager.Close()
			return err
		}
	}

	globalManager = manager
	logger.Debugw("全局池管理器初始化完成")
	return nil
}

// getGlobal 获取全局池管理器, 未初始化时自动初始化
func getGlobal() (*Manager, error) {
	if err := InitGlobal(); err != nil {
		return nil, err
	}

	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()
	if globalManager == nil {
		return nil, ErrManagerNotInitialized
	}
	return globalManager, nil
}

// CloseGlobal 关闭全局池管理器, 最多等待 timeout 让运行中的任务结束
func CloseGlobal(timeout time.Duration) error {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager == nil {
		return nil
	}
	err := globalManager.ReleaseAllTimeout(timeout)
	globalManager = nil

	logger.Debugw("全局池管理器已关闭", "timeout", timeout.String())
	return err
}

// Submit 提交任务到默认池
func Submit(task func()) error {
	return SubmitToType(DefaultPool, task)
}

// SubmitToType 提交任务到指定类型的池
func SubmitToType(poolType Type, task func()) error {
	mgr, err := getGlobal()
	if err != nil {
		return err
	}
	return mgr.Submit(string(poolType), task)
}

// StatsGlobal returns statistics for all pools.
func StatsGlobal() map[string]Stats {
	mgr, err := getGlobal()
	if err != nil {
		return nil
	}
	return mgr.Stats()
}
