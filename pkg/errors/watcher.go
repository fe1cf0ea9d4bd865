package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Policy watcher errors (Service: 30).
var (
	// ErrWatcherConnection is returned when the watcher cannot reach or
	// authenticate to the notification backend.
	ErrWatcherConnection = NewDatabaseError(ServiceWatcher, 1).
		GRPC(codes.Unavailable).
		HTTP(http.StatusServiceUnavailable).
		Message("Watcher connection failed", "监听器连接数据库失败").
		MustBuild()

	// ErrWatcherPublish is returned when the connection succeeded but the
	// notification could not be published.
	ErrWatcherPublish = NewDatabaseError(ServiceWatcher, 2).
		Message("Policy update notification failed", "策略更新通知发送失败").
		MustBuild()

	// ErrWatcherSubscribe is returned when the channel subscription could not
	// be established on an open connection.
	ErrWatcherSubscribe = NewDatabaseError(ServiceWatcher, 3).
		Message("Channel subscription failed", "订阅通知频道失败").
		MustBuild()

	// ErrSubscriberLost reports that the background subscriber has exited and
	// its pipe reached end of stream.
	ErrSubscriberLost = NewNetworkError(ServiceWatcher, 1).
		Message("Subscriber lost", "订阅协程已退出").
		MustBuild()

	// ErrWatcherClosed is returned when a closed watcher is polled.
	ErrWatcherClosed = NewInternalError(ServiceWatcher, 1).
		Message("Watcher closed", "监听器已关闭").
		MustBuild()

	// ErrWatcherConfig reports an invalid watcher configuration.
	ErrWatcherConfig = NewConfigError(ServiceWatcher, 1).
		Message("Invalid watcher configuration", "监听器配置无效").
		MustBuild()

	// ErrUnknownBackend reports an unsupported notification backend name.
	ErrUnknownBackend = NewRequestError(ServiceWatcher, 1).
		Message("Unknown notification backend", "未知的通知后端").
		MustBuild()
)
