package errors

import (
	"google.golang.org/grpc/codes"
)

// Common errors (Service: 00).
var (
	// ErrPanic reports a recovered panic.
	ErrPanic = NewInternalError(ServiceCommon, 2).
		Message("Service panic", "服务崩溃").
		MustBuild()

	// ErrDBConnection reports that the policy store could not be opened.
	ErrDBConnection = NewDatabaseError(ServiceCommon, 1).
		GRPC(codes.Unavailable).
		Message("Database connection failed", "数据库连接失败").
		MustBuild()
)
