package errors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// ErrnoBuilder builds and registers an Errno.
//
//	var ErrSubscriberLost = errors.NewNetworkError(errors.ServiceWatcher, 1).
//	    Message("Subscriber lost", "订阅协程已退出").
//	    MustBuild()
type ErrnoBuilder struct {
	errno Errno
}

// NewBuilder starts an Errno for the given code parts. It panics when a part
// is out of range.
func NewBuilder(service, category, sequence int) *ErrnoBuilder {
	if service < 0 || service > 99 || category < 0 || category > 99 || sequence < 0 || sequence > 999 {
		panic(fmt.Sprintf("invalid errno parts %02d/%02d/%03d", service, category, sequence))
	}
	return &ErrnoBuilder{errno: Errno{
		Code:     MakeCode(service, category, sequence),
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
	}}
}

func (b *ErrnoBuilder) HTTP(status int) *ErrnoBuilder {
	b.errno.HTTP = status
	return b
}

func (b *ErrnoBuilder) GRPC(code codes.Code) *ErrnoBuilder {
	b.errno.GRPCCode = code
	return b
}

// Message sets the English and Chinese messages.
func (b *ErrnoBuilder) Message(en, zh string) *ErrnoBuilder {
	b.errno.MessageEN = en
	b.errno.MessageZH = zh
	return b
}

// Build registers the Errno. It fails without an English message or when the
// code is already registered.
func (b *ErrnoBuilder) Build() (*Errno, error) {
	if b.errno.MessageEN == "" {
		return nil, fmt.Errorf("errno %d: English message is required", b.errno.Code)
	}
	e := b.errno.clone()
	if err := register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// MustBuild is Build that panics on error.
func (b *ErrnoBuilder) MustBuild() *Errno {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// NewRequestError starts a 400 / InvalidArgument error.
func NewRequestError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryRequest, sequence).
		HTTP(http.StatusBadRequest).
		GRPC(codes.InvalidArgument)
}

// NewInternalError starts a 500 / Internal error.
func NewInternalError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryInternal, sequence)
}

// NewDatabaseError starts a 500 / Internal database error.
func NewDatabaseError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryDatabase, sequence)
}

// NewNetworkError starts a 503 / Unavailable error.
func NewNetworkError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryNetwork, sequence).
		HTTP(http.StatusServiceUnavailable).
		GRPC(codes.Unavailable)
}

// NewConfigError starts a 500 / Internal configuration error.
func NewConfigError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryConfig, sequence)
}
