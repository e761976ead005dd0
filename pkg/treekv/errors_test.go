package treekv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	client "go.etcd.io/etcd/client/v2"
)

// TestClassifyError_EtcdCodes 测试 etcd v2 错误码到封闭分类的映射。
func TestClassifyError_EtcdCodes(t *testing.T) {
	cases := []struct {
		name string
		code int
		want error
	}{
		{"key not found", client.ErrorCodeKeyNotFound, ErrKeyNotFound},
		{"not file", client.ErrorCodeNotFile, ErrNotFile},
		{"not dir", client.ErrorCodeNotDir, ErrNotDir},
		{"root read only", client.ErrorCodeRootROnly, ErrRootReadOnly},
		{"dir not empty", client.ErrorCodeDirNotEmpty, ErrDirNotEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := client.Error{Code: tc.code, Cause: "/some/key"}
			got := classifyError(in, false)
			if !errors.Is(got, tc.want) {
				t.Errorf("classifyError(code=%d) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
}

// TestClassifyError_TypeConflictUmbrella 测试细分哨兵同时匹配伞形分类。
func TestClassifyError_TypeConflictUmbrella(t *testing.T) {
	for _, code := range []int{client.ErrorCodeNotFile, client.ErrorCodeNotDir, client.ErrorCodeRootROnly} {
		got := classifyError(client.Error{Code: code}, false)
		if !IsNodeTypeConflict(got) {
			t.Errorf("classifyError(code=%d) = %v, want node type conflict", code, got)
		}
	}
}

// TestClassifyError_UnknownEtcdCode 测试未映射的错误码原样返回。
func TestClassifyError_UnknownEtcdCode(t *testing.T) {
	in := client.Error{Code: 999, Message: "mystery"}
	got := classifyError(in, false)
	var etcdErr client.Error
	if !errors.As(got, &etcdErr) || etcdErr.Code != 999 {
		t.Errorf("classifyError() = %v, want original etcd error", got)
	}
}

// TestClassifyError_DeadlineDisambiguation 测试同一个超时条件按语境消歧：
// 等待型读超时是监听到期，普通读超时是服务端不可达。
func TestClassifyError_DeadlineDisambiguation(t *testing.T) {
	got := classifyError(context.DeadlineExceeded, true)
	if !IsWatchTimeout(got) {
		t.Errorf("classifyError(deadline, wait=true) = %v, want watch timeout", got)
	}
	if IsConnectionFailed(got) {
		t.Errorf("classifyError(deadline, wait=true) = %v, must not be connection failed", got)
	}

	got = classifyError(context.DeadlineExceeded, false)
	if !IsConnectionFailed(got) {
		t.Errorf("classifyError(deadline, wait=false) = %v, want connection failed", got)
	}
	if IsWatchTimeout(got) {
		t.Errorf("classifyError(deadline, wait=false) = %v, must not be watch timeout", got)
	}
}

// TestClassifyError_CanceledPassthrough 测试主动取消不归入任何失败分类。
func TestClassifyError_CanceledPassthrough(t *testing.T) {
	got := classifyError(context.Canceled, true)
	if !errors.Is(got, context.Canceled) {
		t.Errorf("classifyError(canceled) = %v, want context.Canceled", got)
	}
	if IsWatchTimeout(got) || IsConnectionFailed(got) {
		t.Errorf("classifyError(canceled) = %v, must not be classified", got)
	}
}

// TestClassifyError_MalformedResponse 测试解析类错误归为响应异常。
func TestClassifyError_MalformedResponse(t *testing.T) {
	for _, in := range []error{client.ErrInvalidJSON, client.ErrEmptyBody} {
		got := classifyError(in, false)
		if !IsMalformedResponse(got) {
			t.Errorf("classifyError(%v) = %v, want malformed response", in, got)
		}
	}
}

// TestClassifyError_ConnectionErrors 测试各种传输层错误归为连接失败。
func TestClassifyError_ConnectionErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"cluster unavailable", client.ErrClusterUnavailable},
		{"no endpoints", client.ErrNoEndpoints},
		{"cluster error", &client.ClusterError{Errors: []error{errors.New("dial refused")}}},
		{"url error", &url.Error{Op: "Get", URL: "http://127.0.0.1:2379", Err: errors.New("refused")}},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err, false)
			if !IsConnectionFailed(got) {
				t.Errorf("classifyError(%v) = %v, want connection failed", tc.err, got)
			}
		})
	}
}

// TestClassifyError_UnclassifiedPassthrough 测试无法归类的错误原样返回。
func TestClassifyError_UnclassifiedPassthrough(t *testing.T) {
	in := errors.New("something else")
	if got := classifyError(in, false); !errors.Is(got, in) {
		t.Errorf("classifyError() = %v, want original error", got)
	}
}

// TestIsPredicates 测试判断函数对包装链与无关错误的行为。
func TestIsPredicates(t *testing.T) {
	wrapped := fmt.Errorf("op failed: %w", ErrKeyNotFound)
	if !IsKeyNotFound(wrapped) {
		t.Error("IsKeyNotFound(wrapped) = false, want true")
	}
	if IsKeyNotFound(ErrConnectionFailed) {
		t.Error("IsKeyNotFound(ErrConnectionFailed) = true, want false")
	}
	if IsKeyNotFound(nil) {
		t.Error("IsKeyNotFound(nil) = true, want false")
	}
	if !IsNodeTypeConflict(fmt.Errorf("set: %w", ErrNotFile)) {
		t.Error("IsNodeTypeConflict(wrapped ErrNotFile) = false, want true")
	}
	if !IsConnectionFailed(fmt.Errorf("%w: health check: %w", ErrConnectionFailed, context.DeadlineExceeded)) {
		t.Error("IsConnectionFailed(health check wrap) = false, want true")
	}
}
