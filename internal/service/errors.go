package service

import (
	"errors"
	"fmt"
)

// 上游错误分类：
// 超时和网络错误在详情抓取层有界重试，列表抓取层跳过不重试；
// 非 2xx 响应与超时同等对待；转换错误不重试，直接计入单项失败
var (
	// ErrUpstreamTimeout TMDB 在配置的超时时间内未响应
	ErrUpstreamTimeout = errors.New("TMDB 请求超时")

	// ErrUpstreamUnreachable 网络层错误，无法连接 TMDB
	ErrUpstreamUnreachable = errors.New("无法连接 TMDB")
)

// UpstreamError TMDB 返回非 2xx 状态码
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("TMDB 返回状态码 %d: %s", e.StatusCode, e.Body)
}

// MappingError 外部记录缺少必需字段，无法转换
type MappingError struct {
	TMDBID int
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("电影 %d 数据转换失败: %s", e.TMDBID, e.Reason)
}
