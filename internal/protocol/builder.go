package protocol

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Outbound frame type tags.
const (
	TypeGetServerStatus = "get_server_status"
	TypeSubscribeEvent  = "subscribe_event"
	TypeGetMetaInfo     = "get_meta_info"
	TypeGetNotice       = "get_notice"
)

// Server status query actions.
const (
	StatusActionGetSingle  = "get_single"
	StatusActionGetBatch   = "get_batch"
	StatusActionGetAll     = "get_all"
	StatusActionGetSummary = "get_summary"
)

// Event subscription actions.
const (
	SubActionSubscribe         = "subscribe"
	SubActionUnsubscribe       = "unsubscribe"
	SubActionBatchSubscribe    = "batch_subscribe"
	SubActionBatchUnsubscribe  = "batch_unsubscribe"
	SubActionListSubscriptions = "list_subscriptions"
	SubActionUnsubscribeAll    = "unsubscribe_all"
	SubActionUpdateFilter      = "update_filter"
)

// Meta info query actions.
const (
	MetaActionGetAll        = "get_all"
	MetaActionGetRuntime    = "get_runtime"
	MetaActionGetProxyStats = "get_proxy_stats"
)

// Push event names the client subscribes to on every new connection.
const (
	PushPlayerJoin   = "player_join"
	PushPlayerQuit   = "player_quit"
	PushPlayerSwitch = "player_switch_server"
)

// SwitchRateLimitMS is the server-side rate limit requested for
// player_switch_server pushes: at most one update per 500ms.
const SwitchRateLimitMS = 500

// RequestBuilder constructs outbound JSON frames. Every frame carries a
// generated unique echo correlation id of the form
// {action}_{timestamp}_{counter}.
type RequestBuilder struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewRequestBuilder creates a new RequestBuilder.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{now: time.Now}
}

// Echo generates the next correlation id for the given action.
func (b *RequestBuilder) Echo(action string) string {
	return fmt.Sprintf("%s_%d_%d", action, b.now().UnixMilli(), b.counter.Add(1))
}

type serverStatusRequest struct {
	Type    string   `json:"type"`
	Action  string   `json:"action"`
	Servers []string `json:"servers,omitempty"`
	Echo    string   `json:"echo"`
}

// ServerStatus builds a server-status query frame. The servers list is
// used by get_single and get_batch and ignored by the other actions.
func (b *RequestBuilder) ServerStatus(action string, servers ...string) []byte {
	data, _ := json.Marshal(serverStatusRequest{
		Type:    TypeGetServerStatus,
		Action:  action,
		Servers: servers,
		Echo:    b.Echo(action),
	})
	return data
}

type subscribeRequest struct {
	Type   string         `json:"type"`
	Action string         `json:"action"`
	Events []string       `json:"events,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
	Echo   string         `json:"echo"`
}

// Subscribe builds an event subscription management frame.
func (b *RequestBuilder) Subscribe(action string, eventNames []string, filter map[string]any) []byte {
	data, _ := json.Marshal(subscribeRequest{
		Type:   TypeSubscribeEvent,
		Action: action,
		Events: eventNames,
		Filter: filter,
		Echo:   b.Echo(action),
	})
	return data
}

// InitialSubscriptions builds the batch_subscribe frame issued once per
// new connection: player join/quit pushes plus rate-limited server
// switch pushes.
func (b *RequestBuilder) InitialSubscriptions() []byte {
	return b.Subscribe(SubActionBatchSubscribe,
		[]string{PushPlayerJoin, PushPlayerQuit, PushPlayerSwitch},
		map[string]any{"intervalMs": SwitchRateLimitMS},
	)
}

type metaInfoRequest struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Echo   string `json:"echo"`
}

// MetaInfo builds a meta-info query frame.
func (b *RequestBuilder) MetaInfo(action string) []byte {
	data, _ := json.Marshal(metaInfoRequest{
		Type:   TypeGetMetaInfo,
		Action: action,
		Echo:   b.Echo(action),
	})
	return data
}

type noticeRequest struct {
	Type   string `json:"type"`
	Page   int    `json:"page"`
	Counts int    `json:"counts"`
	Echo   string `json:"echo"`
}

// Notice builds an announcement pagination request frame.
func (b *RequestBuilder) Notice(page, counts int) []byte {
	data, _ := json.Marshal(noticeRequest{
		Type:   TypeGetNotice,
		Page:   page,
		Counts: counts,
		Echo:   b.Echo(TypeGetNotice),
	})
	return data
}
