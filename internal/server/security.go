package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/protocol"
)

// originPolicy 握手来源白名单
// 条目为完整来源（https://play.example）或子域通配（https://*.example）
type originPolicy struct {
	any     bool
	exact   map[string]struct{}
	domains []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string
	suffix string // 带前导点，例如 ".example"
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{})}
	for _, raw := range origins {
		o := strings.ToLower(strings.TrimSpace(raw))
		if o == "*" {
			p.any = true
			continue
		}
		if scheme, domain, ok := strings.Cut(o, "://*."); ok {
			p.domains = append(p.domains, wildcardOrigin{scheme: scheme, suffix: "." + domain})
			continue
		}
		if o != "" {
			p.exact[o] = struct{}{}
		}
	}
	return p
}

// allow 供 websocket.Upgrader.CheckOrigin 使用，没有 Origin 头的非浏览器客户端放行
func (p *originPolicy) allow(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if p.any || header == "" {
		return true
	}

	u, err := url.Parse(strings.ToLower(header))
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := p.exact[u.Scheme+"://"+u.Host]; ok {
		return true
	}
	for _, w := range p.domains {
		if u.Scheme == w.scheme && strings.HasSuffix(u.Hostname(), w.suffix) {
			return true
		}
	}
	return false
}

// remoteIP 连接来源地址，只有配置了可信代理才读取转发头
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// maxStrikes 被拒绝的消息累计超过该值后断开连接
const maxStrikes = 5

// roomActions 创建房间或改变成员身份的消息，额外计入房间操作配额
var roomActions = map[protocol.MessageType]bool{
	protocol.MsgCreateRoom: true,
	protocol.MsgJoinRoom:   true,
	protocol.MsgReconnect:  true,
}

// verdict 限流判定
type verdict int

const (
	verdictAllow verdict = iota
	verdictReject
	verdictDisconnect
)

type connQuota struct {
	messages *rate.Limiter
	roomOps  *rate.Limiter
	strikes  int
}

// throttle 按连接限流
// 所有消息共用一个令牌桶；创建/加入/重连另有一个按分钟补充的桶，防止单个连接耗尽房间号
type throttle struct {
	mu     sync.Mutex
	quotas map[string]*connQuota
	now    func() time.Time

	msgLimit  rate.Limit
	msgBurst  int
	roomLimit rate.Limit
	roomBurst int
}

func newThrottle(cfg config.SecurityConfig) *throttle {
	perSecond := max(cfg.MessagesPerSecond, 1)
	perMinute := max(cfg.RoomActionsPerMinute, 1)
	return &throttle{
		quotas:    make(map[string]*connQuota),
		now:       time.Now,
		msgLimit:  rate.Limit(perSecond),
		msgBurst:  perSecond,
		roomLimit: rate.Every(time.Minute / time.Duration(perMinute)),
		roomBurst: max(perMinute/4, 1),
	}
}

// check 判定连接能否处理这条消息，无法解析的消息传空类型
func (t *throttle) check(connID string, msgType protocol.MessageType) verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.quotas[connID]
	if !ok {
		q = &connQuota{
			messages: rate.NewLimiter(t.msgLimit, t.msgBurst),
			roomOps:  rate.NewLimiter(t.roomLimit, t.roomBurst),
		}
		t.quotas[connID] = q
	}

	now := t.now()
	allowed := q.messages.AllowN(now, 1)
	if allowed && roomActions[msgType] {
		allowed = q.roomOps.AllowN(now, 1)
	}
	if allowed {
		return verdictAllow
	}

	q.strikes++
	if q.strikes > maxStrikes {
		return verdictDisconnect
	}
	return verdictReject
}

// strikes 连接累计被拒绝的次数
func (t *throttle) strikes(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.quotas[connID]; ok {
		return q.strikes
	}
	return 0
}

// forget 连接断开后释放配额
func (t *throttle) forget(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.quotas, connID)
}
