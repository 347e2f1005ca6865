package account

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"binance-broker/internal/core"
	"binance-broker/internal/exchange"
	"binance-broker/internal/order"
)

const (
	defaultClientOrderPrefix = "bb"
	reconnectBackoffMax      = 30 * time.Second
)

// Session is the trading-account facade: it owns the single user-event
// subscription, the registry that routes push events to live order state
// machines, the symbol metadata cache and the last-tick cache. All reads
// go straight to the exchange; no state is persisted.
type Session struct {
	conn   exchange.Connection
	mapper exchange.Mapper
	log    *logrus.Entry

	primaryAsset string
	clientPrefix string
	onOrder      func(*order.Order)

	mu          sync.Mutex
	byOrderID   map[string]*order.Order
	byClientID  map[string]*order.Order
	symbols     map[string]core.Symbol
	lastTicks   map[string]core.Tick
	seq         uint64
	supervising bool
	closed      bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Params struct {
	Connection exchange.Connection
	Mapper     exchange.Mapper
	// PrimaryAsset is the valuation asset for balance and equity reads.
	PrimaryAsset string
	// ClientOrderPrefix prefixes generated client order ids.
	ClientOrderPrefix string
	// OnOrder, when set, observes every order this session creates.
	OnOrder func(*order.Order)
	Log     *logrus.Entry
}

func NewSession(p Params) *Session {
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	prefix := p.ClientOrderPrefix
	if prefix == "" {
		prefix = defaultClientOrderPrefix
	}
	return &Session{
		conn:         p.Connection,
		mapper:       p.Mapper,
		log:          log.WithField("component", "account"),
		primaryAsset: p.PrimaryAsset,
		clientPrefix: prefix,
		onOrder:      p.OnOrder,
		byOrderID:    make(map[string]*order.Order),
		byClientID:   make(map[string]*order.Order),
		symbols:      make(map[string]core.Symbol),
		lastTicks:    make(map[string]core.Tick),
	}
}

// Preload warms the symbol metadata cache and starts the user-stream
// supervisor. It is safe to call again; the supervisor starts once.
func (s *Session) Preload(ctx context.Context) error {
	if err := s.refreshSymbols(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrSessionClosed
	}
	if s.supervising {
		s.mu.Unlock()
		return nil
	}
	s.supervising = true
	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.superviseUserStream(streamCtx)
	return nil
}

// PlaceOrder validates the directives, spins up an order state machine,
// registers it for push dispatch and submits it asynchronously. The
// returned resolver settles per the directives' resolver events. All
// submission failures surface as a REJECTED order, never as an error here.
func (s *Session) PlaceOrder(ctx context.Context, d core.OrderDirectives) (*order.Resolver, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, core.ErrSessionClosed
	}
	s.mu.Unlock()

	if err := d.Validate(); err != nil {
		return nil, err
	}
	o := order.New(order.Params{
		Directives:    d,
		ClientOrderID: s.nextClientOrderID(),
		Exchange:      s.conn,
		Mapper:        s.mapper,
		Log:           s.log,
	})
	resolver := order.NewResolver(o, d.ResolverEvents)
	s.register(o)
	if s.onOrder != nil {
		s.onOrder(o)
	}
	go o.Submit(ctx)
	return resolver, nil
}

// Close tears the session down: the supervisor stops, the exchange
// connection is closed and further placements are refused.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return s.conn.Close()
}

// IsMarketOpen reports whether the market currently trades. Spot crypto
// has no sessions, so this is always true.
func (s *Session) IsMarketOpen() bool {
	return true
}

func (s *Session) register(o *order.Order) {
	clientID := o.ClientOrderID()
	s.mu.Lock()
	s.byClientID[clientID] = o
	s.mu.Unlock()

	// Keep the dispatch registry in step with the machine: index by
	// exchange id as soon as one is known, drop both keys once terminal.
	o.On(order.EventStatusChange, func(ev order.Event) {
		id := o.ID()
		s.mu.Lock()
		if ev.Status.IsTerminal() {
			if id != "" {
				delete(s.byOrderID, id)
			}
			delete(s.byClientID, clientID)
		} else if id != "" {
			s.byOrderID[id] = o
		}
		s.mu.Unlock()
	})
}

func (s *Session) superviseUserStream(ctx context.Context) {
	defer s.wg.Done()
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		updates, errs, err := s.conn.UserUpdates(ctx)
		if err != nil {
			s.log.WithError(err).WithField("backoff", backoff).Warn("user stream connect failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		s.log.Info("user stream connected")
		backoff = time.Second

		err = s.consumeUserStream(ctx, updates, errs)
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).WithField("backoff", backoff).Warn("user stream lost, reconnecting")
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Session) consumeUserStream(ctx context.Context, updates <-chan exchange.OrderUpdate, errs <-chan error) error {
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return errors.New("user stream closed")
			}
			s.dispatch(u)
		case err, ok := <-errs:
			if !ok {
				// Updates may still flow; stop selecting on the
				// closed channel.
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch routes a push event to its state machine, matching by exchange
// order id first and by the client-order-id correlation token second. The
// second path covers events that outrun the placement response.
func (s *Session) dispatch(u exchange.OrderUpdate) {
	s.mu.Lock()
	o, ok := s.byOrderID[u.OrderID]
	if !ok {
		o, ok = s.byClientID[u.ClientOrderID]
	}
	s.mu.Unlock()
	if !ok {
		s.log.WithFields(logrus.Fields{
			"order_id":        u.OrderID,
			"client_order_id": u.ClientOrderID,
			"status":          u.Status,
		}).Debug("push event for unknown order dropped")
		return
	}
	o.ApplyPushUpdate(u)
}

func (s *Session) refreshSymbols(ctx context.Context) error {
	details, err := s.conn.SymbolDetails(ctx)
	if err != nil {
		return err
	}
	fresh := make(map[string]core.Symbol, len(details))
	for _, d := range details {
		fresh[d.Symbol] = core.Symbol{
			Symbol:     d.Symbol,
			BaseAsset:  d.BaseAsset,
			QuoteAsset: d.QuoteAsset,
			MinVolume:  d.MinQty,
			MaxVolume:  d.MaxQty,
			VolumeStep: d.StepSize,
		}
	}
	s.mu.Lock()
	s.symbols = fresh
	s.mu.Unlock()
	return nil
}

func (s *Session) nextClientOrderID() string {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return s.clientPrefix + "-" +
		strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" +
		strconv.FormatUint(seq, 36)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectBackoffMax {
		d = reconnectBackoffMax
	}
	return d
}
