package services

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"go.uber.org/zap"
)

// Storage keys. They match what the café website keeps in browser storage,
// so an exported browser profile can be loaded as is.
const (
	KeyMenuItems     = "campus_cafe_menu_items"
	KeyOrders        = "campus_cafe_orders"
	KeyCart          = "campus_cafe_cart"
	KeyMessages      = "campus_cafe_messages"
	KeyUsers         = "campus_cafe_users"
	KeyStats         = "campus_cafe_stats"
	KeyTheme         = "campus_cafe_theme"
	KeyLastOrderID   = "last_order_id"
	KeyTempOrderCode = "temp_order_code"

	KeySessions      = "campus_cafe_sessions"
	KeyLoginThrottle = "campus_cafe_login_throttle"
	KeyCardPointers  = "campus_cafe_card_pointers"
)

const DefaultPickupWindow = 20 * time.Minute

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type Options struct {
	Logger       *zap.Logger
	Now          func() time.Time
	PickupWindow time.Duration
	// PasswordCost overrides the bcrypt cost for admin passwords.
	PasswordCost int
}

// Shop wires the shared services over one store. Per-customer state
// (cart, pending checkout, last order, theme) lives in a Session.
type Shop struct {
	kv           store.Store
	log          *zap.Logger
	now          func() time.Time
	pickupWindow time.Duration

	Menu        *MenuService
	Orders      *OrderRepository
	Stats       *StatsService
	Messages    *MessageService
	Credentials *CredentialService
	Backoffice  *Backoffice
	Cards       *CardPointers

	cartLocks [cartLockStripes]sync.Mutex
}

// cartLockStripes bounds the cart mutexes: refs hash onto a fixed set, so two
// customers may share a stripe but one customer always gets the same one.
const cartLockStripes = 64

func (s *Shop) cartLock(ref string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref))
	return &s.cartLocks[h.Sum32()%cartLockStripes]
}

func NewShop(kv store.Store, opts Options) *Shop {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	window := opts.PickupWindow
	if window <= 0 {
		window = DefaultPickupWindow
	}
	s := &Shop{kv: kv, log: log, now: now, pickupWindow: window}
	s.Menu = NewMenuService(kv, log.Named("menu"), now)
	s.Stats = NewStatsService(kv, log.Named("stats"), now)
	s.Orders = NewOrderRepository(kv, s.Stats, log.Named("orders"), now, window)
	s.Messages = NewMessageService(kv, log.Named("messages"), now)
	s.Credentials = NewCredentialService(kv, NewLoginThrottle(kv, log.Named("throttle"), now), log.Named("credentials"), now)
	if opts.PasswordCost > 0 {
		s.Credentials.cost = opts.PasswordCost
	}
	s.Backoffice = &Backoffice{orders: s.Orders, menu: s.Menu, messages: s.Messages, log: log.Named("backoffice"), now: now}
	s.Cards = NewCardPointers(kv, log.Named("cards"))
	return s
}

// Init seeds the default menu and the configured first admin.
func (s *Shop) Init(ctx context.Context, adminEmail, adminPassword string) error {
	if _, err := s.Menu.Seed(ctx, false); err != nil {
		return err
	}
	return s.Credentials.EnsureSeedAdmin(ctx, adminEmail, adminPassword)
}

// CustomerPrefix is the key namespace of one customer's session.
func CustomerPrefix(ref string) string {
	return "customer:" + ref + ":"
}

// Session is one customer's view of the shop.
type Session struct {
	Ref      string
	Cart     *Cart
	Checkout *CheckoutFlow
	Orders   *OrderViews

	kv store.Store
}

// Session returns the customer's session. An empty ref is the single-profile
// layout with un-prefixed keys.
func (s *Shop) Session(ref string) *Session {
	kv := s.kv
	if ref != "" {
		kv = store.NewPrefixed(s.kv, CustomerPrefix(ref))
	}
	cart := &Cart{kv: kv, log: s.log.Named("cart"), mu: s.cartLock(ref)}
	return &Session{
		Ref:  ref,
		Cart: cart,
		Checkout: &CheckoutFlow{
			kv:           kv,
			cart:         cart,
			orders:       s.Orders,
			log:          s.log.Named("checkout"),
			now:          s.now,
			pickupWindow: s.pickupWindow,
			customerRef:  ref,
		},
		Orders: &OrderViews{
			orders:      s.Orders,
			cart:        cart,
			log:         s.log.Named("orders"),
			now:         s.now,
			customerRef: ref,
		},
		kv: kv,
	}
}

// Theme returns the stored preference, light when unset.
func (s *Session) Theme(ctx context.Context) (string, error) {
	v, ok, err := s.kv.Get(ctx, KeyTheme)
	if err != nil {
		return "", err
	}
	if !ok || (v != ThemeLight && v != ThemeDark) {
		return ThemeLight, nil
	}
	return v, nil
}

func (s *Session) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return &models.ValidationError{Field: "theme", Message: "theme must be light or dark"}
	}
	return s.kv.Set(ctx, KeyTheme, theme)
}
