package core

import (
	"context"
	"errors"
)

// HookKind identifies one of the host trade engine's lifecycle callbacks
type HookKind uint8

// Lifecycle hook kinds, in host invocation order
const (
	HookBeforeInitialize HookKind = iota
	HookAfterInitialize
	HookBeforeAddLiquidity
	HookAfterAddLiquidity
	HookBeforeRemoveLiquidity
	HookAfterRemoveLiquidity
	HookBeforeSwap
	HookAfterSwap
	HookBeforeDonate
	HookAfterDonate

	hookKindCount
)

// String returns the hook kind as string
func (k HookKind) String() string {
	switch k {
	case HookBeforeInitialize:
		return "BEFORE_INITIALIZE"
	case HookAfterInitialize:
		return "AFTER_INITIALIZE"
	case HookBeforeAddLiquidity:
		return "BEFORE_ADD_LIQUIDITY"
	case HookAfterAddLiquidity:
		return "AFTER_ADD_LIQUIDITY"
	case HookBeforeRemoveLiquidity:
		return "BEFORE_REMOVE_LIQUIDITY"
	case HookAfterRemoveLiquidity:
		return "AFTER_REMOVE_LIQUIDITY"
	case HookBeforeSwap:
		return "BEFORE_SWAP"
	case HookAfterSwap:
		return "AFTER_SWAP"
	case HookBeforeDonate:
		return "BEFORE_DONATE"
	case HookAfterDonate:
		return "AFTER_DONATE"
	default:
		return "UNKNOWN"
	}
}

// HookPermissions is the capability bitmap the host queries at registration
// to decide which callbacks to invoke at all. A hook outside the bitmap must
// never be called; if it is anyway, the implementation rejects it with
// ErrNotImplemented rather than silently no-opping.
type HookPermissions uint16

// Has reports whether the bitmap includes the given hook kind
func (p HookPermissions) Has(kind HookKind) bool {
	return p&(1<<kind) != 0
}

// PermissionsFor builds a bitmap from the listed hook kinds
func PermissionsFor(kinds ...HookKind) HookPermissions {
	var p HookPermissions
	for _, kind := range kinds {
		p |= 1 << kind
	}
	return p
}

// PoolHooks is the lifecycle callback surface a hook implementation exposes
// to the host trade engine.
type PoolHooks interface {
	// Permissions returns the capability bitmap checked at registration
	Permissions() HookPermissions

	BeforeInitialize(ctx context.Context, tick int64) error
	AfterInitialize(ctx context.Context, tick int64) error
	BeforeAddLiquidity(ctx context.Context) error
	AfterAddLiquidity(ctx context.Context) error
	BeforeRemoveLiquidity(ctx context.Context) error
	AfterRemoveLiquidity(ctx context.Context) error
	BeforeSwap(ctx context.Context, tradeZeroForOne bool) error

	// AfterSwap receives the trade's direction and the pool's new tick once
	// the trade's price effect is final.
	AfterSwap(ctx context.Context, tradeZeroForOne bool, newTick int64) (*ScanReport, error)

	BeforeDonate(ctx context.Context) error
	AfterDonate(ctx context.Context) error
}

// ValidateHookPermissions checks at registration time that every hook outside
// the implementation's bitmap is rejected with ErrNotImplemented. Unregistered
// hooks carry no state, so probing them is safe.
func ValidateHookPermissions(ctx context.Context, h PoolHooks) error {
	perms := h.Permissions()

	for kind := HookKind(0); kind < hookKindCount; kind++ {
		if perms.Has(kind) {
			continue
		}

		var err error
		switch kind {
		case HookBeforeInitialize:
			err = h.BeforeInitialize(ctx, 0)
		case HookAfterInitialize:
			err = h.AfterInitialize(ctx, 0)
		case HookBeforeAddLiquidity:
			err = h.BeforeAddLiquidity(ctx)
		case HookAfterAddLiquidity:
			err = h.AfterAddLiquidity(ctx)
		case HookBeforeRemoveLiquidity:
			err = h.BeforeRemoveLiquidity(ctx)
		case HookAfterRemoveLiquidity:
			err = h.AfterRemoveLiquidity(ctx)
		case HookBeforeSwap:
			err = h.BeforeSwap(ctx, false)
		case HookAfterSwap:
			_, err = h.AfterSwap(ctx, false, 0)
		case HookBeforeDonate:
			err = h.BeforeDonate(ctx)
		case HookAfterDonate:
			err = h.AfterDonate(ctx)
		}

		if !errors.Is(err, ErrNotImplemented) {
			return ErrHookPermissions
		}
	}

	return nil
}
