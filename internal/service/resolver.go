package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/scrape"
)

// Resolver maps handles to wallet addresses and back by scraping public
// profile pages.
type Resolver struct {
	web    PageFetcher
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(web PageFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{web: web, logger: logger}
}

// ResolveAddress returns address unchanged when it is already valid.
// Otherwise it loads the profile page of handle and returns the first
// address-shaped substring.
func (r *Resolver) ResolveAddress(ctx context.Context, handle, address string) (string, error) {
	if domain.IsAddress(address) {
		return address, nil
	}
	handle = domain.NormalizeHandle(handle)
	if handle == "" {
		return "", fmt.Errorf("resolver: %w: handle or address required", domain.ErrMissingInput)
	}

	html, err := r.web.HandlePage(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("resolver: @%s: %w", handle, domain.ErrAddressNotFound)
		}
		return "", fmt.Errorf("resolver: @%s: %w", handle, err)
	}

	addr := scrape.FirstAddress(html)
	if addr == "" {
		return "", fmt.Errorf("resolver: @%s: %w", handle, domain.ErrAddressNotFound)
	}
	r.logger.DebugContext(ctx, "resolver: handle resolved",
		slog.String("handle", handle),
		slog.String("address", addr),
	)
	return addr, nil
}

// ResolveHandle returns the first @handle on the profile page of address.
func (r *Resolver) ResolveHandle(ctx context.Context, address string) (string, error) {
	if !domain.IsAddress(address) {
		return "", fmt.Errorf("resolver: %q: %w", address, domain.ErrInvalidAddress)
	}

	html, err := r.web.ProfilePage(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("resolver: %s: %w", address, domain.ErrHandleNotFound)
		}
		return "", fmt.Errorf("resolver: %s: %w", address, err)
	}

	handle := scrape.FirstHandle(html)
	if handle == "" {
		return "", fmt.Errorf("resolver: %s: %w", address, domain.ErrHandleNotFound)
	}
	return handle, nil
}
