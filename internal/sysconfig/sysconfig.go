// Package sysconfig implements channel-scoped system configuration.
//
// Values are keyed by name and an optional sales channel ID. Reads fall back
// from the channel scope to the global scope, the way storefront platforms
// resolve per-channel settings. The fraud pipeline keeps its provider
// credentials, risk threshold, and the persisted average-risk pair here so
// they survive process restarts.
package sysconfig

import (
	"context"
	"errors"
	"strconv"
)

// GlobalScope is the channel ID of the global (fallback) scope.
const GlobalScope = ""

// Well-known configuration keys.
const (
	KeyAccountID           = "maxmind.account_id"
	KeyLicenseKey          = "maxmind.license_key"
	KeyRiskThreshold       = "maxmind.risk_threshold"
	KeyOverallRiskScore    = "maxmind.overall_risk_score"
	KeyLastCalculationTime = "maxmind.last_calculation_time"
)

// ErrNotFound is returned by stores when a key has no value in a scope.
var ErrNotFound = errors.New("config key not found")

// Store persists raw configuration values per (key, channel) pair.
// An empty channel ID addresses the global scope.
type Store interface {
	Get(ctx context.Context, key, channelID string) (string, error)
	Set(ctx context.Context, key, channelID, value string) error
	Delete(ctx context.Context, key, channelID string) error
}

// Service resolves configuration values with channel-to-global fallback.
type Service struct {
	store Store
}

// NewService creates a config service on top of a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetString returns the value for key in the given channel scope, falling
// back to the global scope. The second return reports whether any scope
// held a value.
func (s *Service) GetString(ctx context.Context, key, channelID string) (string, bool, error) {
	if channelID != GlobalScope {
		v, err := s.store.Get(ctx, key, channelID)
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", false, err
		}
	}

	v, err := s.store.Get(ctx, key, GlobalScope)
	if err == nil {
		return v, true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	return "", false, err
}

// GetFloat resolves key as a float64 with channel fallback.
func (s *Service) GetFloat(ctx context.Context, key, channelID string) (float64, bool, error) {
	v, ok, err := s.GetString(ctx, key, channelID)
	if err != nil || !ok {
		return 0, ok, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, nil
	}
	return f, true, nil
}

// GetInt64 resolves key as an int64 with channel fallback.
func (s *Service) GetInt64(ctx context.Context, key, channelID string) (int64, bool, error) {
	v, ok, err := s.GetString(ctx, key, channelID)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetString writes a value into the given scope.
func (s *Service) SetString(ctx context.Context, key, channelID, value string) error {
	return s.store.Set(ctx, key, channelID, value)
}

// SetFloat writes a float value into the given scope.
func (s *Service) SetFloat(ctx context.Context, key, channelID string, value float64) error {
	return s.store.Set(ctx, key, channelID, strconv.FormatFloat(value, 'f', -1, 64))
}

// SetInt64 writes an integer value into the given scope.
func (s *Service) SetInt64(ctx context.Context, key, channelID string, value int64) error {
	return s.store.Set(ctx, key, channelID, strconv.FormatInt(value, 10))
}
