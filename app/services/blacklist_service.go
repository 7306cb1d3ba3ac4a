// Package services contains outbound integrations consumed by the business flows
package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkmint/linkmint/config"
	"github.com/linkmint/linkmint/utils"
)

// ErrBlacklistUnavailable is returned when the blacklist can neither be
// fetched nor loaded from any fallback.
var ErrBlacklistUnavailable = errors.New("unable to fetch or load blacklist")

// BlacklistService answers domain-blacklist membership questions.
// The snapshot loads on Start or lazily on the first lookup; once
// loaded, lookups are served from memory while the background
// refresher keeps the snapshot current.
type BlacklistService interface {
	IsBlacklisted(ctx context.Context, host string) (bool, error)
	Refresh(ctx context.Context) error
	Start(ctx context.Context) func()
}

// HTTPBlacklistService fetches the blacklist over HTTP with a bounded
// timeout and degrades through redis and a local backup file when the
// remote source is unreachable.
type HTTPBlacklistService struct {
	cfg    config.BlacklistConfig
	client *http.Client
	rc     *redis.Client // optional, nil when the cache is disabled

	mu      sync.RWMutex
	domains map[string]struct{}
	loaded  bool
}

func NewBlacklistService(cfg config.BlacklistConfig, rc *redis.Client) *HTTPBlacklistService {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPBlacklistService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		rc:     rc,
	}
}

// IsBlacklisted reports whether host or any parent domain is listed.
// The first lookup loads the snapshot via the fallback chain.
func (s *HTTPBlacklistService) IsBlacklisted(ctx context.Context, host string) (bool, error) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		if err := s.Refresh(ctx); err != nil {
			return false, err
		}
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))

	s.mu.RLock()
	defer s.mu.RUnlock()
	// Walk up the label chain so a listing of example.com also covers
	// sub.example.com.
	for h := host; h != ""; {
		if _, ok := s.domains[h]; ok {
			return true, nil
		}
		i := strings.Index(h, ".")
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return false, nil
}

// Refresh replaces the in-memory snapshot: remote source first, then
// the redis copy, then the local backup file.
func (s *HTTPBlacklistService) Refresh(ctx context.Context) error {
	if text, err := s.fetchRemote(ctx); err == nil {
		s.install(parseDomains(text))
		s.persist(ctx, text)
		return nil
	} else {
		log.Printf("unable to fetch live blacklist: %v", err)
	}

	if s.rc != nil {
		if text, err := s.rc.Get(ctx, s.redisKey()).Result(); err == nil && text != "" {
			log.Println("loading blacklist from redis snapshot")
			s.install(parseDomains(text))
			return nil
		}
	}

	if text, err := os.ReadFile(s.cfg.BackupPath); err == nil {
		log.Println("loading blacklist from local backup")
		s.install(parseDomains(string(text)))
		return nil
	}

	log.Println("no blacklist backup available; cannot validate domains")
	return ErrBlacklistUnavailable
}

// Start launches the periodic refresher and returns its stop function.
func (s *HTTPBlacklistService) Start(parent context.Context) func() {
	refreshCtx, cancel := context.WithCancel(parent)
	interval := s.cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		if err := s.Refresh(refreshCtx); err != nil {
			log.Printf("initial blacklist load failed: %v", err)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(refreshCtx); err != nil {
					log.Printf("blacklist refresh failed: %v", err)
				}
			}
		}
	}()
	return cancel
}

func (s *HTTPBlacklistService) fetchRemote(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.SourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote fetch failed with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *HTTPBlacklistService) install(domains map[string]struct{}) {
	s.mu.Lock()
	s.domains = domains
	s.loaded = true
	s.mu.Unlock()
	log.Printf("blacklist snapshot installed with %d domains", len(domains))
}

// persist writes the raw snapshot to the local backup file and, when
// available, to redis with the refresh interval as TTL.
func (s *HTTPBlacklistService) persist(ctx context.Context, text string) {
	if s.cfg.BackupPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.cfg.BackupPath), 0o755); err == nil {
			if err := os.WriteFile(s.cfg.BackupPath, []byte(text), 0o644); err != nil {
				log.Printf("failed to write blacklist backup: %v", err)
			}
		}
	}
	if s.rc != nil {
		ttl := s.cfg.RefreshInterval
		if ttl <= 0 {
			ttl = time.Hour
		}
		if err := s.rc.Set(ctx, s.redisKey(), text, 2*ttl).Err(); err != nil {
			log.Printf("failed to cache blacklist in redis: %v", err)
		}
	}
}

func (s *HTTPBlacklistService) redisKey() string {
	prefix := s.cfg.RedisPrefix
	if prefix == "" {
		prefix = "linkmint"
	}
	return prefix + ":" + utils.BlacklistCacheKey
}

func parseDomains(text string) map[string]struct{} {
	domains := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains[strings.ToLower(line)] = struct{}{}
	}
	return domains
}
