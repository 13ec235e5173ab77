package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

const cacheNamespace = "plugin_monitor"

// cacheKey строит ключ кеша вида plugin_monitor:<user>[:<site>]:<kind>:<parts...>
func cacheKey(scope valueobject.Scope, kind string, parts ...interface{}) string {
	key := fmt.Sprintf("%s:%s:%s", cacheNamespace, scope.Key(), kind)
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// userCachePattern покрывает все ключи пользователя, включая ключи по сайтам
func userCachePattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", cacheNamespace, userID)
}

// cachedRead читает значение из кеша или вычисляет его через load и сохраняет.
// Ошибки кеша не прерывают запрос.
func cachedRead[T any](
	ctx context.Context,
	cache port.Cache,
	telemetry port.Telemetry,
	log *logger.Logger,
	name, key string,
	load func(ctx context.Context) (T, error),
) (T, error) {
	if cache == nil {
		return load(ctx)
	}

	var cached T
	if err := cache.Get(ctx, key, &cached); err == nil {
		recordCacheLookup(telemetry, name, true)
		log.Debug("Cache hit", "name", name, "key", key)
		return cached, nil
	}
	recordCacheLookup(telemetry, name, false)

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	// Сохраняем в кеш асинхронно, не блокируем ответ
	go func() {
		if err := cache.Set(context.Background(), key, value); err != nil {
			log.Warn("Failed to cache value", "name", name, "error", err.Error())
		}
	}()

	return value, nil
}

func recordCacheLookup(telemetry port.Telemetry, name string, hit bool) {
	if telemetry != nil {
		telemetry.CacheLookup(name, hit)
	}
}
